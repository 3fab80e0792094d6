// Package logging keeps recent ACL rejections in memory and on disk, and
// forwards daemon log records to remote syslog servers.
package logging

import (
	"strings"
	"sync"
	"time"
)

// RejectionRecord is one input line that failed to parse or one rule that
// failed to render.
type RejectionRecord struct {
	Seq     uint64    `json:"seq"`
	Time    time.Time `json:"time"`
	ACL     string    `json:"acl,omitempty"`
	Marker  string    `json:"marker"`
	Dialect string    `json:"dialect"`
	Op      string    `json:"op"`   // "parse", "render", "delete"
	Kind    string    `json:"kind"` // error kind, e.g. "address-format-error"
	Line    string    `json:"line,omitempty"`
	Error   string    `json:"error"`
}

// RejectionBuffer is a thread-safe circular buffer of recent rejections.
type RejectionBuffer struct {
	mu    sync.RWMutex
	buf   []RejectionRecord
	size  int
	head  int // next write position
	count int
	seq   uint64

	subMu sync.RWMutex
	subs  map[*Subscription]struct{}
}

// Subscription receives new rejections from a RejectionBuffer.
type Subscription struct {
	C  chan RejectionRecord
	rb *RejectionBuffer
}

// Close unsubscribes. The channel is left open so pending readers drain.
func (s *Subscription) Close() {
	s.rb.unsubscribe(s)
}

// NewRejectionBuffer creates a buffer holding the last size rejections.
func NewRejectionBuffer(size int) *RejectionBuffer {
	if size < 1 {
		size = 1
	}
	return &RejectionBuffer{
		buf:  make([]RejectionRecord, size),
		size: size,
		subs: make(map[*Subscription]struct{}),
	}
}

// Add stores rec, overwriting the oldest entry when full, and returns it
// with its sequence number and time filled in. Slow subscribers miss
// records rather than block the caller.
func (rb *RejectionBuffer) Add(rec RejectionRecord) RejectionRecord {
	rb.mu.Lock()
	rb.seq++
	rec.Seq = rb.seq
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}
	rb.buf[rb.head] = rec
	rb.head = (rb.head + 1) % rb.size
	if rb.count < rb.size {
		rb.count++
	}
	rb.mu.Unlock()

	rb.subMu.RLock()
	for sub := range rb.subs {
		select {
		case sub.C <- rec:
		default:
		}
	}
	rb.subMu.RUnlock()
	return rec
}

// Subscribe returns a Subscription that receives new rejections.
func (rb *RejectionBuffer) Subscribe(bufSize int) *Subscription {
	if bufSize < 1 {
		bufSize = 64
	}
	sub := &Subscription{
		C:  make(chan RejectionRecord, bufSize),
		rb: rb,
	}
	rb.subMu.Lock()
	rb.subs[sub] = struct{}{}
	rb.subMu.Unlock()
	return sub
}

func (rb *RejectionBuffer) unsubscribe(sub *Subscription) {
	rb.subMu.Lock()
	delete(rb.subs, sub)
	rb.subMu.Unlock()
}

// Total returns the number of rejections ever added.
func (rb *RejectionBuffer) Total() uint64 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.seq
}

// RejectionFilter selects rejections. Empty fields match everything.
type RejectionFilter struct {
	ACL     string // exact ACL name
	Dialect string // exact dialect name
	Kind    string // exact error kind
	Text    string // case-insensitive substring of the line
}

// IsEmpty returns true if no filter criteria are set.
func (f RejectionFilter) IsEmpty() bool {
	return f == RejectionFilter{}
}

// Match reports whether rec passes the filter.
func (f RejectionFilter) Match(rec RejectionRecord) bool {
	return f.matches(&rec)
}

func (f RejectionFilter) matches(rec *RejectionRecord) bool {
	if f.ACL != "" && rec.ACL != f.ACL {
		return false
	}
	if f.Dialect != "" && rec.Dialect != f.Dialect {
		return false
	}
	if f.Kind != "" && rec.Kind != f.Kind {
		return false
	}
	if f.Text != "" && !strings.Contains(strings.ToLower(rec.Line), strings.ToLower(f.Text)) {
		return false
	}
	return true
}

// LatestFiltered returns the most recent n rejections matching f, newest first.
func (rb *RejectionBuffer) LatestFiltered(n int, f RejectionFilter) []RejectionRecord {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if n <= 0 {
		return nil
	}
	var result []RejectionRecord
	for i := 0; i < rb.count && len(result) < n; i++ {
		idx := (rb.head - 1 - i + rb.size) % rb.size
		if f.matches(&rb.buf[idx]) {
			result = append(result, rb.buf[idx])
		}
	}
	return result
}

// Latest returns the most recent n rejections, newest first.
func (rb *RejectionBuffer) Latest(n int) []RejectionRecord {
	return rb.LatestFiltered(n, RejectionFilter{})
}
