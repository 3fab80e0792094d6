package configstore

import (
	"fmt"
	"time"

	"github.com/psaab/aclc/pkg/config"
)

// HistoryEntry records a configuration that was replaced, why it was
// replaced, and what the replacement did to the ACL table.
type HistoryEntry struct {
	Config     *config.Config
	ReplacedAt time.Time
	Reason     string     // "reload" or "rollback N"
	Changes    ACLChanges // from Config to its replacement
}

func (e *HistoryEntry) String() string {
	return fmt.Sprintf("%s %s: +%d -%d ~%d acls", e.ReplacedAt.Format(time.RFC3339), e.Reason,
		len(e.Changes.Added), len(e.Changes.Removed), len(e.Changes.Changed))
}

// History keeps the last size replaced configurations in a fixed ring.
type History struct {
	ring  []*HistoryEntry
	next  int // slot the next Push writes
	count int
}

// NewHistory returns an empty history holding at most size entries.
func NewHistory(size int) *History {
	if size < 1 {
		size = 1
	}
	return &History{ring: make([]*HistoryEntry, size)}
}

// Push records e, evicting the oldest entry when full.
func (h *History) Push(e *HistoryEntry) {
	h.ring[h.next] = e
	h.next = (h.next + 1) % len(h.ring)
	if h.count < len(h.ring) {
		h.count++
	}
}

// Get returns the nth most recently replaced configuration (0 = last).
func (h *History) Get(n int) (*HistoryEntry, error) {
	if n < 0 || n >= h.count {
		return nil, fmt.Errorf("rollback %d: only %d previous configuration(s) kept", n, h.count)
	}
	return h.ring[(h.next-1-n+len(h.ring))%len(h.ring)], nil
}

func (h *History) Len() int { return h.count }

// List returns the entries, most recent first.
func (h *History) List() []*HistoryEntry {
	out := make([]*HistoryEntry, h.count)
	for i := range out {
		out[i], _ = h.Get(i)
	}
	return out
}
