// Package engine is the single entry point the CLI, HTTP API and gRPC API
// use to parse, render and convert ACL entries. It resolves set markers
// to codecs, keeps per-dialect counters and remembers recent rejections.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/psaab/aclc/pkg/acl"
	"github.com/psaab/aclc/pkg/aclset"
	"github.com/psaab/aclc/pkg/dialect"
	"github.com/psaab/aclc/pkg/logging"
)

// ErrUnknownACL is returned for ACL names missing from the configuration.
var ErrUnknownACL = errors.New("unknown acl")

// Options configures an Engine.
type Options struct {
	ACLs          map[string]string // ACL name -> set marker
	RejectionSize int               // rejections kept in memory, default 1024
	SetLimit      int               // sets parsed concurrently by ParseSets, default 8
}

// Engine is safe for concurrent use.
type Engine struct {
	mu   sync.RWMutex
	acls map[string]string

	rejections *logging.RejectionBuffer
	setLimit   int
	started    time.Time

	statsMu   sync.Mutex
	stats     map[dialect.Dialect]*DialectStats
	converted uint64
}

// DialectStats counts operations for one dialect.
type DialectStats struct {
	Dialect  string            `json:"dialect"`
	Parsed   uint64            `json:"parsed"`
	Rendered uint64            `json:"rendered"`
	Deleted  uint64            `json:"deleted"`
	Failures map[string]uint64 `json:"failures,omitempty"` // by error kind
}

// New creates an engine. Invalid ACL markers are reported, not dropped.
func New(opts Options) (*Engine, error) {
	size := opts.RejectionSize
	if size <= 0 {
		size = 1024
	}
	e := &Engine{
		rejections: logging.NewRejectionBuffer(size),
		setLimit:   opts.SetLimit,
		started:    time.Now(),
		stats:      make(map[dialect.Dialect]*DialectStats),
	}
	if err := e.SetACLs(opts.ACLs); err != nil {
		return nil, err
	}
	return e, nil
}

// SetACLs replaces the ACL name to marker table after checking every
// marker.
func (e *Engine) SetACLs(acls map[string]string) error {
	m := make(map[string]string, len(acls))
	for name, marker := range acls {
		if _, err := dialect.Select(marker); err != nil {
			return fmt.Errorf("acl %s: %w", name, err)
		}
		m[name] = marker
	}
	e.mu.Lock()
	e.acls = m
	e.mu.Unlock()
	slog.Debug("acl table updated", "acls", len(m))
	return nil
}

// ACLs returns a copy of the ACL table.
func (e *Engine) ACLs() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]string, len(e.acls))
	for k, v := range e.acls {
		out[k] = v
	}
	return out
}

// MarkerFor returns the configured marker of an ACL.
func (e *Engine) MarkerFor(name string) (string, error) {
	e.mu.RLock()
	marker, ok := e.acls[name]
	e.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%q: %w", name, ErrUnknownACL)
	}
	return marker, nil
}

// ContextFor resolves the dialect context of a configured ACL.
func (e *Engine) ContextFor(name string) (dialect.Context, error) {
	marker, err := e.MarkerFor(name)
	if err != nil {
		return dialect.Context{}, err
	}
	return dialect.Select(marker)
}

// Rejections returns the buffer of recent rejections.
func (e *Engine) Rejections() *logging.RejectionBuffer {
	return e.rejections
}

// Uptime returns the time since the engine was created.
func (e *Engine) Uptime() time.Duration {
	return time.Since(e.started)
}

// Parse parses one line of the set identified by marker.
func (e *Engine) Parse(marker, line string) (*acl.Rule, error) {
	codec, ctx, err := dialect.ForMarker(marker)
	if err != nil {
		return nil, err
	}
	r, err := codec.Parse(line)
	if err != nil {
		e.reject(ctx, "", "parse", line, err)
		return nil, err
	}
	e.count(ctx.Dialect, func(s *DialectStats) { s.Parsed++ })
	return r, nil
}

// Render renders r for the set identified by marker.
func (e *Engine) Render(marker string, r *acl.Rule) (string, error) {
	codec, ctx, err := dialect.ForMarker(marker)
	if err != nil {
		return "", err
	}
	line, err := codec.Render(r)
	if err != nil {
		e.reject(ctx, "", "render", fmt.Sprintf("rule %d", r.SequenceID), err)
		return "", err
	}
	e.count(ctx.Dialect, func(s *DialectStats) { s.Rendered++ })
	return line, nil
}

// RenderDelete renders the removal command for r.
func (e *Engine) RenderDelete(marker string, r *acl.Rule) (string, error) {
	codec, ctx, err := dialect.ForMarker(marker)
	if err != nil {
		return "", err
	}
	e.count(ctx.Dialect, func(s *DialectStats) { s.Deleted++ })
	return codec.RenderDelete(r), nil
}

// Convert parses line in the from set and renders it for the to set.
func (e *Engine) Convert(from, to, line string) (string, *acl.Rule, error) {
	r, err := e.Parse(from, line)
	if err != nil {
		return "", nil, err
	}
	out, err := e.Render(to, r)
	if err != nil {
		return "", r, err
	}
	e.statsMu.Lock()
	e.converted++
	e.statsMu.Unlock()
	return out, r, nil
}

// ParseSet parses raw device output of one set. Rejected lines are
// recorded and kept in the returned set.
func (e *Engine) ParseSet(marker, name, text string) (*aclset.Set, error) {
	ctx, err := dialect.Select(marker)
	if err != nil {
		return nil, err
	}
	s, err := aclset.Parse(ctx, name, text)
	if err != nil {
		return nil, err
	}
	e.record(s)
	return s, nil
}

// ParseSets parses several sets concurrently.
func (e *Engine) ParseSets(ctx context.Context, inputs []aclset.Input) ([]*aclset.Set, error) {
	sets, err := aclset.ParseAll(ctx, inputs, e.setLimit)
	if err != nil {
		return nil, err
	}
	for _, s := range sets {
		e.record(s)
	}
	return sets, nil
}

func (e *Engine) record(s *aclset.Set) {
	n := uint64(len(s.Rules))
	e.count(s.Context.Dialect, func(st *DialectStats) { st.Parsed += n })
	for _, rej := range s.Rejections {
		e.reject(s.Context, s.Name, "parse", rej.Line, rej.Err)
	}
}

func (e *Engine) reject(ctx dialect.Context, aclName, op, line string, err error) {
	kind := "other"
	if k := acl.KindOf(err); k != 0 {
		kind = k.String()
	}
	e.count(ctx.Dialect, func(s *DialectStats) {
		if s.Failures == nil {
			s.Failures = make(map[string]uint64)
		}
		s.Failures[kind]++
	})
	e.rejections.Add(logging.RejectionRecord{
		ACL:     aclName,
		Marker:  ctx.Marker,
		Dialect: ctx.Dialect.String(),
		Op:      op,
		Kind:    kind,
		Line:    line,
		Error:   err.Error(),
	})
}

func (e *Engine) count(d dialect.Dialect, fn func(*DialectStats)) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	s, ok := e.stats[d]
	if !ok {
		s = &DialectStats{Dialect: d.String()}
		e.stats[d] = s
	}
	fn(s)
}

// Stats returns a snapshot of the per-dialect counters, ordered by
// dialect name, and the number of successful conversions.
func (e *Engine) Stats() ([]DialectStats, uint64) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	out := make([]DialectStats, 0, len(e.stats))
	for _, s := range e.stats {
		c := *s
		if s.Failures != nil {
			c.Failures = make(map[string]uint64, len(s.Failures))
			for k, v := range s.Failures {
				c.Failures[k] = v
			}
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dialect < out[j].Dialect })
	return out, e.converted
}

// Diff parses two versions of a set and returns the device commands that
// turn the first into the second.
func (e *Engine) Diff(marker, name, fromText, toText string) ([]aclset.Change, error) {
	from, err := e.ParseSet(marker, name, fromText)
	if err != nil {
		return nil, err
	}
	to, err := e.ParseSet(marker, name, toText)
	if err != nil {
		return nil, err
	}
	return aclset.Diff(from, to)
}
