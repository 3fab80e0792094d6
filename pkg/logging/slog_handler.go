package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Sink receives formatted log lines from a ForwardHandler.
type Sink interface {
	Enabled(level slog.Level) bool
	Send(level slog.Level, msg string) error
}

// ForwardHandler is an slog.Handler that copies records to a set of sinks
// in addition to a wrapped base handler (typically stderr).
type ForwardHandler struct {
	base   slog.Handler
	state  *sinkSet
	attrs  []slog.Attr
	groups []string
}

// sinkSet is shared by every handler derived through WithAttrs/WithGroup
// so SetSinks reaches all of them.
type sinkSet struct {
	mu    sync.RWMutex
	sinks []Sink
}

// NewForwardHandler wraps base.
func NewForwardHandler(base slog.Handler) *ForwardHandler {
	return &ForwardHandler{base: base, state: &sinkSet{}}
}

// SetSinks replaces the sinks and returns the previous ones so the caller
// can close them.
func (h *ForwardHandler) SetSinks(sinks ...Sink) []Sink {
	h.state.mu.Lock()
	old := h.state.sinks
	h.state.sinks = sinks
	h.state.mu.Unlock()
	return old
}

// Enabled implements slog.Handler.
func (h *ForwardHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *ForwardHandler) Handle(ctx context.Context, r slog.Record) error {
	err := h.base.Handle(ctx, r)

	h.state.mu.RLock()
	sinks := h.state.sinks
	h.state.mu.RUnlock()

	var msg string
	for _, s := range sinks {
		if !s.Enabled(r.Level) {
			continue
		}
		if msg == "" {
			msg = formatRecord(r, h.attrs, h.groups)
		}
		s.Send(r.Level, msg)
	}
	return err
}

// WithAttrs implements slog.Handler.
func (h *ForwardHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ForwardHandler{
		base:   h.base.WithAttrs(attrs),
		state:  h.state,
		attrs:  append(append([]slog.Attr{}, h.attrs...), attrs...),
		groups: h.groups,
	}
}

// WithGroup implements slog.Handler.
func (h *ForwardHandler) WithGroup(name string) slog.Handler {
	return &ForwardHandler{
		base:   h.base.WithGroup(name),
		state:  h.state,
		attrs:  h.attrs,
		groups: append(append([]string{}, h.groups...), name),
	}
}

// formatRecord renders "msg key=value ..." with group-qualified keys.
func formatRecord(r slog.Record, preAttrs []slog.Attr, groups []string) string {
	var b strings.Builder
	b.WriteString(r.Message)
	for _, a := range preAttrs {
		fmt.Fprintf(&b, " %s=%s", a.Key, a.Value.String())
	}
	r.Attrs(func(a slog.Attr) bool {
		key := a.Key
		if len(groups) > 0 {
			key = strings.Join(groups, ".") + "." + key
		}
		fmt.Fprintf(&b, " %s=%s", key, a.Value.String())
		return true
	})
	return b.String()
}
