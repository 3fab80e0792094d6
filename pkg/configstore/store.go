// Package configstore holds the daemon's active configuration and swaps
// in new versions of the configuration file on reload, keeping the
// previous versions for rollback.
package configstore

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/psaab/aclc/pkg/config"
)

// ApplyFunc installs a configuration. Returning an error leaves the
// previous configuration active.
type ApplyFunc func(*config.Config) error

// Store manages the active configuration.
type Store struct {
	mu       sync.RWMutex
	active   *config.Config
	history  *History
	filePath string
}

// New creates a new config store.
func New(filePath string) *Store {
	return &Store{
		history:  NewHistory(10),
		filePath: filePath,
	}
}

// FilePath returns the configuration file.
func (s *Store) FilePath() string {
	return s.filePath
}

// read loads the file. A missing file yields the default configuration.
func (s *Store) read() (*config.Config, error) {
	cfg, err := config.Load(s.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return config.ParseText("")
	}
	return cfg, err
}

// Load reads the configuration file and makes it active.
func (s *Store) Load() error {
	cfg, err := s.read()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.active = cfg
	s.mu.Unlock()
	return nil
}

// Reload re-reads the configuration file and hands it to apply. The new
// configuration becomes active only when apply succeeds; the old one is
// pushed to the history.
func (s *Store) Reload(apply ApplyFunc) (*config.Config, error) {
	cfg, err := s.read()
	if err != nil {
		return nil, err
	}
	if err := s.install(cfg, apply, "reload"); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Rollback re-applies the nth previous configuration (0 = most recent).
func (s *Store) Rollback(n int, apply ApplyFunc) (*config.Config, error) {
	s.mu.RLock()
	entry, err := s.history.Get(n)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	if err := s.install(entry.Config, apply, fmt.Sprintf("rollback %d", n)); err != nil {
		return nil, err
	}
	return entry.Config, nil
}

func (s *Store) install(cfg *config.Config, apply ApplyFunc, reason string) error {
	if apply != nil {
		if err := apply(cfg); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		s.history.Push(&HistoryEntry{
			Config:     s.active,
			ReplacedAt: time.Now(),
			Reason:     reason,
			Changes:    CompareACLs(s.active, cfg),
		})
	}
	s.active = cfg
	return nil
}

// ActiveConfig returns the active configuration, or nil before Load.
func (s *Store) ActiveConfig() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// History returns the previous configurations, most recent first.
func (s *Store) History() []*HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.List()
}

// ACLChanges lists the ACL names added, removed or retyped between two
// configurations, each sorted.
type ACLChanges struct {
	Added   []string
	Removed []string
	Changed []string
}

// Empty reports whether nothing changed.
func (c ACLChanges) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Changed) == 0
}

// CompareACLs compares the access-lists of two configurations. A nil
// configuration has no ACLs.
func CompareACLs(from, to *config.Config) ACLChanges {
	old := map[string]string{}
	if from != nil {
		old = from.ACLMap()
	}
	cur := map[string]string{}
	if to != nil {
		cur = to.ACLMap()
	}

	var c ACLChanges
	for name, marker := range cur {
		prev, ok := old[name]
		switch {
		case !ok:
			c.Added = append(c.Added, name)
		case prev != marker:
			c.Changed = append(c.Changed, name)
		}
	}
	for name := range old {
		if _, ok := cur[name]; !ok {
			c.Removed = append(c.Removed, name)
		}
	}
	slices.Sort(c.Added)
	slices.Sort(c.Removed)
	slices.Sort(c.Changed)
	return c
}

// RestartRequired lists system settings that differ between two
// configurations but only take effect on restart.
func RestartRequired(from, to *config.Config) []string {
	if from == nil || to == nil {
		return nil
	}
	var out []string
	a, b := from.System, to.System
	if a.GRPCAddress != b.GRPCAddress {
		out = append(out, "grpc-address")
	}
	if a.APIAddress != b.APIAddress {
		out = append(out, "api-address")
	}
	if a.HTTPSAddress != b.HTTPSAddress {
		out = append(out, "https-address")
	}
	if a.TLSDirectory != b.TLSDirectory {
		out = append(out, "tls-directory")
	}
	if a.RejectionBuffer != b.RejectionBuffer {
		out = append(out, "rejection-buffer")
	}
	if !equalRejectionLog(a.RejectionLog, b.RejectionLog) {
		out = append(out, "rejection-log")
	}
	if !equalAuth(a.APIAuth, b.APIAuth) {
		out = append(out, "api-auth")
	}
	return out
}

func equalRejectionLog(a, b *config.RejectionLogConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalAuth(a, b *config.APIAuthConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return slices.Equal(a.Users, b.Users) && slices.Equal(a.APIKeys, b.APIKeys)
}
