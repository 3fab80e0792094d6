package configstore

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/psaab/aclc/pkg/config"
)

const baseConfig = `
system { api-address 127.0.0.1:8080; }
access-lists {
    acl EDGE-IN { type "ipv4 access-list"; }
    acl CORE { type 3000; }
}
`

const nextConfig = `
system { api-address 127.0.0.1:9090; }
access-lists {
    acl EDGE-IN { type ipv6; }
    acl TAP { type cubro; }
}
`

func newTestStore(t *testing.T, text string) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aclcd.conf")
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		t.Fatal(err)
	}
	s := New(path)
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}
	return s
}

func rewrite(t *testing.T, s *Store, text string) {
	t.Helper()
	if err := os.WriteFile(s.FilePath(), []byte(text), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadNonexistent(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing.conf"))
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg := s.ActiveConfig()
	if cfg == nil || len(cfg.AccessLists) != 0 {
		t.Fatalf("got %+v, want empty config", cfg)
	}
	if cfg.System.GRPCAddress != config.DefaultGRPCAddress {
		t.Errorf("grpc address %q, want default", cfg.System.GRPCAddress)
	}
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aclcd.conf")
	os.WriteFile(path, []byte("access-lists { acl X { type junos; } }"), 0644)
	s := New(path)
	if err := s.Load(); err == nil {
		t.Fatal("expected error for unknown marker")
	}
	if s.ActiveConfig() != nil {
		t.Error("failed load should not install a config")
	}
}

func TestReload(t *testing.T) {
	s := newTestStore(t, baseConfig)
	old := s.ActiveConfig()
	rewrite(t, s, nextConfig)

	var applied *config.Config
	cfg, err := s.Reload(func(c *config.Config) error {
		applied = c
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if applied != cfg || s.ActiveConfig() != cfg {
		t.Error("reloaded config not active")
	}
	hist := s.History()
	if len(hist) != 1 || hist[0].Config != old || hist[0].Reason != "reload" {
		t.Errorf("history %+v", hist)
	}
	want := ACLChanges{Added: []string{"TAP"}, Removed: []string{"CORE"}, Changed: []string{"EDGE-IN"}}
	if !reflect.DeepEqual(hist[0].Changes, want) {
		t.Errorf("recorded changes %+v, want %+v", hist[0].Changes, want)
	}
}

func TestReloadApplyFails(t *testing.T) {
	s := newTestStore(t, baseConfig)
	old := s.ActiveConfig()
	rewrite(t, s, nextConfig)

	boom := errors.New("boom")
	if _, err := s.Reload(func(*config.Config) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("got %v, want boom", err)
	}
	if s.ActiveConfig() != old {
		t.Error("failed apply replaced the active config")
	}
	if len(s.History()) != 0 {
		t.Error("failed apply recorded history")
	}
}

func TestReloadParseError(t *testing.T) {
	s := newTestStore(t, baseConfig)
	old := s.ActiveConfig()
	rewrite(t, s, "system { log-level }")
	called := false
	if _, err := s.Reload(func(*config.Config) error { called = true; return nil }); err == nil {
		t.Fatal("expected parse error")
	}
	if called || s.ActiveConfig() != old {
		t.Error("broken file should not be applied")
	}
}

func TestRollback(t *testing.T) {
	s := newTestStore(t, baseConfig)
	first := s.ActiveConfig()
	rewrite(t, s, nextConfig)
	if _, err := s.Reload(nil); err != nil {
		t.Fatal(err)
	}
	second := s.ActiveConfig()

	cfg, err := s.Rollback(0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg != first || s.ActiveConfig() != first {
		t.Error("rollback 0 should restore the first config")
	}
	hist := s.History()
	if len(hist) != 2 || hist[0].Config != second || hist[0].Reason != "rollback 0" {
		t.Errorf("history %+v", hist)
	}

	if _, err := s.Rollback(5, nil); err == nil {
		t.Error("expected error for missing history entry")
	}
}

func TestHistory(t *testing.T) {
	h := NewHistory(3)
	if _, err := h.Get(0); err == nil {
		t.Error("Get(0) on an empty history should fail")
	}
	for i := 0; i < 5; i++ {
		h.Push(&HistoryEntry{Reason: string(rune('a' + i))})
	}
	if h.Len() != 3 {
		t.Fatalf("len %d, want 3", h.Len())
	}
	var got []string
	for _, e := range h.List() {
		got = append(got, e.Reason)
	}
	if want := []string{"e", "d", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if e, err := h.Get(2); err != nil || e.Reason != "c" {
		t.Errorf("Get(2) = %+v, %v", e, err)
	}
	if _, err := h.Get(3); err == nil {
		t.Error("Get(3) should fail")
	}
}

func TestHistoryEntryString(t *testing.T) {
	e := &HistoryEntry{
		ReplacedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Reason:     "reload",
		Changes:    ACLChanges{Added: []string{"A", "B"}, Changed: []string{"C"}},
	}
	if got, want := e.String(), "2026-01-02T03:04:05Z reload: +2 -0 ~1 acls"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCompareACLs(t *testing.T) {
	a, err := config.ParseText(baseConfig)
	if err != nil {
		t.Fatal(err)
	}
	b, err := config.ParseText(nextConfig)
	if err != nil {
		t.Fatal(err)
	}
	got := CompareACLs(a, b)
	want := ACLChanges{Added: []string{"TAP"}, Removed: []string{"CORE"}, Changed: []string{"EDGE-IN"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if !CompareACLs(a, a).Empty() {
		t.Error("self compare should be empty")
	}
	if got := CompareACLs(nil, a); len(got.Added) != 2 {
		t.Errorf("compare from nil %+v", got)
	}
}

func TestRestartRequired(t *testing.T) {
	a, _ := config.ParseText(baseConfig)
	b, _ := config.ParseText(nextConfig)
	if got := RestartRequired(a, b); !reflect.DeepEqual(got, []string{"api-address"}) {
		t.Errorf("got %v", got)
	}
	if got := RestartRequired(a, a); len(got) != 0 {
		t.Errorf("self %v", got)
	}
}
