package daemon

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psaab/aclc/pkg/config"
	"github.com/psaab/aclc/pkg/engine"
	"github.com/psaab/aclc/pkg/grpcapi"
	"github.com/psaab/aclc/pkg/logging"
)

func writeConfig(t *testing.T, path, text string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
}

func TestRunServesGRPC(t *testing.T) {
	dir := t.TempDir()
	sock := filepath.Join(dir, "aclcd.sock")
	conf := filepath.Join(dir, "aclcd.conf")
	writeConfig(t, conf, `
system {
    grpc-address unix:`+sock+`;
    rejection-log { file `+filepath.Join(dir, "rejections.log")+`; }
}
access-lists { acl EDGE-IN { type ipv4; } }
`)

	d := New(Options{
		ConfigFile: conf,
		Level:      new(slog.LevelVar),
		Forward:    logging.NewForwardHandler(slog.NewTextHandler(io.Discard, nil)),
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(sock)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	c, err := grpcapi.Dial("unix:" + sock)
	require.NoError(t, err)
	defer c.Close()

	cctx, ccancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer ccancel()
	line, err := c.Convert(cctx, grpcapi.Target{ACL: "EDGE-IN"}, grpcapi.Target{Marker: "3000"}, "10 permit udp any any eq 53")
	require.NoError(t, err)
	assert.Equal(t, "rule 10 permit udp destination any destination-port eq 53", line)

	_, err = c.Parse(cctx, grpcapi.Target{ACL: "EDGE-IN"}, "10 permit bogus any any")
	assert.Equal(t, "unknown-protocol", grpcapi.KindOf(err))

	logPath := filepath.Join(dir, "rejections.log")
	assert.Eventually(t, func() bool {
		data, _ := os.ReadFile(logPath)
		return strings.Contains(string(data), "bogus")
	}, 5*time.Second, 20*time.Millisecond, "rejection should reach the log file")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not shut down")
	}
}

func TestRunBadConfig(t *testing.T) {
	conf := filepath.Join(t.TempDir(), "aclcd.conf")
	writeConfig(t, conf, "access-lists { acl X { type junos; } }")
	err := New(Options{ConfigFile: conf}).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestReload(t *testing.T) {
	conf := filepath.Join(t.TempDir(), "aclcd.conf")
	writeConfig(t, conf, `access-lists { acl EDGE-IN { type ipv4; } }`)

	d := New(Options{ConfigFile: conf})
	require.NoError(t, d.store.Load())
	eng, err := engine.New(engine.Options{ACLs: d.store.ActiveConfig().ACLMap()})
	require.NoError(t, err)
	d.engine = eng

	writeConfig(t, conf, `access-lists { acl EDGE-IN { type ipv6; } acl CORE { type 3000; } }`)
	d.reload()
	assert.Equal(t, map[string]string{"EDGE-IN": "ipv6", "CORE": "3000"}, eng.ACLs())
	assert.Len(t, d.store.History(), 1)

	// A broken file keeps the active table.
	writeConfig(t, conf, `access-lists { acl CORE { type 3000 } }`)
	d.reload()
	assert.Len(t, eng.ACLs(), 2)
	assert.Len(t, d.store.History(), 1)
}

func TestApplyLogging(t *testing.T) {
	lv := new(slog.LevelVar)
	d := New(Options{Level: lv})
	cfg, err := config.ParseText(`system { log-level error; }`)
	require.NoError(t, err)
	d.applyLogging(cfg)
	assert.Equal(t, "ERROR", lv.Level().String())

	d.opts.Debug = true
	d.applyLogging(cfg)
	assert.Equal(t, "DEBUG", lv.Level().String())
}

func TestAPIConfig(t *testing.T) {
	cfg, err := config.ParseText(`
system {
    api-address 127.0.0.1:8080;
    https-address 127.0.0.1:8443;
    tls-directory /tmp/aclc-tls;
    api-auth {
        user admin { password s3cret; }
        api-key [ tok-1 ];
    }
}`)
	require.NoError(t, err)
	ac := apiConfig(cfg, nil)
	assert.Equal(t, "127.0.0.1:8080", ac.Addr)
	assert.Equal(t, "127.0.0.1:8443", ac.HTTPSAddr)
	assert.True(t, ac.TLS)
	assert.Equal(t, "/tmp/aclc-tls", ac.CertDir)
	require.NotNil(t, ac.Auth)
	assert.Equal(t, map[string]string{"admin": "s3cret"}, ac.Auth.Users)
	assert.True(t, ac.Auth.APIKeys["tok-1"])

	cfg, err = config.ParseText(`system { api-address 127.0.0.1:8080; }`)
	require.NoError(t, err)
	ac = apiConfig(cfg, nil)
	assert.Nil(t, ac.Auth)
	assert.False(t, ac.TLS)
}

func TestAPIEnabled(t *testing.T) {
	tests := []struct {
		name string
		sys  config.SystemConfig
		want bool
	}{
		{"none", config.SystemConfig{}, false},
		{"http", config.SystemConfig{APIAddress: "127.0.0.1:8080"}, true},
		{"https only", config.SystemConfig{HTTPSAddress: "127.0.0.1:8443"}, true},
		{"both", config.SystemConfig{APIAddress: "127.0.0.1:8080", HTTPSAddress: "127.0.0.1:8443"}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, apiEnabled(tt.sys), tt.name)
	}
}
