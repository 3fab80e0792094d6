// Package daemon implements the aclcd lifecycle.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/psaab/aclc/pkg/api"
	"github.com/psaab/aclc/pkg/config"
	"github.com/psaab/aclc/pkg/configstore"
	"github.com/psaab/aclc/pkg/engine"
	"github.com/psaab/aclc/pkg/grpcapi"
	"github.com/psaab/aclc/pkg/logging"
)

// DefaultConfigFile is used when Options.ConfigFile is empty.
const DefaultConfigFile = "/etc/aclc/aclcd.conf"

// Options configures the daemon.
type Options struct {
	ConfigFile string
	Debug      bool // force debug logging regardless of system log-level

	// Logging plumbing installed by main. Level follows the configured
	// log-level and Forward receives the syslog sinks; either may be nil.
	Level   *slog.LevelVar
	Forward *logging.ForwardHandler
}

// Daemon is the main aclc daemon.
type Daemon struct {
	opts   Options
	store  *configstore.Store
	engine *engine.Engine
}

// New creates a new Daemon.
func New(opts Options) *Daemon {
	if opts.ConfigFile == "" {
		opts.ConfigFile = DefaultConfigFile
	}

	return &Daemon{
		opts:  opts,
		store: configstore.New(opts.ConfigFile),
	}
}

// Engine returns the translation engine, nil before Run has loaded the
// configuration.
func (d *Daemon) Engine() *engine.Engine {
	return d.engine
}

// Run starts the daemon and blocks until shutdown.
func (d *Daemon) Run(ctx context.Context) error {
	slog.Info("starting aclc daemon",
		"config", d.opts.ConfigFile,
		"pid", os.Getpid())

	if err := d.store.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := d.store.ActiveConfig()
	d.applyLogging(cfg)

	eng, err := engine.New(engine.Options{
		ACLs:          cfg.ACLMap(),
		RejectionSize: cfg.System.RejectionBuffer,
	})
	if err != nil {
		return err
	}
	d.engine = eng
	slog.Info("configuration loaded", "file", d.opts.ConfigFile, "acls", len(cfg.AccessLists))

	// Handle signals for clean shutdown
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	var rejLog *logging.RejectionLog
	if rc := cfg.System.RejectionLog; rc != nil {
		rejLog, err = logging.NewRejectionLog(logging.RejectionLogConfig{
			Path:     rc.File,
			MaxSize:  rc.MaxSize,
			MaxFiles: rc.Files,
		})
		if err != nil {
			slog.Warn("rejection log disabled", "err", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if rejLog != nil {
		sub := eng.Rejections().Subscribe(256)
		g.Go(func() error {
			defer sub.Close()
			rejLog.Follow(sub, gctx.Done())
			return nil
		})
	}

	grpcSrv := grpcapi.NewServer(cfg.System.GRPCAddress, eng)
	g.Go(func() error {
		if err := grpcSrv.Run(gctx); err != nil {
			return fmt.Errorf("gRPC: %w", err)
		}
		return nil
	})

	if apiEnabled(cfg.System) {
		apiSrv := api.NewServer(apiConfig(cfg, eng))
		g.Go(func() error {
			if err := apiSrv.Run(gctx); err != nil {
				return fmt.Errorf("HTTP API: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-hup:
				d.reload()
			}
		}
	})

	<-gctx.Done()
	if ctx.Err() != nil {
		slog.Info("signal received, shutting down")
	}
	stop()
	runErr := g.Wait()

	if rejLog != nil {
		rejLog.Close()
	}
	if d.opts.Forward != nil {
		closeSinks(d.opts.Forward.SetSinks())
	}

	logFinalStats(eng)
	slog.Info("shutdown complete")
	return runErr
}

// reload re-reads the configuration file and swaps in its ACL table and
// logging settings. Listener and storage settings need a restart.
func (d *Daemon) reload() {
	prev := d.store.ActiveConfig()
	cfg, err := d.store.Reload(func(cfg *config.Config) error {
		return d.engine.SetACLs(cfg.ACLMap())
	})
	if err != nil {
		slog.Warn("configuration reload failed, keeping active configuration", "err", err)
		return
	}
	d.applyLogging(cfg)

	if hist := d.store.History(); len(hist) > 0 {
		last := hist[0]
		slog.Info("configuration reloaded",
			"history", last.String(),
			"added", last.Changes.Added,
			"removed", last.Changes.Removed,
			"changed", last.Changes.Changed)
	}
	if pending := configstore.RestartRequired(prev, cfg); len(pending) > 0 {
		slog.Warn("settings take effect after restart", "settings", pending)
	}
}

// applyLogging sets the log level and syslog forwarding from cfg.
func (d *Daemon) applyLogging(cfg *config.Config) {
	if d.opts.Level != nil {
		level, err := logging.ParseLevel(cfg.System.LogLevel)
		if err != nil {
			level = slog.LevelInfo
		}
		if d.opts.Debug {
			level = slog.LevelDebug
		}
		d.opts.Level.Set(level)
	}
	if d.opts.Forward != nil {
		closeSinks(d.opts.Forward.SetSinks(syslogSinks(cfg)...))
	}
}

// syslogSinks constructs syslog clients from the config.
func syslogSinks(cfg *config.Config) []logging.Sink {
	var sinks []logging.Sink
	for _, srv := range cfg.System.Syslog {
		level, err := logging.ParseLevel(srv.Severity)
		if err != nil {
			level = slog.LevelWarn
		}
		client, err := logging.NewSyslogClient(srv.Host, level)
		if err != nil {
			slog.Warn("failed to create syslog client", "host", srv.Host, "err", err)
			continue
		}
		slog.Info("syslog server configured", "host", srv.Host, "severity", srv.Severity)
		sinks = append(sinks, client)
	}
	return sinks
}

func closeSinks(sinks []logging.Sink) {
	for _, s := range sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			c.Close()
		}
	}
}

// apiEnabled reports whether any HTTP API listener is configured.
func apiEnabled(sys config.SystemConfig) bool {
	return sys.APIAddress != "" || sys.HTTPSAddress != ""
}

// apiConfig builds the HTTP API settings, including credentials.
func apiConfig(cfg *config.Config, eng *engine.Engine) api.Config {
	ac := api.Config{
		Addr:      cfg.System.APIAddress,
		HTTPSAddr: cfg.System.HTTPSAddress,
		TLS:       cfg.System.HTTPSAddress != "",
		CertDir:   cfg.System.TLSDirectory,
		Engine:    eng,
	}
	if auth := cfg.System.APIAuth; auth != nil {
		ac.Auth = &api.AuthConfig{
			Users:   make(map[string]string, len(auth.Users)),
			APIKeys: make(map[string]bool, len(auth.APIKeys)),
		}
		for _, u := range auth.Users {
			ac.Auth.Users[u.Name] = u.Password
		}
		for _, k := range auth.APIKeys {
			ac.Auth.APIKeys[k] = true
		}
	}
	return ac
}

// logFinalStats logs per-dialect counters before shutdown.
func logFinalStats(eng *engine.Engine) {
	stats, conversions := eng.Stats()
	for _, st := range stats {
		var failures uint64
		for _, n := range st.Failures {
			failures += n
		}
		slog.Info("final statistics",
			"dialect", st.Dialect,
			"parsed", st.Parsed,
			"rendered", st.Rendered,
			"deleted", st.Deleted,
			"failures", failures)
	}
	slog.Info("final statistics", "conversions", conversions, "rejections", eng.Rejections().Total())
}
