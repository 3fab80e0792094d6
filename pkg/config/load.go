package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/psaab/aclc/pkg/dialect"
	"github.com/psaab/aclc/pkg/logging"
)

// IsYAML reports whether file is loaded as YAML rather than hierarchical
// text.
func IsYAML(file string) bool {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load reads, compiles and validates a configuration file.
func Load(file string) (*Config, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var cfg *Config
	if IsYAML(file) {
		cfg, err = ParseYAML(data)
	} else {
		cfg, err = ParseText(string(data))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return cfg, nil
}

// ParseText compiles and validates hierarchical configuration text.
func ParseText(text string) (*Config, error) {
	tree, errs := NewParser(text).Parse()
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	cfg, err := CompileConfig(tree)
	if err != nil {
		return nil, err
	}
	return finish(cfg)
}

// ParseYAML compiles and validates a YAML configuration.
func ParseYAML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, err
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every setting and reports all problems at once.
func Validate(cfg *Config) error {
	var errs []error

	if _, err := logging.ParseLevel(cfg.System.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("system log-level: %w", err))
	}
	if err := checkListen(cfg.System.GRPCAddress, true); err != nil {
		errs = append(errs, fmt.Errorf("system grpc-address: %w", err))
	}
	if cfg.System.APIAddress != "" {
		if err := checkListen(cfg.System.APIAddress, false); err != nil {
			errs = append(errs, fmt.Errorf("system api-address: %w", err))
		}
	}
	if cfg.System.HTTPSAddress != "" {
		if err := checkListen(cfg.System.HTTPSAddress, false); err != nil {
			errs = append(errs, fmt.Errorf("system https-address: %w", err))
		}
	}
	for _, s := range cfg.System.Syslog {
		if s.Host == "" {
			errs = append(errs, fmt.Errorf("system syslog: host required"))
		}
		if _, err := logging.ParseLevel(s.Severity); err != nil {
			errs = append(errs, fmt.Errorf("system syslog host %s: %w", s.Host, err))
		}
	}
	if auth := cfg.System.APIAuth; auth != nil {
		for _, u := range auth.Users {
			if u.Name == "" || u.Password == "" {
				errs = append(errs, fmt.Errorf("system api-auth: user %q needs a name and password", u.Name))
			}
		}
	}

	seen := make(map[string]bool)
	for _, a := range cfg.AccessLists {
		switch {
		case a.Name == "":
			errs = append(errs, fmt.Errorf("access-lists: acl without a name"))
			continue
		case seen[a.Name]:
			errs = append(errs, fmt.Errorf("access-lists: acl %s defined twice", a.Name))
		}
		seen[a.Name] = true
		if a.Type == "" {
			errs = append(errs, fmt.Errorf("access-lists: acl %s: type required", a.Name))
			continue
		}
		if _, err := dialect.Select(a.Type); err != nil {
			errs = append(errs, fmt.Errorf("access-lists: acl %s: %w", a.Name, err))
		}
	}
	return errors.Join(errs...)
}

// checkListen accepts host:port, or unix:/path when unixOK.
func checkListen(addr string, unixOK bool) error {
	if path, ok := strings.CutPrefix(addr, "unix:"); ok {
		if !unixOK {
			return fmt.Errorf("%q: unix sockets not supported here", addr)
		}
		if !filepath.IsAbs(path) {
			return fmt.Errorf("%q: socket path must be absolute", addr)
		}
		return nil
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return err
	}
	return nil
}
