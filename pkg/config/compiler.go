package config

import (
	"fmt"
	"strconv"
	"strings"
)

// CompileConfig converts a parsed ConfigTree into a typed Config. Unknown
// statements are errors so that typos do not silently change behavior.
func CompileConfig(tree *ConfigTree) (*Config, error) {
	cfg := &Config{}

	for _, node := range tree.Children {
		switch node.Name() {
		case "system":
			if err := compileSystem(node, &cfg.System); err != nil {
				return nil, fmt.Errorf("system: %w", err)
			}
		case "access-lists":
			if err := compileAccessLists(node, cfg); err != nil {
				return nil, fmt.Errorf("access-lists: %w", err)
			}
		default:
			return nil, unknownStatement(node)
		}
	}
	return cfg, nil
}

func unknownStatement(n *Node) error {
	return fmt.Errorf("line %d: unknown statement %q", n.Line, n.KeyPath())
}

// leafValue returns the single argument of "name value;".
func leafValue(n *Node) (string, error) {
	if !n.IsLeaf || len(n.Keys) != 2 {
		return "", fmt.Errorf("line %d: %s takes exactly one value", n.Line, n.Name())
	}
	return n.Keys[1], nil
}

func leafInt(n *Node) (int, error) {
	v, err := leafValue(n)
	if err != nil {
		return 0, err
	}
	i, err := strconv.Atoi(v)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("line %d: %s: invalid number %q", n.Line, n.Name(), v)
	}
	return i, nil
}

func compileSystem(node *Node, sys *SystemConfig) error {
	for _, child := range node.Children {
		var err error
		switch child.Name() {
		case "log-level":
			sys.LogLevel, err = leafValue(child)
		case "grpc-address":
			sys.GRPCAddress, err = leafValue(child)
		case "api-address":
			sys.APIAddress, err = leafValue(child)
		case "https-address":
			sys.HTTPSAddress, err = leafValue(child)
		case "tls-directory":
			sys.TLSDirectory, err = leafValue(child)
		case "rejection-buffer":
			sys.RejectionBuffer, err = leafInt(child)
		case "syslog":
			err = compileSyslog(child, sys)
		case "rejection-log":
			sys.RejectionLog, err = compileRejectionLog(child)
		case "api-auth":
			sys.APIAuth, err = compileAPIAuth(child)
		default:
			err = unknownStatement(child)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// compileSyslog reads
//
//	syslog { host 192.0.2.10 { severity warning; } host 192.0.2.11; }
func compileSyslog(node *Node, sys *SystemConfig) error {
	for _, h := range node.Children {
		if h.Name() != "host" || len(h.Keys) != 2 {
			return unknownStatement(h)
		}
		srv := SyslogServer{Host: h.Keys[1]}
		for _, prop := range h.Children {
			if prop.Name() != "severity" {
				return unknownStatement(prop)
			}
			v, err := leafValue(prop)
			if err != nil {
				return err
			}
			srv.Severity = v
		}
		sys.Syslog = append(sys.Syslog, srv)
	}
	return nil
}

func compileRejectionLog(node *Node) (*RejectionLogConfig, error) {
	rl := &RejectionLogConfig{}
	for _, child := range node.Children {
		var err error
		switch child.Name() {
		case "file":
			rl.File, err = leafValue(child)
		case "max-size":
			var v string
			if v, err = leafValue(child); err == nil {
				rl.MaxSize, err = parseSize(v)
				if err != nil {
					err = fmt.Errorf("line %d: max-size: %w", child.Line, err)
				}
			}
		case "files":
			rl.Files, err = leafInt(child)
		default:
			err = unknownStatement(child)
		}
		if err != nil {
			return nil, err
		}
	}
	return rl, nil
}

// parseSize accepts a byte count with an optional k, m or g suffix.
func parseSize(s string) (int64, error) {
	mult := int64(1)
	switch {
	case strings.HasSuffix(s, "k"):
		mult, s = 1<<10, strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		mult, s = 1<<20, strings.TrimSuffix(s, "m")
	case strings.HasSuffix(s, "g"):
		mult, s = 1<<30, strings.TrimSuffix(s, "g")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n * mult, nil
}

// compileAPIAuth reads
//
//	api-auth { user admin { password "secret"; } api-key "token"; }
func compileAPIAuth(node *Node) (*APIAuthConfig, error) {
	auth := &APIAuthConfig{}
	for _, child := range node.Children {
		switch child.Name() {
		case "user":
			if len(child.Keys) != 2 {
				return nil, fmt.Errorf("line %d: user takes a name", child.Line)
			}
			u := APIUser{Name: child.Keys[1]}
			for _, prop := range child.Children {
				if prop.Name() != "password" {
					return nil, unknownStatement(prop)
				}
				v, err := leafValue(prop)
				if err != nil {
					return nil, err
				}
				u.Password = v
			}
			auth.Users = append(auth.Users, u)
		case "api-key":
			// api-key "a"; or api-key [ "a" "b" ];
			if !child.IsLeaf || len(child.Keys) < 2 {
				return nil, fmt.Errorf("line %d: api-key takes a value", child.Line)
			}
			auth.APIKeys = append(auth.APIKeys, child.Keys[1:]...)
		default:
			return nil, unknownStatement(child)
		}
	}
	return auth, nil
}

// compileAccessLists reads
//
//	access-lists { acl EDGE-IN { type "ipv4 access-list"; description "..."; } }
func compileAccessLists(node *Node, cfg *Config) error {
	for _, child := range node.Children {
		if child.Name() != "acl" || len(child.Keys) != 2 || child.IsLeaf {
			return fmt.Errorf("line %d: expected acl NAME { ... }", child.Line)
		}
		a := ACL{Name: child.Keys[1]}
		for _, prop := range child.Children {
			var err error
			switch prop.Name() {
			case "type":
				a.Type, err = leafValue(prop)
			case "description":
				a.Description, err = leafValue(prop)
			default:
				err = unknownStatement(prop)
			}
			if err != nil {
				return fmt.Errorf("acl %s: %w", a.Name, err)
			}
		}
		cfg.AccessLists = append(cfg.AccessLists, a)
	}
	return nil
}
