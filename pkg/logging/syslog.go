package logging

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"
)

// RFC 3164 severities used for slog levels.
const (
	severityError   = 3
	severityWarning = 4
	severityInfo    = 6
	severityDebug   = 7
)

// facility local0
const syslogFacility = 16

// SyslogClient sends log lines to a remote syslog server over UDP.
type SyslogClient struct {
	conn     net.Conn
	hostname string
	MinLevel slog.Level
}

// NewSyslogClient dials addr ("host" or "host:port", port 514 by default).
func NewSyslogClient(addr string, min slog.Level) (*SyslogClient, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "514")
	}
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial syslog %s: %w", addr, err)
	}
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "aclc"
	}
	return &SyslogClient{conn: conn, hostname: hostname, MinLevel: min}, nil
}

// Enabled reports whether records at level pass the client's threshold.
func (s *SyslogClient) Enabled(level slog.Level) bool {
	return level >= s.MinLevel
}

// Send writes one message.
func (s *SyslogClient) Send(level slog.Level, msg string) error {
	priority := syslogFacility*8 + levelSeverity(level)
	line := fmt.Sprintf("<%d>%s %s aclcd: %s", priority, time.Now().Format(time.Stamp), s.hostname, msg)
	_, err := s.conn.Write([]byte(line))
	return err
}

// Close closes the connection.
func (s *SyslogClient) Close() error {
	return s.conn.Close()
}

func levelSeverity(level slog.Level) int {
	switch {
	case level >= slog.LevelError:
		return severityError
	case level >= slog.LevelWarn:
		return severityWarning
	case level >= slog.LevelInfo:
		return severityInfo
	default:
		return severityDebug
	}
}

// ParseLevel converts a configuration level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", name)
}
