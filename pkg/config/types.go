package config

// Config is the complete daemon configuration.
type Config struct {
	System      SystemConfig `yaml:"system"`
	AccessLists []ACL        `yaml:"access-lists"`
}

// SystemConfig holds daemon-wide settings.
type SystemConfig struct {
	LogLevel        string              `yaml:"log-level"`
	GRPCAddress     string              `yaml:"grpc-address"`  // host:port or unix:/path
	APIAddress      string              `yaml:"api-address"`   // empty disables the HTTP API
	HTTPSAddress    string              `yaml:"https-address"` // served with a self-signed certificate
	TLSDirectory    string              `yaml:"tls-directory"`
	RejectionBuffer int                 `yaml:"rejection-buffer"`
	Syslog          []SyslogServer      `yaml:"syslog"`
	RejectionLog    *RejectionLogConfig `yaml:"rejection-log"`
	APIAuth         *APIAuthConfig      `yaml:"api-auth"`
}

// SyslogServer is a remote syslog destination.
type SyslogServer struct {
	Host     string `yaml:"host"`
	Severity string `yaml:"severity"` // minimum level forwarded, default warning
}

// RejectionLogConfig enables the on-disk rejection log.
type RejectionLogConfig struct {
	File    string `yaml:"file"`
	MaxSize int64  `yaml:"max-size"` // bytes
	Files   int    `yaml:"files"`
}

// APIAuthConfig lists HTTP API credentials.
type APIAuthConfig struct {
	Users   []APIUser `yaml:"users"`
	APIKeys []string  `yaml:"api-keys"`
}

// APIUser is one Basic auth account.
type APIUser struct {
	Name     string `yaml:"name"`
	Password string `yaml:"password"`
}

// ACL binds an ACL name to the set marker that selects its dialect.
type ACL struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description,omitempty"`
}

// Defaults used when the configuration leaves a setting out.
const (
	DefaultGRPCAddress = "127.0.0.1:50051"
	DefaultLogLevel    = "info"
)

// ACLMap returns ACL name -> marker.
func (c *Config) ACLMap() map[string]string {
	m := make(map[string]string, len(c.AccessLists))
	for _, a := range c.AccessLists {
		m[a.Name] = a.Type
	}
	return m
}

func (c *Config) applyDefaults() {
	if c.System.GRPCAddress == "" {
		c.System.GRPCAddress = DefaultGRPCAddress
	}
	if c.System.LogLevel == "" {
		c.System.LogLevel = DefaultLogLevel
	}
	for i := range c.System.Syslog {
		if c.System.Syslog[i].Severity == "" {
			c.System.Syslog[i].Severity = "warning"
		}
	}
}
