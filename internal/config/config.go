// Package config provides configuration parsing and validation for the
// relay server.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RelayConfig is the complete configuration for a relay deployment.
type RelayConfig struct {
	// Address is the TCP address the relay listens on for peer
	// connections (e.g. "0.0.0.0:4545").
	Address string `yaml:"address"`

	// MaxClients bounds how many peers may be waiting for a partner at
	// once. 0 means unlimited.
	MaxClients int `yaml:"max_clients"`

	// PeerTimeout bounds how long a peer waits for its partner before
	// the relay closes its connection.
	PeerTimeout time.Duration `yaml:"peer_timeout"`

	// MetricsAddress, if non-empty, is the address to serve Prometheus
	// metrics on (e.g. "127.0.0.1:9090"). Empty disables metrics.
	MetricsAddress string `yaml:"metrics_address"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// LogFormat is one of text, json.
	LogFormat string `yaml:"log_format"`
}

// Default returns the relay's out-of-the-box configuration.
func Default() *RelayConfig {
	return &RelayConfig{
		Address:        ":4545",
		MaxClients:     1000,
		PeerTimeout:    30 * time.Second,
		MetricsAddress: "",
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// Load reads and parses a relay configuration file.
func Load(path string) (*RelayConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses a relay configuration from YAML bytes, after expanding
// ${VAR}/${VAR:-default} references against the environment.
func Parse(data []byte) (*RelayConfig, error) {
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// envVarRegex matches ${VAR}, ${VAR:-default}, or $VAR patterns.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		var name string
		if strings.HasPrefix(match, "${") {
			name = match[2 : len(match)-1]
		} else {
			name = match[1:]
		}

		if idx := strings.Index(name, ":-"); idx != -1 {
			varName := name[:idx]
			defaultVal := name[idx+2:]
			if val, ok := os.LookupEnv(varName); ok {
				return val
			}
			return defaultVal
		}

		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

// Validate checks the configuration for internal consistency.
func (c *RelayConfig) Validate() error {
	var errs []string

	if c.Address == "" {
		errs = append(errs, "address is required")
	}
	if c.MaxClients < 0 {
		errs = append(errs, "max_clients must be >= 0 (0 = unlimited)")
	}
	if c.PeerTimeout <= 0 {
		errs = append(errs, "peer_timeout must be positive")
	}
	if !isValidLogLevel(c.LogLevel) {
		errs = append(errs, fmt.Sprintf("invalid log_level: %s (must be debug, info, warn, or error)", c.LogLevel))
	}
	if !isValidLogFormat(c.LogFormat) {
		errs = append(errs, fmt.Sprintf("invalid log_format: %s (must be text or json)", c.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func isValidLogFormat(format string) bool {
	switch format {
	case "text", "json":
		return true
	default:
		return false
	}
}

// Redacted returns a copy of the config safe to log or display. The relay
// config carries no secret fields today, but the hook is kept so a future
// field (e.g. a metrics-endpoint auth token) has somewhere to redact
// itself without every caller needing to change.
func (c *RelayConfig) Redacted() *RelayConfig {
	redacted := *c
	return &redacted
}
