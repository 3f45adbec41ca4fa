package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Address != ":4545" {
		t.Errorf("Address = %s, want :4545", cfg.Address)
	}
	if cfg.MaxClients != 1000 {
		t.Errorf("MaxClients = %d, want 1000", cfg.MaxClients)
	}
	if cfg.PeerTimeout != 30*time.Second {
		t.Errorf("PeerTimeout = %s, want 30s", cfg.PeerTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got: %v", err)
	}
}

func TestParse_ValidConfig(t *testing.T) {
	yamlConfig := `
address: "0.0.0.0:4545"
max_clients: 500
peer_timeout: 15s
metrics_address: "127.0.0.1:9090"
log_level: "debug"
log_format: "json"
`
	cfg, err := Parse([]byte(yamlConfig))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Address != "0.0.0.0:4545" {
		t.Errorf("Address = %s, want 0.0.0.0:4545", cfg.Address)
	}
	if cfg.MaxClients != 500 {
		t.Errorf("MaxClients = %d, want 500", cfg.MaxClients)
	}
	if cfg.PeerTimeout != 15*time.Second {
		t.Errorf("PeerTimeout = %s, want 15s", cfg.PeerTimeout)
	}
	if cfg.MetricsAddress != "127.0.0.1:9090" {
		t.Errorf("MetricsAddress = %s, want 127.0.0.1:9090", cfg.MetricsAddress)
	}
}

func TestParse_InvalidLogLevel(t *testing.T) {
	_, err := Parse([]byte(`log_level: "verbose"`))
	if err == nil {
		t.Fatalf("expected error for invalid log_level")
	}
}

func TestParse_NonPositivePeerTimeout(t *testing.T) {
	_, err := Parse([]byte(`peer_timeout: 0s`))
	if err == nil {
		t.Fatalf("expected error for zero peer_timeout")
	}
}

func TestParse_ExpandsEnvVars(t *testing.T) {
	os.Setenv("FLING_RELAY_ADDR", "10.0.0.1:4545")
	defer os.Unsetenv("FLING_RELAY_ADDR")

	cfg, err := Parse([]byte(`address: "${FLING_RELAY_ADDR}"`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Address != "10.0.0.1:4545" {
		t.Errorf("Address = %s, want 10.0.0.1:4545", cfg.Address)
	}
}

func TestParse_EnvVarDefault(t *testing.T) {
	os.Unsetenv("FLING_RELAY_MISSING")
	cfg, err := Parse([]byte(`address: "${FLING_RELAY_MISSING:-127.0.0.1:4545}"`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Address != "127.0.0.1:4545" {
		t.Errorf("Address = %s, want 127.0.0.1:4545", cfg.Address)
	}
}

func TestLoad_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")
	if err := os.WriteFile(path, []byte(`max_clients: 42`), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MaxClients != 42 {
		t.Errorf("MaxClients = %d, want 42", cfg.MaxClients)
	}
}

func TestRedacted_ReturnsCopy(t *testing.T) {
	cfg := Default()
	redacted := cfg.Redacted()
	redacted.Address = "mutated"
	if cfg.Address == "mutated" {
		t.Fatalf("Redacted() should return a copy, not alias the original")
	}
}
