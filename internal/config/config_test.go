package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultDeviceConfig(t *testing.T) {
	cfg := DefaultDeviceConfig()

	if cfg.Agent.ID != "auto" {
		t.Errorf("Agent.ID = %s, want auto", cfg.Agent.ID)
	}
	if cfg.Rendezvous.Address != ":7443" {
		t.Errorf("Rendezvous.Address = %s, want :7443", cfg.Rendezvous.Address)
	}
	if cfg.Session.ReplayWindowBits != 1024 {
		t.Errorf("Session.ReplayWindowBits = %d, want 1024", cfg.Session.ReplayWindowBits)
	}
	if cfg.Pairing.InviteTTL != 10*time.Minute {
		t.Errorf("Pairing.InviteTTL = %s, want 10m", cfg.Pairing.InviteTTL)
	}
}

func TestParseDeviceValidConfig(t *testing.T) {
	yamlConfig := `
agent:
  id: "auto"
  data_dir: "./devdata"
  log_level: "debug"
  log_format: "json"

rendezvous:
  address: ":9443"
  quic_address: ":9444"

pairing:
  invite_ttl: 5m
  require_consent_each_time: true

session:
  ticket_ttl: 2m
  replay_window_bits: 2048

audit:
  enabled: true
  path: "./devdata/audit.log"
`
	cfg, err := ParseDevice([]byte(yamlConfig))
	if err != nil {
		t.Fatalf("ParseDevice: %v", err)
	}
	if cfg.Agent.DataDir != "./devdata" {
		t.Errorf("Agent.DataDir = %s, want ./devdata", cfg.Agent.DataDir)
	}
	if cfg.Rendezvous.Address != ":9443" {
		t.Errorf("Rendezvous.Address = %s, want :9443", cfg.Rendezvous.Address)
	}
	if cfg.Session.ReplayWindowBits != 2048 {
		t.Errorf("Session.ReplayWindowBits = %d, want 2048", cfg.Session.ReplayWindowBits)
	}
	if !cfg.Pairing.RequireConsentEach {
		t.Error("expected RequireConsentEach true")
	}
}

func TestParseDeviceRejectsInvalidLogLevel(t *testing.T) {
	yamlConfig := `
agent:
  data_dir: "./data"
  log_level: "verbose"
`
	if _, err := ParseDevice([]byte(yamlConfig)); err == nil {
		t.Fatal("expected validation error for invalid log_level")
	} else if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error %q does not mention log_level", err)
	}
}

func TestParseDeviceExpandsEnvVars(t *testing.T) {
	t.Setenv("ZRC_DATA_DIR", "/var/lib/zrcd")
	yamlConfig := `
agent:
  data_dir: "${ZRC_DATA_DIR}"
`
	cfg, err := ParseDevice([]byte(yamlConfig))
	if err != nil {
		t.Fatalf("ParseDevice: %v", err)
	}
	if cfg.Agent.DataDir != "/var/lib/zrcd" {
		t.Errorf("Agent.DataDir = %s, want /var/lib/zrcd", cfg.Agent.DataDir)
	}
}

func TestParseDeviceEnvVarDefault(t *testing.T) {
	yamlConfig := `
agent:
  data_dir: "${ZRC_UNSET_VAR:-./fallback}"
`
	cfg, err := ParseDevice([]byte(yamlConfig))
	if err != nil {
		t.Fatalf("ParseDevice: %v", err)
	}
	if cfg.Agent.DataDir != "./fallback" {
		t.Errorf("Agent.DataDir = %s, want ./fallback", cfg.Agent.DataDir)
	}
}

func TestDefaultOperatorConfig(t *testing.T) {
	cfg := DefaultOperatorConfig()
	if cfg.Agent.LogFormat != "text" {
		t.Errorf("Agent.LogFormat = %s, want text", cfg.Agent.LogFormat)
	}
	if cfg.Control.SocketPath == "" {
		t.Error("expected a default control socket path")
	}
}

func TestParseOperatorRejectsMissingDataDir(t *testing.T) {
	yamlConfig := `
agent:
  data_dir: ""
`
	if _, err := ParseOperator([]byte(yamlConfig)); err == nil {
		t.Fatal("expected validation error for empty data_dir")
	}
}

func TestDeviceConfigStringOmitsNoSecrets(t *testing.T) {
	cfg := DefaultDeviceConfig()
	s := cfg.String()
	if !strings.Contains(s, "rendezvous") {
		t.Error("expected rendezvous section in config string")
	}
}
