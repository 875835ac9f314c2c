// Package config provides configuration parsing and validation for zrcd and
// zrcctl.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DeviceConfig is the complete configuration for a device (zrcd) host: the
// machine being remoted into.
type DeviceConfig struct {
	Agent      AgentConfig      `yaml:"agent"`
	Rendezvous RendezvousConfig `yaml:"rendezvous"`
	Pairing    PairingConfig    `yaml:"pairing"`
	Session    SessionConfig    `yaml:"session"`
	Audit      AuditConfig      `yaml:"audit"`
	Control    ControlConfig    `yaml:"control"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// OperatorConfig is the complete configuration for an operator (zrcctl)
// client: the machine initiating remote sessions.
type OperatorConfig struct {
	Agent   AgentConfig   `yaml:"agent"`
	Session SessionConfig `yaml:"session"`
	Audit   AuditConfig   `yaml:"audit"`
	Control ControlConfig `yaml:"control"`
}

// AgentConfig contains identity and logging settings common to both roles.
type AgentConfig struct {
	ID          string `yaml:"id"`           // "auto" or hex-encoded ID32
	DisplayName string `yaml:"display_name"` // Human-readable name (Unicode allowed)
	DataDir     string `yaml:"data_dir"`     // Directory for persistent state (keys, pairings)
	LogLevel    string `yaml:"log_level"`    // debug, info, warn, error
	LogFormat   string `yaml:"log_format"`   // text, json
}

// RendezvousConfig configures the device's control-plane listener: the
// WebSocket endpoint operators dial to deliver invites and session-init
// requests before a QUIC session exists.
type RendezvousConfig struct {
	Address     string        `yaml:"address"`      // e.g. ":7443"
	QUICAddress string        `yaml:"quic_address"`  // UDP address for the data-plane QUIC listener
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// PairingConfig tunes invite lifetime and consent policy defaults.
type PairingConfig struct {
	InviteTTL          time.Duration `yaml:"invite_ttl"`
	InviteRateLimit    float64       `yaml:"invite_rate_limit"`  // invite attempts per second
	InviteRateBurst    int           `yaml:"invite_rate_burst"`
	RequireConsentEach bool          `yaml:"require_consent_each_time"`
}

// SessionConfig tunes session-ticket lifetime. ReplayWindowBits is parsed
// and validated but not read elsewhere: every replay filter is built with
// replay.DefaultWindowBits.
type SessionConfig struct {
	TicketTTL        time.Duration `yaml:"ticket_ttl"`
	ReplayWindowBits uint64        `yaml:"replay_window_bits"`
}

// AuditConfig configures the signed append-only audit log.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ControlConfig configures the local admin/status API: a Unix domain socket
// only the local user can reach, used by zrcctl to query a running zrcd (or
// a zrcctl-managed operator session) without exposing anything to the
// network.
type ControlConfig struct {
	SocketPath string `yaml:"socket_path"`
}

// MetricsConfig configures the optional Prometheus metrics listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// DefaultDeviceConfig returns a DeviceConfig with default values.
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		Agent: AgentConfig{
			ID:        "auto",
			DataDir:   "./data",
			LogLevel:  "info",
			LogFormat: "text",
		},
		Rendezvous: RendezvousConfig{
			Address:     ":7443",
			QUICAddress: ":7444",
			IdleTimeout: 60 * time.Second,
		},
		Pairing: PairingConfig{
			InviteTTL:       10 * time.Minute,
			InviteRateLimit: 1,
			InviteRateBurst: 5,
		},
		Session: SessionConfig{
			TicketTTL:        5 * time.Minute,
			ReplayWindowBits: 1024,
		},
		Audit: AuditConfig{
			Enabled: true,
			Path:    "./data/audit.log",
		},
		Control: ControlConfig{
			SocketPath: "./data/zrcd.sock",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: "127.0.0.1:9090",
		},
	}
}

// DefaultOperatorConfig returns an OperatorConfig with default values.
func DefaultOperatorConfig() *OperatorConfig {
	return &OperatorConfig{
		Agent: AgentConfig{
			ID:        "auto",
			DataDir:   "./data",
			LogLevel:  "info",
			LogFormat: "text",
		},
		Session: SessionConfig{
			TicketTTL:        5 * time.Minute,
			ReplayWindowBits: 1024,
		},
		Audit: AuditConfig{
			Enabled: true,
			Path:    "./data/audit.log",
		},
		Control: ControlConfig{
			SocketPath: "./data/zrcctl.sock",
		},
	}
}

// LoadDevice reads and parses a device configuration file.
func LoadDevice(path string) (*DeviceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read device config: %w", err)
	}
	return ParseDevice(data)
}

// LoadOperator reads and parses an operator configuration file.
func LoadOperator(path string) (*OperatorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read operator config: %w", err)
	}
	return ParseOperator(data)
}

// ParseDevice parses a device configuration from YAML bytes.
func ParseDevice(data []byte) (*DeviceConfig, error) {
	expanded := expandEnvVars(string(data))
	cfg := DefaultDeviceConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("config: parse device config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate device config: %w", err)
	}
	return cfg, nil
}

// ParseOperator parses an operator configuration from YAML bytes.
func ParseOperator(data []byte) (*OperatorConfig, error) {
	expanded := expandEnvVars(string(data))
	cfg := DefaultOperatorConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("config: parse operator config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate operator config: %w", err)
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

// Validate checks the device configuration for errors.
func (c *DeviceConfig) Validate() error {
	var errs []string
	if c.Agent.DataDir == "" {
		errs = append(errs, "agent.data_dir is required")
	}
	if !isValidLogLevel(c.Agent.LogLevel) {
		errs = append(errs, fmt.Sprintf("invalid log_level: %s", c.Agent.LogLevel))
	}
	if !isValidLogFormat(c.Agent.LogFormat) {
		errs = append(errs, fmt.Sprintf("invalid log_format: %s", c.Agent.LogFormat))
	}
	if c.Rendezvous.Address == "" {
		errs = append(errs, "rendezvous.address is required")
	}
	if c.Rendezvous.QUICAddress == "" {
		errs = append(errs, "rendezvous.quic_address is required")
	}
	if c.Pairing.InviteTTL <= 0 {
		errs = append(errs, "pairing.invite_ttl must be positive")
	}
	if c.Session.TicketTTL <= 0 {
		errs = append(errs, "session.ticket_ttl must be positive")
	}
	if c.Session.ReplayWindowBits == 0 {
		errs = append(errs, "session.replay_window_bits must be positive")
	}
	if c.Audit.Enabled && c.Audit.Path == "" {
		errs = append(errs, "audit.path is required when audit.enabled is true")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks the operator configuration for errors.
func (c *OperatorConfig) Validate() error {
	var errs []string
	if c.Agent.DataDir == "" {
		errs = append(errs, "agent.data_dir is required")
	}
	if !isValidLogLevel(c.Agent.LogLevel) {
		errs = append(errs, fmt.Sprintf("invalid log_level: %s", c.Agent.LogLevel))
	}
	if !isValidLogFormat(c.Agent.LogFormat) {
		errs = append(errs, fmt.Sprintf("invalid log_format: %s", c.Agent.LogFormat))
	}
	if c.Session.TicketTTL <= 0 {
		errs = append(errs, "session.ticket_ttl must be positive")
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
	}
	return false
}

func isValidLogFormat(format string) bool {
	switch format {
	case "text", "json":
		return true
	}
	return false
}

// String returns a YAML representation of the device config safe to log:
// it never contains key material since none is stored in the config
// itself, only data-dir paths the keys live under.
func (c *DeviceConfig) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}

// String returns a YAML representation of the operator config safe to log.
func (c *OperatorConfig) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}
