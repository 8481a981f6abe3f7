// Package config defines the engine's configuration surface: defaults,
// validation, functional options, and an optional YAML file loader
// (spec.md §6). Grounded on the teacher's config.Config/config.Load pair
// (getployz-ployz/config/config.go) — the same
// read-file-or-return-defaults shape via gopkg.in/yaml.v3 — generalized
// from a CLI context file into engine boot configuration, plus the
// functional-options constructor idiom used throughout the Go ecosystem
// for optional parameters.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"nmeshed/internal/errors"
)

// SyncMode selects the replication conflict policy a sync session
// negotiates with the server (spec.md §6).
type SyncMode string

const (
	SyncModeCollaborative SyncMode = "collaborative"
	SyncModeRealtime      SyncMode = "realtime"
	SyncModeLWW           SyncMode = "lww" // accepted alias for collaborative
)

// Config holds every recognized boot option (spec.md §6).
type Config struct {
	WorkspaceID   string `yaml:"workspace_id"`
	Token         string `yaml:"token"`
	ParticipantID string `yaml:"participant_id,omitempty"`
	ServerURL     string `yaml:"server_url"`
	SyncMode      SyncMode `yaml:"sync_mode"`

	AutoReconnect        bool `yaml:"auto_reconnect"`
	MaxReconnectAttempts int  `yaml:"max_reconnect_attempts"`

	ReconnectBaseDelayMs int `yaml:"reconnect_base_delay_ms"`
	MaxReconnectDelayMs  int `yaml:"max_reconnect_delay_ms"`
	ConnectionTimeoutMs  int `yaml:"connection_timeout_ms"`
	HeartbeatIntervalMs  int `yaml:"heartbeat_interval_ms"`

	MaxQueueSize int  `yaml:"max_queue_size"`
	Debug        bool `yaml:"debug"`

	// MaintenanceIntervalMs controls how often the engine re-evaluates
	// the prune horizon and compacts the pending queue (spec.md §4.2,
	// §4.7 supplement). Zero disables periodic maintenance entirely.
	MaintenanceIntervalMs int `yaml:"maintenance_interval_ms"`
}

// Option mutates a Config during construction.
type Option func(*Config)

func WithParticipantID(id string) Option    { return func(c *Config) { c.ParticipantID = id } }
func WithServerURL(url string) Option       { return func(c *Config) { c.ServerURL = url } }
func WithSyncMode(mode SyncMode) Option     { return func(c *Config) { c.SyncMode = mode } }
func WithAutoReconnect(enabled bool) Option { return func(c *Config) { c.AutoReconnect = enabled } }
func WithMaxReconnectAttempts(n int) Option { return func(c *Config) { c.MaxReconnectAttempts = n } }
func WithMaxQueueSize(n int) Option         { return func(c *Config) { c.MaxQueueSize = n } }
func WithDebug(enabled bool) Option         { return func(c *Config) { c.Debug = enabled } }

func WithReconnectBackoff(baseMs, maxMs int) Option {
	return func(c *Config) {
		c.ReconnectBaseDelayMs = baseMs
		c.MaxReconnectDelayMs = maxMs
	}
}

func WithConnectionTimeoutMs(ms int) Option { return func(c *Config) { c.ConnectionTimeoutMs = ms } }
func WithHeartbeatIntervalMs(ms int) Option { return func(c *Config) { c.HeartbeatIntervalMs = ms } }
func WithMaintenanceIntervalMs(ms int) Option {
	return func(c *Config) { c.MaintenanceIntervalMs = ms }
}

// New builds a Config for workspaceID/token with the documented defaults
// (spec.md §6), applying opts in order.
func New(workspaceID, token string, opts ...Option) *Config {
	c := &Config{
		WorkspaceID:           workspaceID,
		Token:                 token,
		ServerURL:             "wss://api.nmeshed.com",
		SyncMode:              SyncModeCollaborative,
		AutoReconnect:         true,
		MaxReconnectAttempts:  10,
		ReconnectBaseDelayMs:  1000,
		MaxReconnectDelayMs:   30000,
		ConnectionTimeoutMs:   10000,
		HeartbeatIntervalMs:   30000,
		MaxQueueSize:          1000,
		Debug:                 false,
		MaintenanceIntervalMs: 60000,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Validate checks the required fields and rejects nonsensical option
// combinations, returning an errors.Kind Configuration error. Raised
// synchronously from the constructor per spec.md §7.
func (c *Config) Validate() error {
	if c.WorkspaceID == "" {
		return errors.New(errors.Configuration, "config.Validate", "workspace_id is required")
	}
	if c.Token == "" {
		return errors.New(errors.Configuration, "config.Validate", "token is required")
	}
	switch c.SyncMode {
	case SyncModeCollaborative, SyncModeRealtime, SyncModeLWW, "":
	default:
		return errors.New(errors.Configuration, "config.Validate", fmt.Sprintf("unrecognized sync_mode %q", c.SyncMode))
	}
	if c.MaxReconnectAttempts < 0 {
		return errors.New(errors.Configuration, "config.Validate", "max_reconnect_attempts must be >= 0")
	}
	if c.MaxQueueSize < 0 {
		return errors.New(errors.Configuration, "config.Validate", "max_queue_size must be >= 0")
	}
	return nil
}

// EffectiveSyncMode resolves the "lww" alias to collaborative.
func (c *Config) EffectiveSyncMode() SyncMode {
	if c.SyncMode == SyncModeLWW || c.SyncMode == "" {
		return SyncModeCollaborative
	}
	return c.SyncMode
}

func (c *Config) ReconnectBaseDelay() time.Duration {
	return time.Duration(c.ReconnectBaseDelayMs) * time.Millisecond
}

func (c *Config) MaxReconnectDelay() time.Duration {
	return time.Duration(c.MaxReconnectDelayMs) * time.Millisecond
}

func (c *Config) ConnectionTimeout() time.Duration {
	return time.Duration(c.ConnectionTimeoutMs) * time.Millisecond
}

func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalMs) * time.Millisecond
}

func (c *Config) MaintenanceInterval() time.Duration {
	return time.Duration(c.MaintenanceIntervalMs) * time.Millisecond
}

// LoadFile reads a YAML config file from path, applying its values over
// the documented defaults. A missing file is not an error — New's
// defaults with opts applied are returned, and WorkspaceID and Token are
// left empty (no Option sets them; only the file does).
func LoadFile(path string, opts ...Option) (*Config, error) {
	c := New("", "", opts...)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, errors.Wrap(errors.Configuration, "config.LoadFile", "read config file", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrap(errors.Configuration, "config.LoadFile", "parse config file", err)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}
