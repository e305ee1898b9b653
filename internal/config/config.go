package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/HrushiBorhade/pingme/pkg/models"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration loaded from <home>/config.yaml and PINGME_* env vars.
type Config struct {
	Mode        string         `mapstructure:"mode" yaml:"mode"` // "voice" or "sms"
	Phone       string         `mapstructure:"phone" yaml:"phone"`
	Bolna       BolnaConfig    `mapstructure:"bolna" yaml:"bolna"`
	Daemon      DaemonConfig   `mapstructure:"daemon" yaml:"daemon"`
	DaemonToken string         `mapstructure:"daemon_token" yaml:"daemon_token"`
	Policy      Policy         `mapstructure:"policy" yaml:"policy"`
	Sessions    SessionsConfig `mapstructure:"sessions" yaml:"sessions"`
	State       StateConfig    `mapstructure:"state" yaml:"state"`
	Notify      NotifyConfig   `mapstructure:"notify" yaml:"notify"`
	Otel        OtelConfig     `mapstructure:"otel" yaml:"otel"`
}

// BolnaConfig holds voice provider credentials.
type BolnaConfig struct {
	APIKey        string `mapstructure:"api_key" yaml:"api_key"`
	AgentID       string `mapstructure:"agent_id" yaml:"agent_id"`
	InboundNumber string `mapstructure:"inbound_number" yaml:"inbound_number"`
	BaseURL       string `mapstructure:"base_url" yaml:"base_url"`
}

// DaemonConfig configures the HTTP listener and logging.
type DaemonConfig struct {
	Port      int    `mapstructure:"port" yaml:"port"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	StateFile string `mapstructure:"state_file" yaml:"state_file"`
	Pprof     string `mapstructure:"pprof" yaml:"pprof,omitempty"`
}

// Policy decides when a human gets called.
type Policy struct {
	CooldownSeconds    int        `mapstructure:"cooldown_seconds" yaml:"cooldown_seconds"`
	BatchWindowSeconds int        `mapstructure:"batch_window_seconds" yaml:"batch_window_seconds"`
	MaxCallDuration    int        `mapstructure:"max_call_duration" yaml:"max_call_duration"`
	CallOn             CallOn     `mapstructure:"call_on" yaml:"call_on"`
	QuietHours         QuietHours `mapstructure:"quiet_hours" yaml:"quiet_hours"`
}

// CallOn enables calls per event kind.
type CallOn struct {
	TaskCompleted bool `mapstructure:"task_completed" yaml:"task_completed"`
	Stopped       bool `mapstructure:"stopped" yaml:"stopped"`
	Question      bool `mapstructure:"question" yaml:"question"`
	Permission    bool `mapstructure:"permission" yaml:"permission"`
	Error         bool `mapstructure:"error" yaml:"error"`
}

// QuietHours is a wall-clock window ("HH:MM"), possibly wrapping midnight.
type QuietHours struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Start   string `mapstructure:"start" yaml:"start"`
	End     string `mapstructure:"end" yaml:"end"`
	Mode    string `mapstructure:"mode" yaml:"mode"` // "sms"/"fallback" or "silent"
}

// SessionsConfig controls stale-session garbage collection.
type SessionsConfig struct {
	CleanupAfterMinutes  int `mapstructure:"cleanup_after_minutes" yaml:"cleanup_after_minutes"`
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds" yaml:"sweep_interval_seconds"`
}

// StateConfig selects where daemon state is persisted.
type StateConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"` // "file" (default), "sqlite", "postgres" or "memory"
	DSN    string `mapstructure:"dsn" yaml:"dsn,omitempty"`
}

// NotifyConfig configures the fallback channel.
type NotifyConfig struct {
	SlackWebhookURL string `mapstructure:"slack_webhook_url" yaml:"slack_webhook_url,omitempty"`
}

// OtelConfig toggles OpenTelemetry metrics.
type OtelConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Quiet-hours modes.
const (
	QuietModeSMS      = "sms"
	QuietModeFallback = "fallback"
	QuietModeSilent   = "silent"
)

// State drivers.
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Default returns the built-in configuration for the given home directory.
func Default(home string) Config {
	return Config{
		Mode: "voice",
		Bolna: BolnaConfig{
			BaseURL: "https://api.bolna.ai",
		},
		Daemon: DaemonConfig{
			Port:      models.DefaultPort,
			LogLevel:  "info",
			StateFile: filepath.Join(home, "state.json"),
		},
		Policy: Policy{
			CooldownSeconds:    60,
			BatchWindowSeconds: 10,
			MaxCallDuration:    600,
			CallOn: CallOn{
				TaskCompleted: true,
				Stopped:       true,
				Question:      true,
				Permission:    true,
				Error:         false,
			},
			QuietHours: QuietHours{
				Enabled: true,
				Start:   "23:00",
				End:     "07:00",
				Mode:    QuietModeSMS,
			},
		},
		Sessions: SessionsConfig{
			CleanupAfterMinutes:  30,
			SweepIntervalSeconds: 300,
		},
		State: StateConfig{Driver: DriverFile},
		Otel:  OtelConfig{Enabled: true},
	}
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("mode", d.Mode)
	v.SetDefault("phone", d.Phone)
	v.SetDefault("bolna.api_key", d.Bolna.APIKey)
	v.SetDefault("bolna.agent_id", d.Bolna.AgentID)
	v.SetDefault("bolna.inbound_number", d.Bolna.InboundNumber)
	v.SetDefault("bolna.base_url", d.Bolna.BaseURL)
	v.SetDefault("daemon.port", d.Daemon.Port)
	v.SetDefault("daemon.log_level", d.Daemon.LogLevel)
	v.SetDefault("daemon.state_file", d.Daemon.StateFile)
	v.SetDefault("daemon.pprof", d.Daemon.Pprof)
	v.SetDefault("daemon_token", d.DaemonToken)
	v.SetDefault("policy.cooldown_seconds", d.Policy.CooldownSeconds)
	v.SetDefault("policy.batch_window_seconds", d.Policy.BatchWindowSeconds)
	v.SetDefault("policy.max_call_duration", d.Policy.MaxCallDuration)
	v.SetDefault("policy.call_on.task_completed", d.Policy.CallOn.TaskCompleted)
	v.SetDefault("policy.call_on.stopped", d.Policy.CallOn.Stopped)
	v.SetDefault("policy.call_on.question", d.Policy.CallOn.Question)
	v.SetDefault("policy.call_on.permission", d.Policy.CallOn.Permission)
	v.SetDefault("policy.call_on.error", d.Policy.CallOn.Error)
	v.SetDefault("policy.quiet_hours.enabled", d.Policy.QuietHours.Enabled)
	v.SetDefault("policy.quiet_hours.start", d.Policy.QuietHours.Start)
	v.SetDefault("policy.quiet_hours.end", d.Policy.QuietHours.End)
	v.SetDefault("policy.quiet_hours.mode", d.Policy.QuietHours.Mode)
	v.SetDefault("sessions.cleanup_after_minutes", d.Sessions.CleanupAfterMinutes)
	v.SetDefault("sessions.sweep_interval_seconds", d.Sessions.SweepIntervalSeconds)
	v.SetDefault("state.driver", d.State.Driver)
	v.SetDefault("state.dsn", d.State.DSN)
	v.SetDefault("notify.slack_webhook_url", d.Notify.SlackWebhookURL)
	v.SetDefault("otel.enabled", d.Otel.Enabled)
}

// Load reads <home>/config.yaml (if present) over the defaults and applies
// PINGME_* environment overrides (e.g. PINGME_BOLNA_API_KEY, PINGME_DAEMON_PORT).
func Load(home string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("PINGME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default(home))

	path := ConfigPath(home)
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.State.Driver == DriverPostgres && cfg.State.DSN == "" {
		cfg.State.DSN = os.Getenv("DATABASE_URL")
	}
	return cfg, nil
}

// Save writes cfg to <home>/config.yaml with owner-only permissions (it holds credentials).
func Save(home string, cfg Config) error {
	if err := os.MkdirAll(home, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(ConfigPath(home), data, 0o600)
}

// Exists reports whether <home>/config.yaml is present.
func Exists(home string) bool {
	_, err := os.Stat(ConfigPath(home))
	return err == nil
}

// Validate rejects configurations the daemon cannot run with.
func (c Config) Validate() error {
	if c.Daemon.Port <= 0 || c.Daemon.Port > 65535 {
		return fmt.Errorf("daemon.port %d out of range", c.Daemon.Port)
	}
	switch strings.ToLower(c.Daemon.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("daemon.log_level %q: want debug, info, warn or error", c.Daemon.LogLevel)
	}
	if c.Policy.BatchWindowSeconds < 0 || c.Policy.CooldownSeconds < 0 {
		return fmt.Errorf("policy windows must not be negative")
	}
	if _, err := ParseClock(c.Policy.QuietHours.Start); err != nil {
		return fmt.Errorf("policy.quiet_hours.start: %w", err)
	}
	if _, err := ParseClock(c.Policy.QuietHours.End); err != nil {
		return fmt.Errorf("policy.quiet_hours.end: %w", err)
	}
	switch c.Policy.QuietHours.Mode {
	case QuietModeSMS, QuietModeFallback, QuietModeSilent:
	default:
		return fmt.Errorf("policy.quiet_hours.mode %q: want sms, fallback or silent", c.Policy.QuietHours.Mode)
	}
	switch c.State.Driver {
	case "", DriverFile, DriverSQLite, DriverMemory:
	case DriverPostgres:
		if c.State.DSN == "" {
			return fmt.Errorf("state.dsn (or DATABASE_URL) required for postgres")
		}
	default:
		return fmt.Errorf("state.driver %q: want file, sqlite, postgres or memory", c.State.Driver)
	}
	return nil
}

// VoiceReady reports whether outbound calls can be placed.
func (c Config) VoiceReady() bool {
	return c.Bolna.APIKey != "" && c.Bolna.AgentID != "" && c.Phone != ""
}

// Cooldown is the minimum spacing between outbound calls.
func (p Policy) Cooldown() time.Duration {
	return time.Duration(p.CooldownSeconds) * time.Second
}

// BatchWindow is the debounce interval for batched events.
func (p Policy) BatchWindow() time.Duration {
	return time.Duration(p.BatchWindowSeconds) * time.Second
}

// CallEnabled reports whether call_on enables calls for this event kind.
// tool_failed is governed by call_on.error.
func (p Policy) CallEnabled(kind models.EventKind) bool {
	switch kind {
	case models.EventTaskCompleted:
		return p.CallOn.TaskCompleted
	case models.EventStopped:
		return p.CallOn.Stopped
	case models.EventQuestion:
		return p.CallOn.Question
	case models.EventPermission:
		return p.CallOn.Permission
	case models.EventToolFailed:
		return p.CallOn.Error
	case models.EventSessionStart, models.EventSessionEnd, models.EventNotification,
		models.EventSubagentStop, models.EventSubagentStart, models.EventPreTool:
		return false
	}
	return false
}

// ParseClock parses "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time format %q", s)
	}
	hh, err := strconv.Atoi(h)
	if err != nil || hh < 0 || hh > 23 {
		return 0, fmt.Errorf("invalid time format %q", s)
	}
	mm, err := strconv.Atoi(m)
	if err != nil || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("invalid time format %q", s)
	}
	return hh*60 + mm, nil
}

// GenerateToken returns a random 32-byte hex token for daemon_token.
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
