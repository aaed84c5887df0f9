// Package config provides configuration management for guildwarden.
// It uses Viper for configuration loading with support for:
// - Multiple formats (JSON, YAML, TOML)
// - Environment variables (GUILDWARDEN_ prefix)
// - Hot-reload of the log level
// - Default values
package config

import (
	"time"
)

// InteractionWindow is how long Discord waits for the initial reply to
// an interaction callback.
const InteractionWindow = 3 * time.Second

// Config represents the complete guildwarden configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" json:"server"`
	Discord DiscordConfig `mapstructure:"discord" json:"discord"`
	Logger  LoggerConfig  `mapstructure:"logger" json:"logger"`
	State   StateConfig   `mapstructure:"state" json:"state"`
	Redis   RedisConfig   `mapstructure:"redis" json:"redis"`
	Bus     BusConfig     `mapstructure:"bus" json:"bus"`
	Audit   AuditConfig   `mapstructure:"audit" json:"audit"`
	Metrics MetricsConfig `mapstructure:"metrics" json:"metrics"`
}

// ServerConfig configures the interactions HTTP endpoint.
type ServerConfig struct {
	Host            string        `mapstructure:"host" json:"host"`
	Port            int           `mapstructure:"port" json:"port"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" json:"max_body_bytes"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout"`
}

// DiscordConfig holds application credentials and REST behaviour.
type DiscordConfig struct {
	// PublicKey is the hex-encoded Ed25519 application public key.
	PublicKey     string `mapstructure:"public_key" json:"public_key"`
	Token         string `mapstructure:"token" json:"token"`
	ApplicationID string `mapstructure:"application_id" json:"application_id"`
	// GuildID scopes command registration to one guild when set.
	GuildID string `mapstructure:"guild_id" json:"guild_id"`
	// RequestTimeout bounds each outbound REST call. It must stay below
	// InteractionWindow so a synchronous reply can still be sent.
	RequestTimeout time.Duration `mapstructure:"request_timeout" json:"request_timeout"`
	// ResponseBudget bounds a synchronous command handler as a whole.
	ResponseBudget time.Duration `mapstructure:"response_budget" json:"response_budget"`
	// MaxTimestampSkew rejects signed requests older than this. Zero disables the check.
	MaxTimestampSkew time.Duration `mapstructure:"max_timestamp_skew" json:"max_timestamp_skew"`
	// DeferredTimeout bounds background work for deferred commands.
	DeferredTimeout time.Duration `mapstructure:"deferred_timeout" json:"deferred_timeout"`
}

// LoggerConfig mirrors logger.Config in file form.
type LoggerConfig struct {
	Level       string `mapstructure:"level" json:"level"`
	OutputPath  string `mapstructure:"output_path" json:"output_path"`
	MaxSize     int    `mapstructure:"max_size" json:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" json:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" json:"max_age"`
	Compress    bool   `mapstructure:"compress" json:"compress"`
	Development bool   `mapstructure:"development" json:"development"`
}

// StateConfig selects the backend for per-guild settings.
type StateConfig struct {
	Backend       string `mapstructure:"backend" json:"backend"` // file or redis
	FilePath      string `mapstructure:"file_path" json:"file_path"`
	Prefix        string `mapstructure:"prefix" json:"prefix"`
	AutoSave      bool   `mapstructure:"auto_save" json:"auto_save"`
	SaveIntervalS int    `mapstructure:"save_interval_s" json:"save_interval_s"`
}

// RedisConfig is shared by the redis state backend and the redis bus.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" json:"addr"`
	Password string `mapstructure:"password" json:"password"`
	DB       int    `mapstructure:"db" json:"db"`
}

// BusConfig configures the audit message bus.
type BusConfig struct {
	Type       string `mapstructure:"type" json:"type"` // local or redis
	Prefix     string `mapstructure:"prefix" json:"prefix"`
	BufferSize int    `mapstructure:"buffer_size" json:"buffer_size"`
}

// AuditConfig configures moderation audit notifications.
type AuditConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// ChannelID receives audit entries for guilds without a log channel.
	ChannelID string `mapstructure:"channel_id" json:"channel_id"`
	// RatePerMinute limits audit posts per guild.
	RatePerMinute float64 `mapstructure:"rate_per_minute" json:"rate_per_minute"`
	Burst         int     `mapstructure:"burst" json:"burst"`
}

// MetricsConfig toggles the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Path    string `mapstructure:"path" json:"path"`
}

// DefaultConfig returns a new Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			MaxBodyBytes:    1 << 20,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Discord: DiscordConfig{
			RequestTimeout:  2 * time.Second,
			ResponseBudget:  2500 * time.Millisecond,
			DeferredTimeout: 2 * time.Minute,
		},
		Logger: LoggerConfig{
			Level:      "info",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
		State: StateConfig{
			Backend:       "file",
			FilePath:      "data/guilds.json",
			Prefix:        "guildwarden:",
			AutoSave:      false,
			SaveIntervalS: 5,
		},
		Redis: RedisConfig{
			Addr: "",
		},
		Bus: BusConfig{
			Type:       "local",
			Prefix:     "guildwarden:bus:",
			BufferSize: 256,
		},
		Audit: AuditConfig{
			Enabled:       true,
			RatePerMinute: 30,
			Burst:         10,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Path:    "/metrics",
		},
	}
}

// Address returns host:port for the HTTP listener.
func (s ServerConfig) Address() string {
	return joinHostPort(s.Host, s.Port)
}
