package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// ConfigPathEnv overrides the config file location when no explicit path is given.
const ConfigPathEnv = "GUILDWARDEN_CONFIG_FILE"

// EnvPrefix is the prefix for environment overrides, e.g. GUILDWARDEN_DISCORD_PUBLIC_KEY.
const EnvPrefix = "GUILDWARDEN"

// Loader handles configuration loading with Viper.
type Loader struct {
	viper *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()

	v.SetConfigName("config")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".guildwarden"))
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Viper only resolves env overrides for keys it already knows.
	setDefaults(v, DefaultConfig())

	return &Loader{viper: v}
}

// Load loads the configuration from file and environment variables.
// If configPath is empty, GUILDWARDEN_CONFIG_FILE and then the default
// search paths are used. A missing file in the search paths is not an
// error; a missing explicit file is.
func (l *Loader) Load(configPath string) (*Config, error) {
	if strings.TrimSpace(configPath) == "" {
		configPath = strings.TrimSpace(os.Getenv(ConfigPathEnv))
	}
	if configPath != "" {
		l.viper.SetConfigFile(configPath)
	}

	if err := l.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return l.decode()
}

// decode unmarshals the current viper state on top of the defaults.
func (l *Loader) decode() (*Config, error) {
	cfg := DefaultConfig()
	if err := l.viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path, choosing the format from the extension.
func (l *Loader) Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	format := "json"
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		format = "yaml"
	case ".toml":
		format = "toml"
	}

	v := viper.New()
	v.SetConfigType(format)
	setDefaults(v, cfg)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// SaveToFile is a convenience function to save config without creating a Loader.
func SaveToFile(cfg *Config, path string) error {
	return NewLoader().Save(path, cfg)
}

// GetConfigPath returns the path of the loaded config file, if any.
func (l *Loader) GetConfigPath() string {
	return l.viper.ConfigFileUsed()
}

// GetConfigHome returns the default config directory.
func GetConfigHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".guildwarden"), nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.max_body_bytes", cfg.Server.MaxBodyBytes)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout.String())
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout.String())
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout.String())

	v.SetDefault("discord.public_key", cfg.Discord.PublicKey)
	v.SetDefault("discord.token", cfg.Discord.Token)
	v.SetDefault("discord.application_id", cfg.Discord.ApplicationID)
	v.SetDefault("discord.guild_id", cfg.Discord.GuildID)
	v.SetDefault("discord.request_timeout", cfg.Discord.RequestTimeout.String())
	v.SetDefault("discord.response_budget", cfg.Discord.ResponseBudget.String())
	v.SetDefault("discord.max_timestamp_skew", cfg.Discord.MaxTimestampSkew.String())
	v.SetDefault("discord.deferred_timeout", cfg.Discord.DeferredTimeout.String())

	v.SetDefault("logger.level", cfg.Logger.Level)
	v.SetDefault("logger.output_path", cfg.Logger.OutputPath)
	v.SetDefault("logger.max_size", cfg.Logger.MaxSize)
	v.SetDefault("logger.max_backups", cfg.Logger.MaxBackups)
	v.SetDefault("logger.max_age", cfg.Logger.MaxAge)
	v.SetDefault("logger.compress", cfg.Logger.Compress)
	v.SetDefault("logger.development", cfg.Logger.Development)

	v.SetDefault("state.backend", cfg.State.Backend)
	v.SetDefault("state.file_path", cfg.State.FilePath)
	v.SetDefault("state.prefix", cfg.State.Prefix)
	v.SetDefault("state.auto_save", cfg.State.AutoSave)
	v.SetDefault("state.save_interval_s", cfg.State.SaveIntervalS)

	v.SetDefault("redis.addr", cfg.Redis.Addr)
	v.SetDefault("redis.password", cfg.Redis.Password)
	v.SetDefault("redis.db", cfg.Redis.DB)

	v.SetDefault("bus.type", cfg.Bus.Type)
	v.SetDefault("bus.prefix", cfg.Bus.Prefix)
	v.SetDefault("bus.buffer_size", cfg.Bus.BufferSize)

	v.SetDefault("audit.enabled", cfg.Audit.Enabled)
	v.SetDefault("audit.channel_id", cfg.Audit.ChannelID)
	v.SetDefault("audit.rate_per_minute", cfg.Audit.RatePerMinute)
	v.SetDefault("audit.burst", cfg.Audit.Burst)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
