package config

import (
	"fmt"
	"strings"

	"guildwarden/pkg/logger"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for _, err := range e {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validator validates configuration.
// The Discord public key is not checked here: a bad key leaves the
// server running in a mode that rejects every interaction.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.errors = make(ValidationErrors, 0)

	v.validateServer(&cfg.Server)
	v.validateDiscord(&cfg.Discord)
	v.validateLogger(&cfg.Logger)
	v.validateState(&cfg.State, &cfg.Redis)
	v.validateBus(&cfg.Bus, &cfg.Redis)
	v.validateAudit(&cfg.Audit)
	v.validateMetrics(&cfg.Metrics)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

func (v *Validator) validateServer(cfg *ServerConfig) {
	if cfg.Port < 1 || cfg.Port > 65535 {
		v.addError("server.port", "port must be between 1 and 65535")
	}
	if cfg.MaxBodyBytes <= 0 {
		v.addError("server.max_body_bytes", "max_body_bytes must be positive")
	}
	if cfg.ReadTimeout < 0 || cfg.WriteTimeout < 0 || cfg.ShutdownTimeout < 0 {
		v.addError("server", "timeouts must be non-negative")
	}
}

func (v *Validator) validateDiscord(cfg *DiscordConfig) {
	if cfg.RequestTimeout <= 0 || cfg.RequestTimeout >= InteractionWindow {
		v.addError("discord.request_timeout", "request_timeout must be positive and below "+InteractionWindow.String())
	}
	if cfg.ResponseBudget <= 0 || cfg.ResponseBudget >= InteractionWindow {
		v.addError("discord.response_budget", "response_budget must be positive and below "+InteractionWindow.String())
	}
	if cfg.MaxTimestampSkew < 0 {
		v.addError("discord.max_timestamp_skew", "max_timestamp_skew must be non-negative")
	}
	if cfg.DeferredTimeout <= 0 {
		v.addError("discord.deferred_timeout", "deferred_timeout must be positive")
	}
}

func (v *Validator) validateLogger(cfg *LoggerConfig) {
	if _, err := logger.ParseLevel(logger.Level(strings.ToLower(cfg.Level))); err != nil {
		v.addError("logger.level", "level must be one of: debug, info, warn, error")
	}
}

func (v *Validator) validateState(cfg *StateConfig, redis *RedisConfig) {
	switch cfg.Backend {
	case "file":
		if strings.TrimSpace(cfg.FilePath) == "" {
			v.addError("state.file_path", "file_path is required for the file backend")
		}
	case "redis":
		if strings.TrimSpace(redis.Addr) == "" {
			v.addError("redis.addr", "redis address is required for the redis state backend")
		}
	default:
		v.addError("state.backend", "backend must be one of: file, redis")
	}
}

func (v *Validator) validateBus(cfg *BusConfig, redis *RedisConfig) {
	switch cfg.Type {
	case "local":
	case "redis":
		if strings.TrimSpace(redis.Addr) == "" {
			v.addError("redis.addr", "redis address is required for the redis bus")
		}
	default:
		v.addError("bus.type", "type must be one of: local, redis")
	}
	if cfg.BufferSize < 1 {
		v.addError("bus.buffer_size", "buffer_size must be at least 1")
	}
}

func (v *Validator) validateAudit(cfg *AuditConfig) {
	if cfg.RatePerMinute < 0 {
		v.addError("audit.rate_per_minute", "rate_per_minute must be non-negative")
	}
	if cfg.RatePerMinute > 0 && cfg.Burst < 1 {
		v.addError("audit.burst", "burst must be at least 1 when rate limiting is enabled")
	}
}

func (v *Validator) validateMetrics(cfg *MetricsConfig) {
	if cfg.Enabled && !strings.HasPrefix(cfg.Path, "/") {
		v.addError("metrics.path", "path must start with /")
	}
	if cfg.Enabled && (cfg.Path == "/" || cfg.Path == "/interactions") {
		v.addError("metrics.path", "path collides with an interaction endpoint")
	}
}

func (v *Validator) addError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

// ValidateConfig is a convenience function to validate configuration.
func ValidateConfig(cfg *Config) error {
	return NewValidator().Validate(cfg)
}
