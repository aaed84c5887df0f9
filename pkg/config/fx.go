package config

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"guildwarden/pkg/logger"
)

// Path is the explicit config file path supplied on the command line.
// Empty means environment override or search paths.
type Path string

// Module provides configuration for fx dependency injection.
// Callers supply a Path with fx.Supply.
var Module = fx.Module("config",
	fx.Provide(ProvideLoader),
	fx.Provide(ProvideConfig),
	fx.Provide(ProvideLoggerConfig),
	fx.Provide(ProvideWatcher),
	fx.Invoke(func(*Watcher) {}),
)

// ProvideLoader provides a configuration loader.
func ProvideLoader() *Loader {
	return NewLoader()
}

// ProvideConfig loads and validates configuration.
func ProvideConfig(loader *Loader, path Path) (*Config, error) {
	cfg, err := loader.Load(string(path))
	if err != nil {
		return nil, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ProvideLoggerConfig exposes the logger section to the logger module.
func ProvideLoggerConfig(cfg *Config) *logger.Config {
	return cfg.Logger.ToLoggerConfig()
}

// ProvideWatcher wires hot-reload of the log level.
func ProvideWatcher(loader *Loader, cfg *Config, lc fx.Lifecycle, log *logger.Logger) *Watcher {
	watcher := NewWatcher(loader, cfg)
	watcher.OnError(func(err error) {
		log.Warn("Configuration reload failed", zap.Error(err))
	})
	watcher.AddHandler(func(newCfg *Config) error {
		level := newCfg.Logger.ToLoggerConfig().Level
		if level == log.Level() {
			return nil
		}
		if err := log.SetLevel(level); err != nil {
			return err
		}
		log.Info("Log level changed", zap.String("level", string(level)))
		return nil
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if path := loader.GetConfigPath(); path != "" {
				log.Info("Watching configuration file", zap.String("path", path))
			}
			return watcher.Start()
		},
		OnStop: func(ctx context.Context) error {
			watcher.Stop()
			return nil
		},
	})

	return watcher
}
