package main

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"guildwarden/pkg/audit"
	"guildwarden/pkg/bus"
	"guildwarden/pkg/commands"
	"guildwarden/pkg/config"
	"guildwarden/pkg/discord"
	"guildwarden/pkg/gateway"
	"guildwarden/pkg/guildconfig"
	"guildwarden/pkg/handlers"
	"guildwarden/pkg/logger"
	"guildwarden/pkg/metrics"
	"guildwarden/pkg/router"
	"guildwarden/pkg/state"
	"guildwarden/pkg/verify"
	"guildwarden/pkg/version"
)

// appModules lists every module the server needs, in dependency order.
func appModules() []fx.Option {
	return []fx.Option{
		fx.Supply(config.Path(configPath)),

		// Core
		config.Module,
		logger.Module,
		metrics.Module,
		verify.Module,
		discord.Module,

		// State and side channels
		state.Module,
		bus.Module,
		guildconfig.Module,
		audit.Module,

		// Commands and dispatch
		commands.Module,
		handlers.Module,
		router.Module,
		gateway.Module,
	}
}

// newApp builds the server application. mode is only used for logging.
func newApp(mode string, extra ...fx.Option) *fx.App {
	opts := appModules()
	opts = append(opts, fx.Invoke(func(lc fx.Lifecycle, log *logger.Logger, cfg *config.Config, reg *commands.Registry) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				log.Info("guildwarden started",
					zap.String("mode", mode),
					zap.String("version", version.GetVersion()),
					zap.String("addr", cfg.Server.Address()),
					zap.Int("commands", len(reg.List())))
				return nil
			},
			OnStop: func(ctx context.Context) error {
				log.Info("guildwarden stopped")
				return nil
			},
		})
	}))
	opts = append(opts, extra...)
	return fx.New(opts...)
}
