package router

import (
	"context"

	"go.uber.org/fx"

	"guildwarden/pkg/commands"
	"guildwarden/pkg/config"
	"guildwarden/pkg/discord"
	"guildwarden/pkg/logger"
	"guildwarden/pkg/metrics"
	"guildwarden/pkg/verify"
)

// Module provides the interaction router.
var Module = fx.Module("router",
	fx.Provide(ProvideRouter),
)

// ProvideRouter builds the router and drains deferred work on shutdown.
func ProvideRouter(
	lc fx.Lifecycle,
	cfg *config.Config,
	v *verify.Verifier,
	reg *commands.Registry,
	api discord.API,
	log *logger.Logger,
	m *metrics.Metrics,
) *Router {
	r := New(v, reg, api, log.Named("router"), m, Config{
		DeferredTimeout: cfg.Discord.DeferredTimeout,
		ResponseBudget:  cfg.Discord.ResponseBudget,
	})
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return r.Stop(ctx)
		},
	})
	return r
}
