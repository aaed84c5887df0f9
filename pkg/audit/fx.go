package audit

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"guildwarden/pkg/bus"
	"guildwarden/pkg/config"
	"guildwarden/pkg/discord"
	"guildwarden/pkg/guildconfig"
	"guildwarden/pkg/logger"
	"guildwarden/pkg/ratelimit"
)

// Module provides the audit Notifier and subscribes the Poster to the bus.
var Module = fx.Module("audit",
	fx.Provide(ProvideNotifier),
	fx.Invoke(RegisterPoster),
)

// ProvideNotifier returns a bus-backed notifier, or Nop when auditing is
// disabled. Queued entries are published before the bus stops.
func ProvideNotifier(lc fx.Lifecycle, cfg *config.Config, b bus.Bus, log *logger.Logger) Notifier {
	if !cfg.Audit.Enabled {
		return Nop{}
	}
	limiter := ratelimit.PerMinute(cfg.Audit.RatePerMinute, cfg.Audit.Burst, 30*time.Minute)
	n := NewBusNotifier(b, limiter, log.Named("audit"))
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			n.Close()
			return nil
		},
	})
	return n
}

// RegisterPoster subscribes the log-channel poster.
func RegisterPoster(cfg *config.Config, b bus.Bus, api discord.API, settings guildconfig.Store, log *logger.Logger) {
	if !cfg.Audit.Enabled {
		return
	}
	poster := NewPoster(api, settings, cfg.Audit.ChannelID, log.Named("audit"))
	b.Subscribe(Topic, poster.Handle)
	log.Debug("Audit poster subscribed", zap.String("fallback_channel", cfg.Audit.ChannelID))
}
