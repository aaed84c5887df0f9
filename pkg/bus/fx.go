package bus

import (
	"context"

	"go.uber.org/fx"

	"guildwarden/pkg/config"
	"guildwarden/pkg/logger"
)

// Module is the fx module for the message bus.
var Module = fx.Module("bus",
	fx.Provide(NewMessageBus),
)

// NewMessageBus creates the configured bus and ties it to the app lifecycle.
func NewMessageBus(lc fx.Lifecycle, log *logger.Logger, cfg *config.Config) (Bus, error) {
	b, err := NewBus(log, &Config{
		Type:          BusType(cfg.Bus.Type),
		BufferSize:    cfg.Bus.BufferSize,
		RedisAddr:     cfg.Redis.Addr,
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		RedisPrefix:   cfg.Bus.Prefix,
	})
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return b.Start()
		},
		OnStop: func(ctx context.Context) error {
			return b.Stop()
		},
	})

	return b, nil
}
