package handlers

import (
	"go.uber.org/fx"

	"guildwarden/pkg/audit"
	"guildwarden/pkg/commands"
	"guildwarden/pkg/guildconfig"
	"guildwarden/pkg/logger"
)

// Module registers the built-in commands with the registry.
var Module = fx.Module("handlers",
	fx.Provide(ProvideSet),
	fx.Invoke(func(set *Set) error { return set.Register() }),
)

// ProvideSet builds the command set.
func ProvideSet(reg *commands.Registry, settings guildconfig.Store, notifier audit.Notifier, log *logger.Logger) *Set {
	return New(reg, settings, notifier, log.Named("commands"))
}
