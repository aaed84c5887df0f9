package discord

import (
	"go.uber.org/fx"

	"guildwarden/pkg/config"
	"guildwarden/pkg/logger"
)

// Module provides the REST client as API.
var Module = fx.Module("discord",
	fx.Provide(ProvideAPI),
)

// ProvideAPI builds the REST client from configuration. A missing token is
// not fatal: every call will fail with 401 and be reported to the user.
func ProvideAPI(cfg *config.Config, log *logger.Logger) (API, error) {
	if cfg.Discord.Token == "" {
		log.Warn("discord.token is not set; REST calls will be rejected")
	}
	return NewClient(cfg.Discord.Token, cfg.Discord.RequestTimeout, log.Named("discord"))
}
