package verify

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"guildwarden/pkg/config"
	"guildwarden/pkg/logger"
)

// Module provides the request verifier.
var Module = fx.Module("verify",
	fx.Provide(ProvideVerifier),
)

// ProvideVerifier loads the public key once. A bad key is logged and the
// verifier is returned anyway, so the process stays up and rejects requests.
func ProvideVerifier(cfg *config.Config, log *logger.Logger) *Verifier {
	key, err := LoadPublicKey(cfg.Discord.PublicKey)
	if err != nil {
		log.Error("Discord public key could not be loaded; all interactions will be rejected",
			zap.Error(err))
		key = nil
	}
	return New(key, WithMaxSkew(cfg.Discord.MaxTimestampSkew))
}
