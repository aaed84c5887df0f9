package guildconfig

import (
	"go.uber.org/fx"

	"guildwarden/pkg/state"
)

// Module provides the guild settings store.
var Module = fx.Module("guildconfig",
	fx.Provide(func(kv state.KV) Store { return NewKVStore(kv) }),
)
