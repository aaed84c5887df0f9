package commands

import (
	"go.uber.org/fx"
)

// Module provides the command registry. Command sets register themselves
// with fx.Invoke against *Registry.
var Module = fx.Module("commands",
	fx.Provide(NewRegistry),
)
