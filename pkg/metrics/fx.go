package metrics

import "go.uber.org/fx"

// Module provides the metrics collectors.
var Module = fx.Module("metrics",
	fx.Provide(New),
)
