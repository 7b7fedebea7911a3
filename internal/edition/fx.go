package edition

import "go.uber.org/fx"

var Module = fx.Module("edition",
	fx.Provide(Resolve),
)
