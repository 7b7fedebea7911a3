package settingsmenu

import "go.uber.org/fx"

var Module = fx.Module("settingsmenu",
	fx.Provide(NewLinksProvider),
	fx.Provide(NewService),
)
