package appinfo

import "go.uber.org/fx"

var Module = fx.Module("appinfo",
	fx.Provide(New),
	fx.Provide(func(s *Service) UpdateChecker { return s }),
)
