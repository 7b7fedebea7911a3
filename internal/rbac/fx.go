package rbac

import (
	"github.com/smallbiznis/console/internal/rbac/repository"
	"github.com/smallbiznis/console/internal/rbac/service"
	"go.uber.org/fx"
)

var Module = fx.Module("rbac.service",
	fx.Provide(service.NewEnforcer),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Invoke(repository.Migrate),
)
