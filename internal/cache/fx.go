package cache

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/console/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("cache",
	fx.Provide(NewRedisClient),
	fx.Provide(NewDecisionCache),
)

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	Redis  *redis.Client `optional:"true"`
}

// NewDecisionCache prefers Redis when a client is configured.
func NewDecisionCache(p Params) DecisionCache {
	log := p.Log.Named("cache")
	if p.Redis != nil {
		log.Info("permission decisions cached in redis", zap.Duration("ttl", p.Config.PermissionCacheTTL))
		return NewRedis(p.Redis, p.Config.PermissionCacheTTL)
	}
	log.Info("permission decisions cached in memory", zap.Duration("ttl", p.Config.PermissionCacheTTL))
	return NewMemory(defaultMemoryBounds, p.Config.PermissionCacheTTL)
}
