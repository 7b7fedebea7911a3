package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/console/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewRedisClient returns nil when no address is configured.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return client.Close()
			},
		})
	}
	log.Named("cache").Info("redis configured", zap.String("addr", addr), zap.Int("db", cfg.RedisDB))
	return client
}

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis shares decisions between replicas.
func NewRedis(client *redis.Client, ttl time.Duration) DecisionCache {
	return &redisCache{client: client, ttl: ttlOrDefault(ttl)}
}

func (c *redisCache) Get(ctx context.Context, key string) (bool, bool, error) {
	value, err := c.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return value == "1", true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, allowed bool) error {
	value := "0"
	if allowed {
		value = "1"
	}
	return c.client.Set(ctx, keyPrefix+key, value, c.ttl).Err()
}
