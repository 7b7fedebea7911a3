package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/console/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyUserEndpoint = "console:ratelimit:%s:%s"

// UserLimiter throttles expensive admin endpoints per user. A nil limiter
// allows everything.
type UserLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	Redis  *redis.Client `optional:"true"`
}

func NewUserLimiter(p Params) *UserLimiter {
	log := p.Log.Named("ratelimit")
	if !p.Config.RateLimitEnabled || p.Redis == nil {
		log.Info("per-user rate limiting disabled")
		return nil
	}
	log.Info("per-user rate limiting enabled",
		zap.Float64("rate", p.Config.RateLimitRate),
		zap.Int("burst", p.Config.RateLimitBurst),
	)
	return New(p.Redis, p.Config.RateLimitRate, p.Config.RateLimitBurst)
}

func New(client *redis.Client, rate float64, burst int) *UserLimiter {
	bucket := NewTokenBucket(client)
	if bucket == nil {
		return nil
	}
	return &UserLimiter{bucket: bucket, rate: rate, burst: burst}
}

func (l *UserLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *UserLimiter) Allow(ctx context.Context, endpoint string, userID snowflake.ID) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyUserEndpoint, strings.TrimSpace(endpoint), userID.String())
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}
