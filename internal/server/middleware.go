package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/console/internal/observability/logger"
	"go.uber.org/zap"
)

// RateLimit throttles the route per acting user. Limiter failures let the
// request through.
func (s *Server) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		userID, ok := userIDFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)
		res, err := s.limiter.Allow(ctx, endpoint, userID)
		if err != nil {
			logger.WithContext(ctx, s.log).Warn("rate limit check failed", zap.String("endpoint", endpoint), zap.Error(err))
			c.Next()
			return
		}
		if !res.Allowed {
			logger.WithContext(ctx, s.log).Warn("rate limit exceeded", zap.String("endpoint", endpoint))
			s.metrics.RecordRateLimited(ctx, endpoint)
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Next()
	}
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
