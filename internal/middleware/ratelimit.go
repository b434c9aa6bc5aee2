package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apperrors "github.com/snchs-registrar/enrollment-api/pkg/errors"
	"github.com/snchs-registrar/enrollment-api/pkg/response"
)

// RateLimiter throttles clients with a Redis sliding window per IP. A Redis
// outage fails open so the API stays available.
type RateLimiter struct {
	client  *redis.Client
	logger  *zap.Logger
	enabled bool
}

// NewRateLimiter constructs the limiter. A nil client disables limiting.
func NewRateLimiter(client *redis.Client, logger *zap.Logger, enabled bool) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{client: client, logger: logger, enabled: enabled && client != nil}
}

// Limit returns middleware enforcing at most limit requests per window for
// the named budget.
func (l *RateLimiter) Limit(name string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.enabled {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		key := fmt.Sprintf("ratelimit:%s:%s", name, c.ClientIP())
		now := time.Now()
		cutoff := now.Add(-window)

		pipe := l.client.TxPipeline()
		pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", cutoff.UnixNano()))
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  float64(now.UnixNano()),
			Member: uuid.NewString(),
		})
		count := pipe.ZCard(ctx, key)
		pipe.Expire(ctx, key, window)
		if _, err := pipe.Exec(ctx); err != nil {
			l.logger.Warn("rate limiter unavailable, allowing request",
				zap.String("budget", name), zap.Error(err))
			c.Next()
			return
		}

		if count.Val() > int64(limit) {
			c.Header("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			response.Error(c, apperrors.ErrRateLimited)
			c.Abort()
			return
		}
		c.Next()
	}
}
