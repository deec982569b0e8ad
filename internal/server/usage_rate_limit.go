package server

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/creditledger/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/creditledger/internal/observability/metrics"
	"github.com/smallbiznis/creditledger/internal/ratelimit"
	"go.uber.org/zap"
)

const rateLimitReasonUserRate = "user-rate"

// UsageRateLimit throttles usage charging per credit account. Redis failures
// reject the request rather than letting unmetered traffic through.
func (s *Server) UsageRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.usageLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)
		userID := strconv.FormatInt(userIDFromContext(c), 10)

		res, err := s.usageLimiter.AllowUser(ctx, userID)
		if err != nil {
			logger.FromContext(ctx).Warn("usage rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		writeRateLimitHeaders(c, res)
		if !res.Allowed {
			denyUsageRateLimit(c, endpoint, rateLimitReasonUserRate, res, s.obsMetrics)
			return
		}

		recordRateLimitAllowed(ctx, endpoint, s.obsMetrics)
		c.Next()
	}
}

func writeRateLimitHeaders(c *gin.Context, res *ratelimit.RateLimitResult) {
	if res == nil || res.Limit == 0 {
		return
	}
	c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	if !res.ResetTime.IsZero() {
		c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetTime.Unix(), 10))
	}
}

func denyUsageRateLimit(c *gin.Context, endpoint, reason string, res *ratelimit.RateLimitResult, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("usage rate limit exceeded",
		zap.String("reason", reason),
		zap.String("endpoint", endpoint),
	)
	recordRateLimitDenied(ctx, endpoint, reason, metrics)

	retryAfter := 1
	if res != nil && res.RetryAfter > 0 {
		retryAfter = int(math.Ceil(res.RetryAfter.Seconds()))
	}
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, ErrRateLimited)
}

func recordRateLimitAllowed(ctx context.Context, endpoint string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitAllowed(ctx, "user", endpoint)
}

func recordRateLimitDenied(ctx context.Context, endpoint, reason string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, "user", endpoint, reason)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
