package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"tradejournal/internal/identity"
	"tradejournal/internal/infra"
)

// RateLimit limits requests per API key header, or per client IP when no key is sent.
// Keys are hashed before they reach Redis.
func RateLimit(limiter *infra.RateLimiter, name string, metrics *infra.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := "ip:" + c.RealIP()
			if apiKey := strings.TrimSpace(c.Request().Header.Get(identity.HeaderAPIKey)); apiKey != "" {
				sum := sha256.Sum256([]byte(apiKey))
				key = "key:" + hex.EncodeToString(sum[:8])
			}

			decision := limiter.Allow(c.Request().Context(), key)
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			if !decision.Allowed {
				retry := int(time.Until(decision.ResetAt).Seconds()) + 1
				h.Set("Retry-After", strconv.Itoa(retry))
				metrics.RateLimited(name)
				return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests")
			}
			return next(c)
		}
	}
}
