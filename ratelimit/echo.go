package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// IdentityFunc extracts the client identity from a request.
type IdentityFunc func(c echo.Context) string

// RealIPIdentity uses echo's RealIP, which honours the server's IPExtractor.
// Without an IPExtractor echo trusts client-sent forwarding headers, so
// servers using this must set one.
func RealIPIdentity(c echo.Context) string {
	return ClientIdentity(c.RealIP())
}

// Middleware rejects requests over the limit with 429 before they reach
// the handler. With no IdentityFunc, RealIPIdentity is used.
func (l *Limiter) Middleware(identity ...IdentityFunc) echo.MiddlewareFunc {
	idf := RealIPIdentity
	if len(identity) > 0 && identity[0] != nil {
		idf = identity[0]
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			d, err := l.Allow(c.Request().Context(), idf(c))
			h := c.Response().Header()
			if l.Enabled() && err == nil {
				h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
				h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			}
			if d.Allowed {
				return next(c)
			}
			if err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]any{
					"success": false,
					"error":   "Rate limiter unavailable",
				})
			}
			h.Set("Retry-After", strconv.Itoa(retryAfterSeconds(d.ResetAfter)))
			return c.JSON(http.StatusTooManyRequests, map[string]any{
				"success": false,
				"error":   "Too many requests, please try again later.",
			})
		}
	}
}

func retryAfterSeconds(d time.Duration) int {
	s := int((d + time.Second - 1) / time.Second)
	return max(s, 1)
}
