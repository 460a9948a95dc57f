package middleware

import (
	"log"

	"github.com/labstack/echo/v4"

	"marketchat/internal/infrastructure/ratelimit"
	"marketchat/pkg/errors"
	"marketchat/pkg/response"
)

// RateLimitMiddleware applies per-IP limits on top of the per-user limits
// the use cases enforce, so unauthenticated requests are bounded too.
type RateLimitMiddleware struct {
	limiter *ratelimit.RateLimiter
}

func NewRateLimitMiddleware() *RateLimitMiddleware {
	limiter := ratelimit.NewRateLimiter()
	limiter.StartCleanupRoutine()

	return &RateLimitMiddleware{
		limiter: limiter,
	}
}

// Limit returns Echo middleware keyed on the client IP and the given action,
// so different route groups can carry different budgets.
func (m *RateLimitMiddleware) Limit(action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()

			allowed, waitTime := m.limiter.Allow("ip:"+ip, action)
			if !allowed {
				log.Printf("Rate limit exceeded for IP %s on %s", ip, action)
				return response.Error(c, errors.TooManyRequests("Rate limit exceeded", waitTime))
			}

			return next(c)
		}
	}
}
