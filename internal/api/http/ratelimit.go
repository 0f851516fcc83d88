package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// RateLimiter wraps a rate.Limiter shared by all clients.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter allowing reqPerSec with the given burst.
// A non-positive reqPerSec disables limiting and returns nil.
func NewRateLimiter(reqPerSec float64, burst int) *RateLimiter {
	if reqPerSec <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(reqPerSec), burst)}
}

// RateLimit rejects requests over the limit with 429.
func RateLimit(rl *RateLimiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rl != nil && !rl.limiter.Allow() {
			return fiber.NewError(fiber.StatusTooManyRequests, "Too many requests, please slow down")
		}
		return c.Next()
	}
}
