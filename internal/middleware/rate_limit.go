package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/gema-contest-api/internal/utils"
)

// RateLimit throttles a route per authenticated principal, falling back to the client IP.
// Teams share one bucket per team id no matter how many members hold a token.
func RateLimit(identifier string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return fmt.Sprintf("%s:%s", identifier, rateLimitSubject(c))
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.SendError(c, fiber.StatusTooManyRequests, "too many requests, slow down")
		},
	})
}

func rateLimitSubject(c *fiber.Ctx) string {
	role := normalizeRoleValue(c.Locals("user_role"))
	if id, ok := c.Locals("user_id").(uint); ok && id > 0 {
		return fmt.Sprintf("%s-%d", role, id)
	}
	return "ip-" + c.IP()
}
