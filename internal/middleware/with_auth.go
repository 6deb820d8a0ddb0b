package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-contest-api/internal/utils"
)

// Contest roles carried in the token "role" claim.
const (
	AuthRoleAny   = "any"
	AuthRoleAdmin = "admin"
	AuthRoleJudge = "judge"
	AuthRoleTeam  = "team"
)

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	Role        string
	RequireUser bool
}

// WithAuth wraps a handler with role checks. Admins pass every role check; judges never act as
// teams and teams never grade.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = AuthRoleAny
	}

	requireUser := opts.RequireUser
	if !requireUser && role != AuthRoleAny {
		requireUser = true
	}

	return func(c *fiber.Ctx) error {
		authenticated := c.Locals("user_id") != nil || c.Locals("user_role") != nil
		if requireUser && !authenticated {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		if role == AuthRoleAny {
			return handler(c)
		}

		if !roleAllows(role, normalizeRoleValue(c.Locals("user_role"))) {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return handler(c)
	}
}

func roleAllows(required, current string) bool {
	if current == AuthRoleAdmin {
		return true
	}
	return current != "" && current == required
}
