// middleware/auth.go
package middleware

import (
	"slices"
	"strings"

	"study-quest/logger"

	"github.com/gofiber/fiber/v2"
)

const (
	localUserID = "user_id"
	localRoles  = "user_roles"
)

// UserContextMiddleware extracts user identity and roles set by Gateway.
// Routes behind it cannot be reached without X-User-ID.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))
		if userID == "" {
			logger.L().Warnf("❌ [USER_CTX] X-User-ID required but missing on secured route: %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID: request must come through gateway with auth context",
			})
		}

		var roles []string
		for _, r := range strings.Split(c.Get("X-User-Roles"), ",") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, r)
			}
		}

		c.Locals(localUserID, userID)
		c.Locals(localRoles, roles)
		logger.L().Debugf("👤 [USER_CTX] UserID=%s, Roles=%v | Path: %s", userID, roles, c.Path())
		return c.Next()
	}
}

// RequireRole rejects requests whose gateway roles do not include role.
// Must run after UserContextMiddleware.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		roles, _ := c.Locals(localRoles).([]string)
		if !slices.Contains(roles, role) {
			logger.L().Warnf("🚫 [USER_CTX] %s lacks role %q for %s", UserID(c), role, c.Path())
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "insufficient role",
			})
		}
		return c.Next()
	}
}

// UserID returns the caller set by UserContextMiddleware, or "".
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(localUserID).(string)
	return id
}
