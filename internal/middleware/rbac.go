package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/session"
	"github.com/noah-isme/gema-lms-api/internal/utils"
)

// RequireRole admits requests whose authenticated user holds one of roles. The role
// comes from the verified session when present and from Locals otherwise.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if normalized := normalizeRole(role); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		role, authenticated := requestRole(c)
		if !authenticated {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		if _, ok := allowed[role]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

// RequireInstructor admits teachers and admins. Ownership of the course itself is
// enforced by the services.
func RequireInstructor() fiber.Handler {
	return RequireRole(models.RoleTeacher, models.RoleAdmin)
}

func requestRole(c *fiber.Ctx) (string, bool) {
	if user, ok := session.FromContext(c.UserContext()); ok {
		return normalizeRole(user.Role), true
	}
	role, _ := c.Locals("user_role").(string)
	role = normalizeRole(role)
	if role != "" {
		return role, true
	}
	userID, _ := c.Locals("user_id").(string)
	return "", strings.TrimSpace(userID) != ""
}
