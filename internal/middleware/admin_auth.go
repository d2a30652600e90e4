package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/skaet/ussd_bank/internal/auth"
)

const adminSubjectKey = "admin_subject"

// AdminAuth requires a bearer token carrying the admin role.
func AdminAuth(tokens *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		claims, err := tokens.Parse(strings.TrimSpace(authz[len("Bearer "):]))
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}
		if claims.Role != auth.RoleAdmin {
			return fiber.NewError(http.StatusForbidden, "admin role required")
		}
		c.Locals(adminSubjectKey, claims.Subject)
		return c.Next()
	}
}

// AdminSubject returns the operator identified by AdminAuth.
func AdminSubject(c *fiber.Ctx) string {
	sub, _ := c.Locals(adminSubjectKey).(string)
	return sub
}
