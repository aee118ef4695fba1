package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/ticket-sla/pkg/util"
)

// Role is an ops API permission level.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleAgent  Role = "agent"
	RoleAdmin  Role = "admin"
)

var roleRank = map[Role]int{
	RoleViewer: 1,
	RoleAgent:  2,
	RoleAdmin:  3,
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// Covers reports whether r grants at least the permissions of required.
func (r Role) Covers(required Role) bool {
	return roleRank[required] > 0 && roleRank[r] >= roleRank[required]
}

// RequireRole ensures the authenticated operator holds required or a higher
// role.
func RequireRole(required Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !principal.Role.Covers(required) {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
