package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gsg-it/helpdesk/internal/domain"
	apperrors "github.com/gsg-it/helpdesk/pkg/util"
)

// RequireRole ensures the actor carries one of the allowed roles. Used as a
// coarse route gate; per-operation rules are enforced again in the services.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[actor.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
