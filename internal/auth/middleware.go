package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/swarmdesk/swarmdesk/pkg/util/errorutil"
)

// AdminMiddleware validates bearer tokens on API-key management routes.
type AdminMiddleware struct {
	tokens *TokenManager
}

// NewAdminMiddleware constructs middleware.
func NewAdminMiddleware(tokens *TokenManager) *AdminMiddleware {
	return &AdminMiddleware{tokens: tokens}
}

// Handle enforces an admin token for protected routes.
func (m *AdminMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}
	if !claims.Admin {
		return apperrors.NewUnauthorized("admin token required")
	}
	return c.Next()
}
