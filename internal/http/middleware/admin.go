package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"gallerystats/internal/apperror"
	"gallerystats/internal/auth"
)

// AdminClaimsKey is the Locals key holding the verified *auth.Claims.
const AdminClaimsKey = "admin_claims"

// TokenVerifier verifies admin session tokens.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, bool)
}

// RequireAdmin accepts a session token from the named cookie or from an
// Authorization: Bearer header and rejects the request with 401 otherwise.
func RequireAdmin(verifier TokenVerifier, cookieName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := SessionToken(c, cookieName)
		if token == "" {
			return apperror.NewUnauthorized("Unauthorized")
		}

		claims, ok := verifier.Verify(token)
		if !ok {
			return apperror.NewUnauthorized("Unauthorized")
		}

		c.Locals(AdminClaimsKey, claims)
		return c.Next()
	}
}

// SessionToken extracts the token from the cookie, falling back to the bearer header.
func SessionToken(c *fiber.Ctx, cookieName string) string {
	if token := strings.TrimSpace(c.Cookies(cookieName)); token != "" {
		return token
	}

	authHeader := c.Get(fiber.HeaderAuthorization)
	if len(authHeader) > len("Bearer ") && strings.EqualFold(authHeader[:len("Bearer ")], "Bearer ") {
		return strings.TrimSpace(authHeader[len("Bearer "):])
	}
	return ""
}
