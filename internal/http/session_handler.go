package http

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"gallerystats/internal/apperror"
	"gallerystats/internal/pkg/clientip"
)

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// AdminLoginAction checks the admin credentials and sets the session cookie.
func (h *Handlers) AdminLoginAction(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "no-store")

	var body loginRequest
	if err := c.BodyParser(&body); err != nil {
		h.Logger.Debug("Unreadable login body", slog.Any("error", err))
	}

	username := strings.TrimSpace(body.Username)
	if username == "" {
		// clients that only send a password log in as the configured admin
		username = h.Config.AdminUsername
	}

	session, err := h.Gate.Login(c.UserContext(), clientip.ForRateLimit(c, h.Config.TrustProxyHeaders), username, body.Password)
	if err != nil {
		switch apperror.KindOf(err) {
		case apperror.RateLimited:
			h.Metrics.ObserveLogin("limited")
		case apperror.Unauthorized:
			h.Metrics.ObserveLogin("invalid")
		default:
			h.Metrics.ObserveLogin("error")
		}
		return err
	}
	h.Metrics.ObserveLogin("ok")

	expires := session.Claims.Expiry()
	c.Cookie(&fiber.Cookie{
		Name:     h.Config.SessionCookieName(),
		Value:    session.Token,
		Path:     "/",
		MaxAge:   int(h.Gate.TTL().Seconds()),
		Expires:  expires,
		Secure:   h.Config.IsProduction(),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	h.Logger.Info("Admin login successful", slog.Time("expiresAt", expires))

	return c.JSON(fiber.Map{
		"ok":        true,
		"token":     session.Token,
		"expiresAt": session.Claims.ExpiresAt,
	})
}

// AdminLogoutAction clears the session cookie. Tokens are stateless, so an
// already copied token stays valid until it expires.
func (h *Handlers) AdminLogoutAction(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "no-store")

	c.Cookie(&fiber.Cookie{
		Name:     h.Config.SessionCookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Now().Add(-24 * time.Hour),
		Secure:   h.Config.IsProduction(),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return c.JSON(fiber.Map{"ok": true})
}
