package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	"gallerystats/internal/http/middleware"
)

// LegacyFunctionsPrefix is where the static site's serverless endpoints used
// to live; every route is also mounted under it.
const LegacyFunctionsPrefix = "/.netlify/functions"

// publicCORSConfig returns the standard CORS configuration for public endpoints.
var publicCORSConfig = cors.Config{
	AllowOrigins: "*",
	AllowMethods: "GET,POST,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, X-Client-Id",
}

// MountAppRoutes mounts all application routes on a.Server.
func MountAppRoutes(a *Application) {
	cfg := a.Config
	srv := a.Server

	srv.Use(recover.New())
	srv.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	srv.Use(a.Metrics.Middleware())

	// Rate limiting would interfere with testing, so it only runs in production
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	// 120/min per IP covers a visitor browsing the gallery quickly
	publicRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(120),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// Stricter limiter for auth endpoints, on top of the failure-based lockout
	authRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(10),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	publicCORS := cors.New(publicCORSConfig)
	requireAdmin := middleware.RequireAdmin(a.Gate, cfg.SessionCookieName())

	// Operational endpoints
	srv.Get("/_health", a.Admin.HealthIndexAction)
	srv.Head("/_health", a.Admin.HealthIndexAction)
	srv.Get("/metrics", a.Metrics.Handler())

	for _, prefix := range []string{"", LegacyFunctionsPrefix} {
		r := srv.Group(prefix)

		// === PUBLIC ENDPOINTS ===
		// CORS runs first so throttled responses still carry CORS headers
		r.Post("/track", publicCORS, publicRateLimiter, a.API.TrackAction)
		r.Get("/views", publicCORS, publicRateLimiter, a.API.ViewsIndexAction)
		r.Post("/views", publicCORS, publicRateLimiter, a.API.ViewsCreateAction)
		r.Get("/items", publicCORS, publicRateLimiter, a.API.ItemsIndexAction)
		for _, path := range []string{"/track", "/views", "/items"} {
			r.Options(path, publicCORS)
		}

		// === AUTHENTICATION ===
		r.Post("/admin-login", authRateLimiter, a.Admin.AdminLoginAction)
		r.Post("/admin-logout", a.Admin.AdminLogoutAction)

		// === ADMIN ENDPOINTS ===
		r.Get("/analytics", requireAdmin, a.Admin.AnalyticsIndexAction)
		r.Get("/admin-items", requireAdmin, a.Admin.AdminItemsIndexAction)
		r.Post("/admin-items", requireAdmin, a.Admin.AdminItemsCreateAction)
		r.Put("/admin-items", requireAdmin, a.Admin.AdminItemsUpdateAction)
		r.Delete("/admin-items", requireAdmin, a.Admin.AdminItemsDeleteAction)
	}
}
