package v1

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"gallerystats/internal/apperror"
	"gallerystats/internal/pkg/clientip"
	"gallerystats/internal/views"
	"gallerystats/internal/visitors"
)

// viewerCookieMaxAge keeps the signed viewer identity for a year.
const viewerCookieMaxAge = 365 * 24 * time.Hour

// Accepted names for the item id, in lookup order.
var viewIDParams = []string{"id", "imageId", "itemId", "tutorialId"}

// ViewsResponse is returned by GET and POST /views.
type ViewsResponse struct {
	ID       string `json:"id"`
	Views    int64  `json:"views"`
	Counted  *bool  `json:"counted,omitempty"`
	Degraded bool   `json:"degraded,omitempty"`
}

type viewRequest struct {
	ID         any    `json:"id"`
	ImageID    any    `json:"imageId"`
	ItemID     any    `json:"itemId"`
	TutorialID any    `json:"tutorialId"`
	ViewerID   string `json:"viewerId"`
}

// ViewsIndexAction returns the current view count of an item.
func (h *Handler) ViewsIndexAction(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "no-store")

	id, err := views.NormalizeID(firstQuery(c, viewIDParams...))
	if err != nil {
		return apperror.NewBadRequest("Missing id")
	}

	count, err := h.Views.Get(c.UserContext(), id)
	if err != nil {
		h.Logger.Warn("View count unavailable", slog.String("id", id), slog.Any("error", err))
		h.Metrics.ObserveStorageError("views")
		return c.JSON(ViewsResponse{ID: id, Degraded: true})
	}
	return c.JSON(ViewsResponse{ID: id, Views: count})
}

// ViewsCreateAction counts a view of an item, at most once per visitor.
func (h *Handler) ViewsCreateAction(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "no-store")

	var req viewRequest
	if body := c.Body(); len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return apperror.Wrap(apperror.BadRequest, "Invalid JSON body", err)
		}
	}

	rawID := firstNonEmpty(
		stringValue(req.ID),
		stringValue(req.ImageID),
		stringValue(req.ItemID),
		stringValue(req.TutorialID),
	)
	if rawID == "" {
		rawID = firstQuery(c, viewIDParams...)
	}
	id, err := views.NormalizeID(rawID)
	if err != nil {
		return apperror.NewBadRequest("Missing id")
	}

	visitorHash := h.viewerHash(c, req.ViewerID)
	h.setViewerCookie(c, visitorHash)

	count, counted, err := h.Views.Record(c.UserContext(), id, visitorHash)
	if err != nil {
		h.Logger.Warn("Failed to record view", slog.String("id", id), slog.Any("error", err))
		h.Metrics.ObserveStorageError("views")
		notCounted := false
		return c.JSON(ViewsResponse{ID: id, Views: count, Counted: &notCounted, Degraded: true})
	}

	h.Metrics.ObserveEvent("view", counted)
	return c.JSON(ViewsResponse{ID: id, Views: count, Counted: &counted})
}

// viewerHash resolves the visitor: explicit id, then the signed viewer cookie,
// then client IP, user agent and finally "unknown".
func (h *Handler) viewerHash(c *fiber.Ctx, viewerID string) string {
	explicit := visitors.NormalizeExplicitID(firstNonEmpty(viewerID, c.Get("X-Client-Id")))
	if explicit != "" {
		return visitors.HashIdentity(explicit)
	}

	if hash := h.Viewers.Verify(c.Cookies(h.Config.ViewerCookieName())); hash != "" {
		return hash
	}

	return visitors.BuildVisitorHash(visitors.Signals{
		IP:        clientip.ForIdentity(c),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	})
}

func (h *Handler) setViewerCookie(c *fiber.Ctx, visitorHash string) {
	c.Cookie(&fiber.Cookie{
		Name:     h.Config.ViewerCookieName(),
		Value:    h.Viewers.Sign(visitorHash),
		Path:     "/",
		MaxAge:   int(viewerCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(viewerCookieMaxAge),
		Secure:   h.Config.IsProduction(),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
