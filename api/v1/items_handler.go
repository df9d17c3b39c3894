package v1

import (
	"encoding/json"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"gallerystats/internal/apperror"
)

// ItemsIndexAction serves the public catalog listing. Responses carry an
// ETag; a matching If-None-Match yields 304.
func (h *Handler) ItemsIndexAction(c *fiber.Ctx) error {
	if h.Catalog == nil {
		return apperror.NewStorageUnavailable(errCatalogDisabled)
	}

	public, err := h.Catalog.Public(c.UserContext())
	if err != nil {
		h.Logger.Warn("Public catalog unavailable", slog.Any("error", err))
		h.Metrics.ObserveStorageError("items")
		return err
	}

	body, err := json.Marshal(public)
	if err != nil {
		return apperror.Wrap(apperror.ServerError, "Server error", err)
	}

	etag := generateETag(body)
	c.Set(fiber.HeaderETag, etag)
	c.Set(fiber.HeaderCacheControl, "public, max-age=60")

	if match := c.Get(fiber.HeaderIfNoneMatch); match != "" && etagMatches(match, etag) {
		return c.SendStatus(fiber.StatusNotModified)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.Send(body)
}
