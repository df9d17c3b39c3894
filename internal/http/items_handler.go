package http

import (
	"encoding/json"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"gallerystats/internal/apperror"
	"gallerystats/internal/catalog"
)

// AdminItemsIndexAction returns the full catalog with media settings.
func (h *Handlers) AdminItemsIndexAction(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "no-store")
	if err := h.catalogReady(); err != nil {
		return err
	}

	result, err := h.Catalog.Read(c.UserContext())
	if err != nil {
		h.Metrics.ObserveStorageError("catalog_read")
		return err
	}
	return c.JSON(result)
}

// AdminItemsCreateAction inserts a new item.
func (h *Handlers) AdminItemsCreateAction(c *fiber.Ctx) error {
	if err := h.catalogReady(); err != nil {
		return err
	}
	item, tags, err := parseItem(c)
	if err != nil {
		return err
	}

	if err := h.Catalog.Create(c.UserContext(), item, tags); err != nil {
		return h.writeFailed(err, "create", item.ID)
	}

	h.Logger.Info("Catalog item created", slog.Int64("id", item.ID), slog.String("slug", item.Slug))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true, "id": item.ID})
}

// AdminItemsUpdateAction replaces an existing item.
func (h *Handlers) AdminItemsUpdateAction(c *fiber.Ctx) error {
	if err := h.catalogReady(); err != nil {
		return err
	}
	item, tags, err := parseItem(c)
	if err != nil {
		return err
	}

	if err := h.Catalog.Update(c.UserContext(), item, tags); err != nil {
		return h.writeFailed(err, "update", item.ID)
	}

	h.Logger.Info("Catalog item updated", slog.Int64("id", item.ID))
	return c.JSON(fiber.Map{"ok": true, "id": item.ID})
}

// AdminItemsDeleteAction removes an item. The id comes from the body or ?id=.
func (h *Handlers) AdminItemsDeleteAction(c *fiber.Ctx) error {
	if err := h.catalogReady(); err != nil {
		return err
	}

	var body struct {
		ID json.Number `json:"id"`
	}
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return apperror.Wrap(apperror.BadRequest, "Invalid JSON body", err)
		}
	}

	id := catalog.ParseID(body.ID.String())
	if id == 0 {
		id = catalog.ParseID(c.Query("id"))
	}
	if id == 0 {
		return apperror.NewBadRequest("Missing id")
	}

	if err := h.Catalog.Delete(c.UserContext(), id); err != nil {
		return h.writeFailed(err, "delete", id)
	}

	h.Logger.Info("Catalog item deleted", slog.Int64("id", id))
	return c.JSON(fiber.Map{"ok": true, "id": id})
}

func parseItem(c *fiber.Ctx) (catalog.Item, []string, error) {
	var in catalog.ItemInput
	if err := json.Unmarshal(c.Body(), &in); err != nil {
		return catalog.Item{}, nil, apperror.Wrap(apperror.BadRequest, "Invalid JSON body", err)
	}
	return in.ToItem()
}

func (h *Handlers) writeFailed(err error, op string, id int64) error {
	if apperror.KindOf(err) == apperror.StorageUnavailable {
		h.Metrics.ObserveStorageError("catalog_" + op)
	}
	h.Logger.Debug("Catalog write rejected",
		slog.String("op", op),
		slog.Int64("id", id),
		slog.Any("error", err))
	return err
}
