package http

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// AnalyticsIndexAction returns the aggregated report. A storage failure
// yields a zeroed report flagged as degraded rather than an error.
func (h *Handlers) AnalyticsIndexAction(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "no-store")

	report, err := h.Stats.Report(c.UserContext())
	if err != nil {
		h.Logger.Warn("Analytics storage unavailable, serving empty report", slog.Any("error", err))
		h.Metrics.ObserveStorageError("analytics")
		report.Degraded = true
	}

	return c.JSON(report)
}
