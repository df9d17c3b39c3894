package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	DBStatus  string    `json:"db_status"`
	KVStatus  string    `json:"kv_status"`
}

// HealthIndexAction handles the health check endpoint
func (h *Handlers) HealthIndexAction(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.Config.StoreTimeout())
	defer cancel()

	dbStatus := "ok"
	if h.DB == nil {
		dbStatus = "disabled"
	} else {
		sqlDB, err := h.DB.DB()
		if err != nil {
			dbStatus = "error"
			h.Logger.Error("Database connection error", slog.Any("error", err))
		} else if err := sqlDB.PingContext(ctx); err != nil {
			dbStatus = "error"
			h.Logger.Error("Database ping failed", slog.Any("error", err))
		}
	}

	kvStatus := "ok"
	if err := h.KV.Ping(ctx); err != nil {
		kvStatus = "error"
		h.Logger.Error("Key-value store ping failed", slog.Any("error", err))
	}

	health := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		DBStatus:  dbStatus,
		KVStatus:  kvStatus,
	}

	if dbStatus == "error" || kvStatus == "error" {
		health.Status = "degraded"
	}

	return c.JSON(health)
}
