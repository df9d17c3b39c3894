// Package http contains the admin and operational request handlers.
package http

import (
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"gallerystats/internal/analytics"
	"gallerystats/internal/apperror"
	"gallerystats/internal/auth"
	"gallerystats/internal/catalog"
	"gallerystats/internal/config"
	"gallerystats/internal/kvstore"
	"gallerystats/internal/metrics"
)

var errCatalogDisabled = errors.New("catalog database is not configured")

// Deps are the collaborators the handlers need.
type Deps struct {
	Config  *config.Config
	Logger  *slog.Logger
	Stats   *analytics.Store
	Gate    *auth.Gate
	Catalog *catalog.Service
	DB      *gorm.DB
	KV      kvstore.Store
	Metrics *metrics.Metrics
}

// Handlers serves the admin and health endpoints.
type Handlers struct {
	Deps
}

// NewHandlers creates the handler set.
func NewHandlers(d Deps) *Handlers {
	return &Handlers{Deps: d}
}

func (h *Handlers) catalogReady() error {
	if h.Catalog == nil {
		return apperror.NewStorageUnavailable(errCatalogDisabled)
	}
	return nil
}
