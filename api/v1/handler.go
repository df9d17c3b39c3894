// Package v1 serves the public endpoints called by the static site.
package v1

import (
	"errors"
	"log/slog"
	"time"

	"gallerystats/internal/analytics"
	"gallerystats/internal/catalog"
	"gallerystats/internal/config"
	"gallerystats/internal/counting"
	"gallerystats/internal/metrics"
	"gallerystats/internal/pkg/geoip"
	"gallerystats/internal/pkg/referrers"
	"gallerystats/internal/views"
	"gallerystats/internal/visitors"
)

var errCatalogDisabled = errors.New("catalog database is not configured")

// Deps are the collaborators the public handlers need.
type Deps struct {
	Config        *config.Config
	Logger        *slog.Logger
	Recorder      *counting.Recorder
	Stats         *analytics.Store
	Views         *views.Counter
	Catalog       *catalog.Service
	Geo           *geoip.Resolver
	InternalHosts *referrers.InternalHosts
	Viewers       *visitors.CookieSigner
	Metrics       *metrics.Metrics
}

// Handler serves /track, /views and /items.
type Handler struct {
	Deps
	now func() time.Time
}

// NewHandler creates the public handler set.
func NewHandler(d Deps) *Handler {
	return &Handler{Deps: d, now: time.Now}
}

// SetClock overrides the time source used for day bucketing.
func (h *Handler) SetClock(now func() time.Time) {
	h.now = now
}
