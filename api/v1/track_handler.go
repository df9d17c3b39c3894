package v1

import (
	"encoding/json"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"gallerystats/internal/analytics"
	"gallerystats/internal/apperror"
	"gallerystats/internal/counting"
	"gallerystats/internal/pkg/clientip"
	"gallerystats/internal/pkg/referrers"
	"gallerystats/internal/visitors"
)

// TrackRequest is the body of POST /track.
type TrackRequest struct {
	VisitorID string `json:"visitorId"`
	Path      string `json:"path"`
	Host      string `json:"host"`
	Referrer  string `json:"referrer"`
}

// TrackResponse is returned by POST /track.
type TrackResponse struct {
	OK           bool             `json:"ok"`
	CountedVisit bool             `json:"countedVisit"`
	Source       string           `json:"source"`
	Country      string           `json:"country"`
	Totals       analytics.Totals `json:"totals"`
	Degraded     bool             `json:"degraded,omitempty"`
}

// TrackAction records a page visit and returns the updated totals.
func (h *Handler) TrackAction(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "no-store")

	var req TrackRequest
	if body := c.Body(); len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return apperror.Wrap(apperror.BadRequest, "Invalid JSON body", err)
		}
	}

	visitorID := visitors.NormalizeExplicitID(req.VisitorID)
	if visitorID == "" {
		return apperror.NewBadRequest("Missing or invalid visitorId")
	}
	visitorHash := visitors.HashIdentity(visitorID)

	ctx := c.UserContext()
	day := counting.DayKey(h.now(), h.Config.Location())
	country := h.Geo.Country(requestHeader(c), clientip.Resolve(c))

	currentHost := firstNonEmpty(req.Host, c.Get(fiber.HeaderXForwardedHost), c.Hostname())
	currentHost = referrers.HostFromReferrer(currentHost)

	refHost := referrers.HostFromReferrer(firstNonEmpty(req.Referrer, c.Get(fiber.HeaderReferer)))
	internal := h.InternalHosts.IsInternal(refHost, currentHost)

	source := referrers.SourceDirect
	if !internal {
		source = referrers.ClassifySource(refHost)
	}

	countedGlobal, err := h.Recorder.RecordEvent(ctx, counting.ScopeGlobal, visitorHash)
	if err != nil {
		h.Logger.Warn("Global visitor marker unavailable", slog.Any("error", err))
	}
	countedDaily, err := h.Recorder.RecordEvent(ctx, counting.DayScope(day), visitorHash)
	if err != nil {
		h.Logger.Warn("Daily visitor marker unavailable", slog.Any("error", err))
	}

	event := analytics.Event{
		Country:       country,
		Source:        source,
		Day:           day,
		CountedGlobal: countedGlobal,
		CountedDaily:  countedDaily,
	}
	if !internal {
		event.ReferrerHost = refHost
	}

	resp := TrackResponse{OK: true, Source: source, Country: country}

	totals, err := h.Stats.Record(ctx, event)
	if err != nil {
		h.Logger.Warn("Failed to record visit", slog.String("path", req.Path), slog.Any("error", err))
		h.Metrics.ObserveStorageError("track")
		resp.Degraded = true
	} else {
		resp.CountedVisit = true
	}
	resp.Totals = totals
	h.Metrics.ObserveEvent("visit", countedGlobal)

	return c.JSON(resp)
}

// requestHeader adapts c.Get to a plain header lookup.
func requestHeader(c *fiber.Ctx) func(string) string {
	return func(name string) string {
		return c.Get(name)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
