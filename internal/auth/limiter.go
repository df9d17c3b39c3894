package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gallerystats/internal/kvstore"
)

// LimiterConfig sets the login throttling policy.
type LimiterConfig struct {
	Window      time.Duration
	MaxFailures int
	Cooldown    time.Duration
}

// attemptRecord is the stored state for one identity.
type attemptRecord struct {
	FailureCount int   `json:"failureCount"`
	WindowStart  int64 `json:"windowStart"`
	BlockedUntil int64 `json:"blockedUntil"`
}

// Limiter throttles failed logins per identity hash. Every store failure
// fails open: the attempt is allowed and the error is logged.
type Limiter struct {
	store  kvstore.Store
	cfg    LimiterConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewLimiter creates a limiter over store.
func NewLimiter(store kvstore.Store, cfg LimiterConfig, logger *slog.Logger) *Limiter {
	return &Limiter{store: store, cfg: cfg, logger: logger, now: time.Now}
}

// SetClock replaces the limiter's time source.
func (l *Limiter) SetClock(now func() time.Time) {
	l.now = now
}

func limiterKey(identity string) string {
	return "login:" + identity
}

// Blocked reports whether identity is currently blocked and for how long.
func (l *Limiter) Blocked(ctx context.Context, identity string) (time.Duration, bool) {
	rec, ok := l.load(ctx, identity)
	if !ok {
		return 0, false
	}

	now := l.now().UnixMilli()
	if rec.BlockedUntil > now {
		return time.Duration(rec.BlockedUntil-now) * time.Millisecond, true
	}
	return 0, false
}

// RecordFailure counts a failed attempt and blocks identity once the
// window's failure budget is spent.
func (l *Limiter) RecordFailure(ctx context.Context, identity string) {
	rec, ok := l.load(ctx, identity)
	if !ok {
		rec = attemptRecord{}
	}

	now := l.now()
	nowMs := now.UnixMilli()
	if rec.WindowStart == 0 || nowMs-rec.WindowStart > l.cfg.Window.Milliseconds() {
		rec = attemptRecord{WindowStart: nowMs}
	}

	rec.FailureCount++
	if rec.FailureCount >= l.cfg.MaxFailures {
		rec.BlockedUntil = now.Add(l.cfg.Cooldown).UnixMilli()
	}

	if err := kvstore.SetJSON(ctx, l.store, limiterKey(identity), rec, l.cfg.Window+l.cfg.Cooldown); err != nil {
		l.logger.Warn("Failed to record login failure", slog.Any("error", err))
	}
}

// Reset clears identity's record after a successful login.
func (l *Limiter) Reset(ctx context.Context, identity string) {
	if err := l.store.Delete(ctx, limiterKey(identity)); err != nil {
		l.logger.Warn("Failed to reset login limiter", slog.Any("error", err))
	}
}

func (l *Limiter) load(ctx context.Context, identity string) (attemptRecord, bool) {
	var rec attemptRecord
	err := kvstore.GetJSON(ctx, l.store, limiterKey(identity), &rec)
	if errors.Is(err, kvstore.ErrNotFound) {
		return rec, false
	} else if err != nil {
		l.logger.Warn("Login limiter unavailable, allowing attempt", slog.Any("error", err))
		return rec, false
	}
	return rec, true
}
