// Package counting records "visitor counted for scope" markers.
//
// The check-then-set protocol is not atomic: two concurrent first requests
// for the same visitor and scope may both report counted=true. Counts are
// approximate by contract.
package counting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gallerystats/internal/kvstore"
)

// ScopeGlobal is the all-time scope.
const ScopeGlobal = "global"

const (
	dayScopePrefix  = "day:"
	itemScopePrefix = "item:"
	markerPrefix    = "seen:"
	markerValue     = "1"
)

// DayScope returns the scope for a YYYY-MM-DD day.
func DayScope(day string) string {
	return dayScopePrefix + day
}

// ItemScope returns the scope for a catalog item.
func ItemScope(id string) string {
	return itemScopePrefix + id
}

// DayKey formats t as YYYY-MM-DD in loc.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(time.DateOnly)
}

// MarkerKey is the store key for a scope and visitor hash.
func MarkerKey(scope, visitorHash string) string {
	return markerPrefix + scope + ":" + visitorHash
}

// Recorder checks and sets dedup markers.
type Recorder struct {
	store    kvstore.Store
	dailyTTL time.Duration
}

// NewRecorder creates a recorder. Day-scoped markers expire after dailyTTL;
// all other markers never expire.
func NewRecorder(store kvstore.Store, dailyTTL time.Duration) *Recorder {
	return &Recorder{store: store, dailyTTL: dailyTTL}
}

// RecordEvent reports whether this is the first event for visitorHash in
// scope, setting the marker if so. Store failures fail closed: counted is
// false and the error is returned for logging.
func (r *Recorder) RecordEvent(ctx context.Context, scope, visitorHash string) (bool, error) {
	if scope == "" || visitorHash == "" {
		return false, fmt.Errorf("counting: scope and visitor hash are required")
	}

	key := MarkerKey(scope, visitorHash)

	_, err := r.store.Get(ctx, key)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, kvstore.ErrNotFound) {
		return false, fmt.Errorf("counting: check marker: %w", err)
	}

	if err := r.store.Set(ctx, key, markerValue, r.ttlFor(scope)); err != nil {
		return false, fmt.Errorf("counting: set marker: %w", err)
	}
	return true, nil
}

func (r *Recorder) ttlFor(scope string) time.Duration {
	if strings.HasPrefix(scope, dayScopePrefix) {
		return r.dailyTTL
	}
	return 0
}
