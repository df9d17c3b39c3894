// Package views keeps per-item view counts, deduplicated per visitor.
package views

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gallerystats/internal/counting"
	"gallerystats/internal/kvstore"
)

// MaxIDLength bounds item ids accepted from clients.
const MaxIDLength = 128

const countPrefix = "views:count:"

// ErrInvalidID is returned for empty or oversized item ids.
var ErrInvalidID = errors.New("views: invalid item id")

// NormalizeID trims id and checks its length.
func NormalizeID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > MaxIDLength {
		return "", ErrInvalidID
	}
	return id, nil
}

// CountKey is the store key holding the view count of an item.
func CountKey(id string) string {
	return countPrefix + id
}

// Counter reads and increments view counts.
type Counter struct {
	store    kvstore.Store
	recorder *counting.Recorder
}

// NewCounter creates a counter over store, using recorder for per-item dedup.
func NewCounter(store kvstore.Store, recorder *counting.Recorder) *Counter {
	return &Counter{store: store, recorder: recorder}
}

// Get returns the current view count of an item. A missing count is zero.
func (c *Counter) Get(ctx context.Context, id string) (int64, error) {
	raw, err := c.store.Get(ctx, CountKey(id))
	if errors.Is(err, kvstore.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("views: read count: %w", err)
	}
	return parseCount(raw), nil
}

// Record counts a view of id by visitorHash. The count is only incremented the
// first time a visitor is seen for the item. On a store failure the error is
// returned together with the best-effort current count. The
// read-increment-write is not atomic; concurrent first views may lose an
// increment.
func (c *Counter) Record(ctx context.Context, id, visitorHash string) (int64, bool, error) {
	counted, err := c.recorder.RecordEvent(ctx, counting.ItemScope(id), visitorHash)
	if err != nil {
		// the marker could not be checked or written; report the stored count
		count, getErr := c.Get(ctx, id)
		if getErr != nil {
			return 0, false, err
		}
		return count, false, err
	}

	count, err := c.Get(ctx, id)
	if err != nil {
		return 0, false, err
	}
	if !counted {
		return count, false, nil
	}

	if err := c.store.Set(ctx, CountKey(id), strconv.FormatInt(count+1, 10), 0); err != nil {
		return count, false, fmt.Errorf("views: write count: %w", err)
	}
	return count + 1, true, nil
}

func parseCount(raw string) int64 {
	n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || n < 0 || n != n {
		return 0
	}
	if n > 1<<62 {
		return 1 << 62
	}
	return int64(n)
}
