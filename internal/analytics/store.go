package analytics

import (
	"context"
	"errors"
	"fmt"

	"gallerystats/internal/kvstore"
)

// StatsKey is the key-value key holding the aggregate document.
const StatsKey = "stats:v1"

// Store loads and saves the aggregate document. Updates are
// read-modify-write without locking; concurrent events may overwrite each
// other.
type Store struct {
	kv kvstore.Store
}

// NewStore wraps a key-value store.
func NewStore(kv kvstore.Store) *Store {
	return &Store{kv: kv}
}

// Load returns the normalized aggregate, or an empty one if none is stored.
func (s *Store) Load(ctx context.Context) (*Aggregate, error) {
	raw, err := s.kv.Get(ctx, StatsKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return NewAggregate(), nil
	} else if err != nil {
		return nil, fmt.Errorf("analytics: load aggregate: %w", err)
	}
	return Decode([]byte(raw)), nil
}

// Save writes the aggregate document.
func (s *Store) Save(ctx context.Context, agg *Aggregate) error {
	if err := kvstore.SetJSON(ctx, s.kv, StatsKey, agg, 0); err != nil {
		return fmt.Errorf("analytics: save aggregate: %w", err)
	}
	return nil
}

// Record applies e and saves, returning the resulting totals. When the save
// fails the totals from before e are returned with the error.
func (s *Store) Record(ctx context.Context, e Event) (Totals, error) {
	agg, err := s.Load(ctx)
	if err != nil {
		return Totals{}, err
	}
	before := agg.Totals()

	agg.Apply(e)
	if err := s.Save(ctx, agg); err != nil {
		return before, err
	}
	return agg.Totals(), nil
}

// Report loads the aggregate and renders it.
func (s *Store) Report(ctx context.Context) (Report, error) {
	agg, err := s.Load(ctx)
	if err != nil {
		return EmptyReport(), err
	}
	return BuildReport(agg), nil
}

// TrimDaily drops day buckets older than cutoff (YYYY-MM-DD).
func (s *Store) TrimDaily(ctx context.Context, cutoff string) (int, error) {
	agg, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}
	removed := agg.TrimDaily(cutoff)
	if removed == 0 {
		return 0, nil
	}
	if err := s.Save(ctx, agg); err != nil {
		return 0, err
	}
	return removed, nil
}
