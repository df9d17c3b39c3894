package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gallerystats/internal/analytics"
	"gallerystats/internal/counting"
)

// Purger removes expired key-value rows.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// RetentionJob drops daily analytics buckets older than the retention window
// and purges expired rows from the SQL key-value store.
type RetentionJob struct {
	stats         *analytics.Store
	purger        Purger
	retentionDays int
	loc           *time.Location
	logger        *slog.Logger
	now           func() time.Time
}

// NewRetentionJob creates the job. purger may be nil when the key-value store
// expires keys by itself.
func NewRetentionJob(stats *analytics.Store, purger Purger, retentionDays int, loc *time.Location, logger *slog.Logger) *RetentionJob {
	return &RetentionJob{
		stats:         stats,
		purger:        purger,
		retentionDays: retentionDays,
		loc:           loc,
		logger:        logger,
		now:           time.Now,
	}
}

// SetClock overrides the time source.
func (j *RetentionJob) SetClock(now func() time.Time) {
	j.now = now
}

func (j *RetentionJob) Name() string { return "retention" }

// Run trims the aggregate and purges expired markers.
func (j *RetentionJob) Run(ctx context.Context) error {
	if j.retentionDays > 0 {
		cutoff := counting.DayKey(j.now().AddDate(0, 0, -j.retentionDays), j.loc)
		removed, err := j.stats.TrimDaily(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("trim daily buckets: %w", err)
		}
		if removed > 0 {
			j.logger.Info("Trimmed daily analytics buckets",
				slog.Int("removed", removed),
				slog.String("cutoff", cutoff))
		}
	}

	if j.purger == nil {
		return nil
	}
	purged, err := j.purger.PurgeExpired(ctx)
	if err != nil {
		return fmt.Errorf("purge expired entries: %w", err)
	}
	if purged > 0 {
		j.logger.Info("Purged expired key-value entries", slog.Int64("count", purged))
	}
	return nil
}
