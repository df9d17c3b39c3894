package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gallerystats/internal/analytics"
	"gallerystats/internal/kvstore"
	"gallerystats/internal/logging"
)

type countingJob struct {
	runs  atomic.Int32
	err   error
	panic bool
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.panic {
		panic("boom")
	}
	return j.err
}

type fakePurger struct {
	purged int64
	err    error
	calls  int
}

func (p *fakePurger) PurgeExpired(ctx context.Context) (int64, error) {
	p.calls++
	return p.purged, p.err
}

type fakeReloader struct{ reloads int }

func (r *fakeReloader) Reload() { r.reloads++ }

func TestSchedulerRunsJobsAndRecoversPanics(t *testing.T) {
	failing := &countingJob{err: errors.New("nope")}
	panicking := &countingJob{panic: true}
	ok := &countingJob{}

	s := NewScheduler(time.Hour, logging.Discard(), nil, failing, panicking, ok)
	s.RunAll()

	assert.Equal(t, int32(1), failing.runs.Load())
	assert.Equal(t, int32(1), panicking.runs.Load())
	assert.Equal(t, int32(1), ok.runs.Load())
}

func TestSchedulerStartStop(t *testing.T) {
	job := &countingJob{}
	s := NewScheduler(time.Hour, logging.Discard(), nil, job)

	s.Start()
	assert.True(t, s.IsRunning())
	assert.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())
}

func TestRetentionJob(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore(kvstore.Options{})
	stats := analytics.NewStore(kv)

	agg := analytics.NewAggregate()
	agg.Daily["2025-01-01"] = analytics.DayStats{Visits: 1}
	agg.Daily["2025-06-01"] = analytics.DayStats{Visits: 2}
	agg.Daily["2025-06-30"] = analytics.DayStats{Visits: 3}
	require.NoError(t, stats.Save(ctx, agg))

	purger := &fakePurger{purged: 4}
	job := NewRetentionJob(stats, purger, 30, time.UTC, logging.Discard())
	job.SetClock(func() time.Time { return time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC) })

	require.NoError(t, job.Run(ctx))
	assert.Equal(t, 1, purger.calls)

	loaded, err := stats.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded.Daily, 2)
	assert.NotContains(t, loaded.Daily, "2025-01-01")

	purger.err = errors.New("db down")
	assert.Error(t, job.Run(ctx))
}

func TestRetentionJobWithoutPurger(t *testing.T) {
	kv := kvstore.NewMemoryStore(kvstore.Options{})
	job := NewRetentionJob(analytics.NewStore(kv), nil, 400, time.UTC, logging.Discard())
	assert.NoError(t, job.Run(context.Background()))
}

func TestGeoReloadJob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "GeoLite2-City.mmdb")
	reloader := &fakeReloader{}

	job := NewGeoReloadJob(reloader, path, logging.Discard())
	require.NoError(t, job.Run(context.Background()))
	assert.Zero(t, reloader.reloads)

	require.NoError(t, os.WriteFile(path, []byte("db"), 0o644))
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, reloader.reloads)

	// unchanged file is not reloaded again
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, reloader.reloads)

	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 2, reloader.reloads)
}
