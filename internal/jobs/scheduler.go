package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"gallerystats/internal/metrics"
)

// Job is a unit of background work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler is responsible for running background jobs
type Scheduler struct {
	jobs     []Job
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool

	// Mutex to prevent concurrent job executions
	processingMutex sync.Mutex
	isProcessing    bool

	ticker *time.Ticker
}

// NewScheduler creates a scheduler that runs jobs every interval.
func NewScheduler(interval time.Duration, logger *slog.Logger, m *metrics.Metrics, jobs ...Job) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		jobs:     jobs,
		interval: interval,
		logger:   logger,
		metrics:  m,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// executeJobSafely runs a job only if no other job is currently executing
func (s *Scheduler) executeJobSafely(job Job) {
	s.processingMutex.Lock()
	if s.isProcessing {
		s.logger.Debug("Skipping job execution - previous job still running", slog.String("job", job.Name()))
		s.processingMutex.Unlock()
		return
	}
	s.isProcessing = true
	s.processingMutex.Unlock()

	var err error
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", job.Name()),
				slog.Any("panic", r))
		}

		s.processingMutex.Lock()
		s.isProcessing = false
		s.processingMutex.Unlock()
	}()

	err = job.Run(s.ctx)
	s.metrics.ObserveJob(job.Name(), err)
	if err != nil {
		s.logger.Error("Error executing job", slog.String("job", job.Name()), slog.Any("error", err))
	}
}

// RunAll runs every job once, in order.
func (s *Scheduler) RunAll() {
	for _, job := range s.jobs {
		if s.ctx.Err() != nil {
			return
		}
		s.executeJobSafely(job)
	}
}

// Start begins all background jobs
func (s *Scheduler) Start() {
	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return
	}
	if len(s.jobs) == 0 {
		s.logger.Info("No background jobs configured.")
		return
	}

	s.isRunning = true
	s.ticker = time.NewTicker(s.interval)
	s.logger.Info("Starting background jobs", slog.Duration("interval", s.interval), slog.Int("jobs", len(s.jobs)))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.RunAll()
		for {
			select {
			case <-s.ticker.C:
				s.RunAll()
			case <-s.ctx.Done():
				s.logger.Info("Background jobs stopped")
				return
			}
		}
	}()
}

// Stop halts all background jobs and waits for the running one to finish.
func (s *Scheduler) Stop() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	s.cancel()
	s.wg.Wait()
	s.isRunning = false
}

// IsRunning returns whether jobs are currently running
func (s *Scheduler) IsRunning() bool {
	return s.isRunning
}
