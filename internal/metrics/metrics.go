// Package metrics exposes Prometheus counters for requests, counting events,
// logins and storage failures.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Counting events by kind (visit, view) and whether they were first-seen
	EventsTotal *prometheus.CounterVec

	LoginAttemptsTotal *prometheus.CounterVec
	StorageErrorsTotal *prometheus.CounterVec

	JobRunsTotal *prometheus.CounterVec
}

// New creates a registry with process/Go collectors and registers all metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewMetrics(registry)
}

// NewMetrics creates and registers all metrics on registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gallerystats_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gallerystats_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gallerystats_events_total",
				Help: "Total number of counting events",
			},
			[]string{"kind", "counted"},
		),
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gallerystats_login_attempts_total",
				Help: "Total number of admin login attempts",
			},
			[]string{"result"},
		),
		StorageErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gallerystats_storage_errors_total",
				Help: "Total number of storage errors",
			},
			[]string{"operation"},
		),
		JobRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gallerystats_job_runs_total",
				Help: "Total number of background job runs",
			},
			[]string{"job", "status"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.EventsTotal,
		m.LoginAttemptsTotal,
		m.StorageErrorsTotal,
		m.JobRunsTotal,
	)

	return m
}

// Registry returns the registry metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveEvent counts a visit or view event.
func (m *Metrics) ObserveEvent(kind string, counted bool) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(kind, strconv.FormatBool(counted)).Inc()
}

// ObserveLogin counts a login attempt by result (ok, invalid, limited, error).
func (m *Metrics) ObserveLogin(result string) {
	if m == nil {
		return
	}
	m.LoginAttemptsTotal.WithLabelValues(result).Inc()
}

// ObserveStorageError counts a failed storage operation.
func (m *Metrics) ObserveStorageError(operation string) {
	if m == nil {
		return
	}
	m.StorageErrorsTotal.WithLabelValues(operation).Inc()
}

// ObserveJob counts a background job run.
func (m *Metrics) ObserveJob(job string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.JobRunsTotal.WithLabelValues(job, status).Inc()
}

// Middleware records request count and latency per matched route.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}

		path := c.Route().Path
		m.HTTPRequestsTotal.WithLabelValues(c.Method(), path, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Method(), path).Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
