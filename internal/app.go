// Package internal contains core application functionality
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	v1 "gallerystats/api/v1"
	"gallerystats/internal/analytics"
	"gallerystats/internal/apperror"
	"gallerystats/internal/auth"
	"gallerystats/internal/catalog"
	"gallerystats/internal/config"
	"gallerystats/internal/counting"
	"gallerystats/internal/database"
	"gallerystats/internal/http"
	"gallerystats/internal/jobs"
	"gallerystats/internal/kvstore"
	"gallerystats/internal/logging"
	"gallerystats/internal/metrics"
	"gallerystats/internal/pkg/geoip"
	"gallerystats/internal/pkg/referrers"
	"gallerystats/internal/views"
	"gallerystats/internal/visitors"
)

// Application wires configuration, stores, handlers and background jobs.
type Application struct {
	Config    *config.Config
	Logger    *slog.Logger
	Server    *fiber.App
	DBManager *database.DBManager // nil when no database is configured
	KV        kvstore.Store
	Metrics   *metrics.Metrics
	Geo       *geoip.Resolver
	Scheduler *jobs.Scheduler

	Stats   *analytics.Store
	Catalog *catalog.Service
	Gate    *auth.Gate

	API   *v1.Handler
	Admin *http.Handlers
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	return NewAppWithConfig(config.GetConfig())
}

// NewAppWithConfig connects to the configured database and key-value store
// and builds the application.
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	logger := logging.New(cfg)

	var dbManager *database.DBManager
	if cfg.HasDatabase() {
		dbManager = database.NewDBManager(cfg, logger)
		if err := dbManager.Init(); err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := dbManager.MigrateDatabase(); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	} else {
		logger.Warn("No database configured; catalog endpoints will report storage unavailable")
	}

	var db *gorm.DB
	if dbManager != nil {
		db = dbManager.GetConnection()
	}

	kv, err := kvstore.New(cfg, db, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize key-value store: %w", err)
	}

	return NewAppWithDeps(cfg, logger, dbManager, kv), nil
}

// NewAppWithDeps builds the application on already opened stores.
// dbManager may be nil.
func NewAppWithDeps(cfg *config.Config, logger *slog.Logger, dbManager *database.DBManager, kv kvstore.Store) *Application {
	m := metrics.New()
	geo := geoip.NewResolver(cfg.GeoDBPath, logger)

	var (
		db         *gorm.DB
		catalogSvc *catalog.Service
	)
	if dbManager != nil {
		db = dbManager.GetConnection()
		catalogSvc = catalog.NewService(db, cfg.StoreTimeout(), cfg.CatalogCacheTTL(), logger)
	}

	stats := analytics.NewStore(kv)
	recorder := counting.NewRecorder(kv, cfg.DailyMarkerTTL())

	gate := auth.NewGate(
		auth.Credentials{
			Username:     cfg.AdminUsername,
			Password:     cfg.AdminPassword,
			PasswordHash: cfg.AdminPasswordHash,
		},
		auth.NewSigner(cfg.SessionSecret),
		auth.NewLimiter(kv, auth.LimiterConfig{
			Window:      cfg.LoginWindow(),
			MaxFailures: cfg.LoginMaxFailures,
			Cooldown:    cfg.LoginCooldown(),
		}, logger),
		cfg.SessionTTL(),
		logger,
	)

	backgroundJobs := []jobs.Job{retentionJob(cfg, stats, kv, logger)}
	if cfg.GeoDBPath != "" {
		backgroundJobs = append(backgroundJobs, jobs.NewGeoReloadJob(geo, cfg.GeoDBPath, logger))
	}
	scheduler := jobs.NewScheduler(
		time.Duration(cfg.JobIntervalSeconds)*time.Second,
		logger,
		m,
		backgroundJobs...,
	)

	a := &Application{
		Config:    cfg,
		Logger:    logger,
		DBManager: dbManager,
		KV:        kv,
		Metrics:   m,
		Geo:       geo,
		Scheduler: scheduler,
		Stats:     stats,
		Catalog:   catalogSvc,
		Gate:      gate,
	}

	a.API = v1.NewHandler(v1.Deps{
		Config:        cfg,
		Logger:        logger,
		Recorder:      recorder,
		Stats:         stats,
		Views:         views.NewCounter(kv, recorder),
		Catalog:       catalogSvc,
		Geo:           geo,
		InternalHosts: referrers.NewInternalHosts(cfg.SiteHosts(), cfg.InternalSuffixes()),
		Viewers:       visitors.NewCookieSigner(cfg.SessionSecret),
		Metrics:       m,
	})
	a.Admin = http.NewHandlers(http.Deps{
		Config:  cfg,
		Logger:  logger,
		Stats:   stats,
		Gate:    gate,
		Catalog: catalogSvc,
		DB:      db,
		KV:      kv,
		Metrics: m,
	})

	a.Server = fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		ErrorHandler:          apperror.Handler(logger),
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		BodyLimit:             64 * 1024,
	})
	MountAppRoutes(a)

	return a
}

func retentionJob(cfg *config.Config, stats *analytics.Store, kv kvstore.Store, logger *slog.Logger) jobs.Job {
	var purger jobs.Purger
	if p, ok := kv.(jobs.Purger); ok {
		purger = p
	}
	return jobs.NewRetentionJob(stats, purger, cfg.DailyRetentionDays, cfg.Location(), logger)
}

// Start runs background jobs and serves HTTP until the server is shut down.
func (a *Application) Start() error {
	a.Scheduler.Start()

	addr := ":" + a.Config.AppPort
	a.Logger.Info("Starting server", slog.String("addr", addr), slog.String("environment", a.Config.Environment))
	return a.Server.Listen(addr)
}

// Shutdown stops the server, then jobs, then closes the stores.
func (a *Application) Shutdown(ctx context.Context) error {
	var errs []error

	if err := a.Server.ShutdownWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	a.Scheduler.Stop()

	if err := a.KV.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close key-value store: %w", err))
	}
	if err := a.Geo.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close geoip database: %w", err))
	}
	if a.DBManager != nil {
		if err := a.DBManager.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	a.Logger.Info("Shutdown complete")
	return errors.Join(errs...)
}
