package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gallerystats/internal/catalog"
	"gallerystats/internal/config"
	"gallerystats/internal/kvstore"
)

// DBManager owns the Postgres connection pool and schema migrations.
type DBManager struct {
	cfg    *config.Config
	db     *gorm.DB
	logger *slog.Logger
}

// NewDBManager creates a manager; call Init to connect.
func NewDBManager(cfg *config.Config, logger *slog.Logger) *DBManager {
	return &DBManager{cfg: cfg, logger: logger}
}

// NewDBManagerWithConnection wraps an existing connection.
func NewDBManagerWithConnection(db *gorm.DB, logger *slog.Logger) *DBManager {
	return &DBManager{db: db, logger: logger}
}

// Init opens the connection pool.
func (dm *DBManager) Init() error {
	if dm.db != nil {
		return nil
	}
	if !dm.cfg.HasDatabase() {
		return fmt.Errorf("database url is not configured")
	}

	logLevel := logger.Silent
	if dm.cfg.IsDevelopment() {
		logLevel = logger.Warn
	}

	db, err := gorm.Open(postgres.Open(dm.cfg.DatabaseURL), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(dm.cfg.GetMaxOpenConns())
	sqlDB.SetMaxIdleConns(dm.cfg.GetMaxIdleConns())
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	dm.db = db
	dm.logger.Info("Database connection established",
		slog.Int("max_open_conns", dm.cfg.GetMaxOpenConns()))
	return nil
}

// GetConnection returns the connection, or nil before Init.
func (dm *DBManager) GetConnection() *gorm.DB {
	return dm.db
}

// Ping checks the connection within ctx.
func (dm *DBManager) Ping(ctx context.Context) error {
	if dm.db == nil {
		return gorm.ErrInvalidDB
	}
	sqlDB, err := dm.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Models returns every model managed by migrations.
func Models() []any {
	models := []any{&kvstore.Entry{}}
	return append(models, catalog.Models()...)
}

// MigrateDatabase creates or updates all tables.
func (dm *DBManager) MigrateDatabase() error {
	db := dm.GetConnection()
	if db == nil {
		return gorm.ErrInvalidDB
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.AutoMigrate(Models()...)
	})
	if err != nil {
		dm.logger.Error("Failed to auto-migrate database", slog.Any("error", err))
		return err
	}

	dm.logger.Info("Database migration completed successfully")
	return nil
}

// Close releases the pool.
func (dm *DBManager) Close() error {
	if dm.db == nil {
		return nil
	}
	sqlDB, err := dm.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
