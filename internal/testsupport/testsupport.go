package testsupport

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gallerystats/internal"
	"gallerystats/internal/config"
	"gallerystats/internal/database"
	"gallerystats/internal/kvstore"
)

// testDBCache caches test databases by root test name so repeated calls
// within one test share a database.
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// SetupTestDB creates an in-memory SQLite database with all models migrated.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	rootName := t.Name()
	if idx := strings.Index(rootName, "/"); idx > 0 {
		rootName = rootName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	// cache=shared allows multiple connections to the same database
	sanitizedName := strings.ReplaceAll(rootName, "/", "_")
	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", sanitizedName, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")

	if err := db.AutoMigrate(database.Models()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// CleanAllTables removes all rows from every table.
func CleanAllTables(db *gorm.DB) {
	for _, table := range []string{"item_tags", "items", "media_config", "kv_entries"} {
		db.Exec("DELETE FROM " + table)
	}
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// TestConfig returns a validated configuration for the test environment.
func TestConfig() *config.Config {
	return &config.Config{
		AppName:                "gallerystats",
		AppPort:                "0",
		Environment:            config.Test,
		LogLevel:               config.LogLevelError,
		KVDriver:               config.KVMemory,
		KVKeyPrefix:            "test",
		StoreTimeoutMs:         2000,
		SessionSecret:          "test-session-secret-0123456789abcdef",
		SessionTTLSeconds:      8 * 60 * 60,
		AdminUsername:          "admin",
		AdminPassword:          "gallery-admin-pass",
		LoginWindowSeconds:     10 * 60,
		LoginMaxFailures:       5,
		LoginCooldownSeconds:   15 * 60,
		PublicSiteHosts:        "mygallery.art",
		InternalHostSuffixes:   ".netlify.app",
		AnalyticsTimezone:      "UTC",
		DailyMarkerTTLSeconds:  48 * 60 * 60,
		DailyRetentionDays:     400,
		CatalogCacheTTLSeconds: 60,
		JobIntervalSeconds:     3600,
	}
}

// TestApp bundles an application with the stores behind it.
type TestApp struct {
	*internal.Application
	DB *gorm.DB
	KV *kvstore.MemoryStore
}

// CreateTestApp builds the full application on a migrated SQLite database
// and an in-memory key-value store. mutate, when given, adjusts the config
// before wiring.
func CreateTestApp(t *testing.T, mutate ...func(*config.Config)) *TestApp {
	t.Helper()

	cfg := TestConfig()
	for _, fn := range mutate {
		fn(cfg)
	}

	db := SetupTestDB(t)
	CleanAllTables(db)
	kv := kvstore.NewMemoryStore(kvstore.Options{Prefix: cfg.KVKeyPrefix})
	logger := GetLogger()

	app := internal.NewAppWithDeps(cfg, logger, database.NewDBManagerWithConnection(db, logger), kv)
	return &TestApp{Application: app, DB: db, KV: kv}
}
