//go:build integration

package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"gallerystats/internal/apperror"
	"gallerystats/internal/catalog"
	"gallerystats/internal/config"
	"gallerystats/internal/database"
	"gallerystats/internal/kvstore"
	"gallerystats/internal/testsupport"
)

// setupPostgres starts a disposable Postgres and returns a migrated manager.
func setupPostgres(t *testing.T) *database.DBManager {
	t.Helper()
	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("Docker not available, skipping integration tests")
	}
	provider.Close()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("gallerystats_test"),
		postgres.WithUsername("gallerystats"),
		postgres.WithPassword("gallerystats_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := testsupport.TestConfig()
	cfg.DatabaseURL = connStr
	cfg.KVDriver = config.KVDatabase

	dm := database.NewDBManager(cfg, testsupport.GetLogger())
	require.NoError(t, dm.Init())
	t.Cleanup(func() { dm.Close() })

	require.NoError(t, dm.MigrateDatabase())
	// migrations are idempotent
	require.NoError(t, dm.MigrateDatabase())
	require.NoError(t, dm.Ping(ctx))
	return dm
}

func TestPostgresCatalogAndStore(t *testing.T) {
	dm := setupPostgres(t)
	ctx := context.Background()
	db := dm.GetConnection()

	t.Run("catalog enforces unique ids and slugs", func(t *testing.T) {
		svc := catalog.NewService(db, 5*time.Second, time.Minute, testsupport.GetLogger())

		fox := catalog.Item{ID: 1, Title: "Fox", Theme: "animals", Gender: "any", Difficulty: "easy", Slug: "fox"}
		require.NoError(t, svc.Create(ctx, fox, []string{"orange"}))

		err := svc.Create(ctx, fox, nil)
		assert.Equal(t, apperror.Conflict, apperror.KindOf(err))

		owl := catalog.Item{ID: 2, Title: "Owl", Theme: "animals", Gender: "any", Difficulty: "hard", Slug: "fox"}
		err = svc.Create(ctx, owl, nil)
		assert.Equal(t, apperror.Conflict, apperror.KindOf(err))

		require.NoError(t, svc.Delete(ctx, 1))
		var tags int64
		require.NoError(t, db.Model(&catalog.ItemTag{}).Count(&tags).Error)
		assert.Zero(t, tags)
	})

	t.Run("database key-value store expires entries", func(t *testing.T) {
		store := kvstore.NewSQLStore(db, kvstore.Options{Prefix: "it", Timeout: 5 * time.Second})
		now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
		store.SetClock(func() time.Time { return now })

		require.NoError(t, store.Set(ctx, "seen:global:abc", "1", 0))
		require.NoError(t, store.Set(ctx, "seen:day:2025-07-01:abc", "1", time.Hour))
		require.NoError(t, store.Set(ctx, "seen:global:abc", "2", 0))

		v, err := store.Get(ctx, "seen:global:abc")
		require.NoError(t, err)
		assert.Equal(t, "2", v)

		now = now.Add(2 * time.Hour)
		_, err = store.Get(ctx, "seen:day:2025-07-01:abc")
		assert.ErrorIs(t, err, kvstore.ErrNotFound)

		purged, err := store.PurgeExpired(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, purged)
	})
}
