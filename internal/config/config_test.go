package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"GALLERYSTATS_ENV", "GALLERYSTATS_DATABASE_URL", "DATABASE_URL",
		"GALLERYSTATS_KV_DRIVER", "GALLERYSTATS_SESSION_SECRET", "ADMIN_SESSION_SECRET",
		"GALLERYSTATS_ADMIN_PASSWORD", "ADMIN_DASH_PASSWORD", "GALLERYSTATS_PUBLIC_SITE_HOSTS",
		"PUBLIC_SITE_HOSTS", "GALLERYSTATS_ANALYTICS_TIMEZONE", "GALLERYSTATS_TRUST_PROXY_HEADERS",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, Development, cfg.Environment)
	assert.Equal(t, KVMemory, cfg.KVDriver)
	assert.False(t, cfg.HasDatabase())
	assert.Equal(t, 3*time.Second, cfg.StoreTimeout())
	assert.Equal(t, 8*time.Hour, cfg.SessionTTL())
	assert.Equal(t, 48*time.Hour, cfg.DailyMarkerTTL())
	assert.Equal(t, "gallerystats_session", cfg.SessionCookieName())
	assert.Equal(t, []string{".netlify.app"}, cfg.InternalSuffixes())
	assert.Equal(t, time.UTC, cfg.Location())
	assert.False(t, cfg.TrustProxyHeaders)
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("GALLERYSTATS_ENV", Test)
	t.Setenv("DATABASE_URL", "postgres://gallery@localhost/gallery")
	t.Setenv("GALLERYSTATS_KV_DRIVER", KVDatabase)
	t.Setenv("ADMIN_DASH_PASSWORD", "legacy-name")
	t.Setenv("PUBLIC_SITE_HOSTS", " MyGallery.art , www.mygallery.art ,")
	t.Setenv("GALLERYSTATS_ANALYTICS_TIMEZONE", "Europe/Madrid")
	t.Setenv("GALLERYSTATS_TRUST_PROXY_HEADERS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsTest())
	assert.True(t, cfg.HasDatabase())
	assert.Equal(t, "legacy-name", cfg.AdminPassword)
	assert.Equal(t, []string{"mygallery.art", "www.mygallery.art"}, cfg.SiteHosts())
	assert.Equal(t, "Europe/Madrid", cfg.Location().String())
	assert.Equal(t, 1, cfg.GetMaxOpenConns())
	assert.True(t, cfg.TrustProxyHeaders)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown environment", map[string]string{"GALLERYSTATS_ENV": "staging"}},
		{"unknown kv driver", map[string]string{"GALLERYSTATS_KV_DRIVER": "etcd"}},
		{"database kv without url", map[string]string{"GALLERYSTATS_KV_DRIVER": KVDatabase}},
		{"bad timezone", map[string]string{"GALLERYSTATS_ANALYTICS_TIMEZONE": "Mars/Olympus"}},
		{"production with default secret", map[string]string{"GALLERYSTATS_ENV": Production}},
		{"production with short secret", map[string]string{
			"GALLERYSTATS_ENV":            Production,
			"GALLERYSTATS_SESSION_SECRET": "too-short",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
