// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Key-value store drivers
const (
	KVRedis    = "redis"
	KVDatabase = "database"
	KVMemory   = "memory"
)

const defaultSessionSecret = "88888888888888888888888888888888"

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseURL          string `mapstructure:"databaseurl"`
	DatabaseMaxOpenConns int    `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int    `mapstructure:"dbmaxidleconns"`

	// Key-value store settings
	KVDriver       string `mapstructure:"kvdriver"`
	RedisURL       string `mapstructure:"redisurl"`
	RedisPassword  string `mapstructure:"redispassword"`
	RedisDB        int    `mapstructure:"redisdb"`
	KVKeyPrefix    string `mapstructure:"kvkeyprefix"`
	StoreTimeoutMs int    `mapstructure:"storetimeoutms"`

	// Admin session and login settings
	SessionSecret        string `mapstructure:"sessionsecret"`
	SessionTTLSeconds    int    `mapstructure:"sessionttlseconds"`
	AdminUsername        string `mapstructure:"adminusername"`
	AdminPassword        string `mapstructure:"adminpassword"`
	AdminPasswordHash    string `mapstructure:"adminpasswordhash"`
	LoginWindowSeconds   int    `mapstructure:"loginwindowseconds"`
	LoginMaxFailures     int    `mapstructure:"loginmaxfailures"`
	LoginCooldownSeconds int    `mapstructure:"logincooldownseconds"`
	TrustProxyHeaders    bool   `mapstructure:"trustproxyheaders"`

	// Analytics settings
	PublicSiteHosts        string `mapstructure:"publicsitehosts"`
	InternalHostSuffixes   string `mapstructure:"internalhostsuffixes"`
	AnalyticsTimezone      string `mapstructure:"analyticstimezone"`
	DailyMarkerTTLSeconds  int    `mapstructure:"dailymarkerttlseconds"`
	DailyRetentionDays     int    `mapstructure:"dailyretentiondays"`
	GeoDBPath              string `mapstructure:"geodbpath"`
	CatalogCacheTTLSeconds int    `mapstructure:"catalogcachettlseconds"`

	// Job scheduling settings
	JobIntervalSeconds int `mapstructure:"jobintervalseconds"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		loaded, err := Load()
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		cfg = loaded
	})
	return cfg
}

// Load reads the configuration from defaults and environment variables without caching it.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("appname", "gallerystats")
	v.SetDefault("appport", "3000")
	v.SetDefault("environment", Development)
	v.SetDefault("loglevel", string(LogLevelDebug))
	v.SetDefault("logsdir", "logs")
	v.SetDefault("logsmaxsizeinmb", 20)
	v.SetDefault("logsmaxbackups", 10)
	v.SetDefault("logsmaxageindays", 30)
	v.SetDefault("databaseurl", "")
	v.SetDefault("dbmaxopenconns", 0)
	v.SetDefault("dbmaxidleconns", 0)
	v.SetDefault("kvdriver", KVMemory)
	v.SetDefault("redisurl", "redis://localhost:6379/0")
	v.SetDefault("redispassword", "")
	v.SetDefault("redisdb", -1)
	v.SetDefault("kvkeyprefix", "gallerystats")
	v.SetDefault("storetimeoutms", 3000)
	v.SetDefault("sessionsecret", defaultSessionSecret)
	v.SetDefault("sessionttlseconds", 8*60*60)
	v.SetDefault("adminusername", "admin")
	v.SetDefault("adminpassword", "")
	v.SetDefault("adminpasswordhash", "")
	v.SetDefault("loginwindowseconds", 10*60)
	v.SetDefault("loginmaxfailures", 5)
	v.SetDefault("logincooldownseconds", 15*60)
	v.SetDefault("trustproxyheaders", false)
	v.SetDefault("publicsitehosts", "")
	v.SetDefault("internalhostsuffixes", ".netlify.app")
	v.SetDefault("analyticstimezone", "UTC")
	v.SetDefault("dailymarkerttlseconds", 48*60*60)
	v.SetDefault("dailyretentiondays", 400)
	v.SetDefault("geodbpath", "")
	v.SetDefault("catalogcachettlseconds", 60)
	v.SetDefault("jobintervalseconds", 3600)

	v.BindEnv("appname", "GALLERYSTATS_APP_NAME")
	v.BindEnv("appport", "GALLERYSTATS_APP_PORT")
	v.BindEnv("environment", "GALLERYSTATS_ENV")
	v.BindEnv("loglevel", "GALLERYSTATS_LOG_LEVEL")
	v.BindEnv("logsdir", "GALLERYSTATS_LOGS_DIR")
	v.BindEnv("logsmaxsizeinmb", "GALLERYSTATS_LOGS_MAX_SIZE_IN_MB")
	v.BindEnv("logsmaxbackups", "GALLERYSTATS_LOGS_MAX_BACKUPS")
	v.BindEnv("logsmaxageindays", "GALLERYSTATS_LOGS_MAX_AGE_IN_DAYS")
	v.BindEnv("databaseurl", "GALLERYSTATS_DATABASE_URL", "DATABASE_URL")
	v.BindEnv("dbmaxopenconns", "GALLERYSTATS_DB_MAX_OPEN_CONNS")
	v.BindEnv("dbmaxidleconns", "GALLERYSTATS_DB_MAX_IDLE_CONNS")
	v.BindEnv("kvdriver", "GALLERYSTATS_KV_DRIVER")
	v.BindEnv("redisurl", "GALLERYSTATS_REDIS_URL", "REDIS_URL")
	v.BindEnv("redispassword", "GALLERYSTATS_REDIS_PASSWORD")
	v.BindEnv("redisdb", "GALLERYSTATS_REDIS_DB")
	v.BindEnv("kvkeyprefix", "GALLERYSTATS_KV_KEY_PREFIX")
	v.BindEnv("storetimeoutms", "GALLERYSTATS_STORE_TIMEOUT_MS")
	v.BindEnv("sessionsecret", "GALLERYSTATS_SESSION_SECRET", "ADMIN_SESSION_SECRET")
	v.BindEnv("sessionttlseconds", "GALLERYSTATS_SESSION_TTL_SECONDS")
	v.BindEnv("adminusername", "GALLERYSTATS_ADMIN_USERNAME")
	v.BindEnv("adminpassword", "GALLERYSTATS_ADMIN_PASSWORD", "ADMIN_DASH_PASSWORD")
	v.BindEnv("adminpasswordhash", "GALLERYSTATS_ADMIN_PASSWORD_HASH")
	v.BindEnv("loginwindowseconds", "GALLERYSTATS_LOGIN_WINDOW_SECONDS")
	v.BindEnv("loginmaxfailures", "GALLERYSTATS_LOGIN_MAX_FAILURES")
	v.BindEnv("logincooldownseconds", "GALLERYSTATS_LOGIN_COOLDOWN_SECONDS")
	v.BindEnv("trustproxyheaders", "GALLERYSTATS_TRUST_PROXY_HEADERS")
	v.BindEnv("publicsitehosts", "GALLERYSTATS_PUBLIC_SITE_HOSTS", "PUBLIC_SITE_HOSTS")
	v.BindEnv("internalhostsuffixes", "GALLERYSTATS_INTERNAL_HOST_SUFFIXES")
	v.BindEnv("analyticstimezone", "GALLERYSTATS_ANALYTICS_TIMEZONE")
	v.BindEnv("dailymarkerttlseconds", "GALLERYSTATS_DAILY_MARKER_TTL_SECONDS")
	v.BindEnv("dailyretentiondays", "GALLERYSTATS_DAILY_RETENTION_DAYS")
	v.BindEnv("geodbpath", "GALLERYSTATS_GEO_DB_PATH")
	v.BindEnv("catalogcachettlseconds", "GALLERYSTATS_CATALOG_CACHE_TTL_SECONDS")
	v.BindEnv("jobintervalseconds", "GALLERYSTATS_JOB_INTERVAL_SECONDS")

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return c, nil
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	validKVDrivers := map[string]bool{
		KVRedis:    true,
		KVDatabase: true,
		KVMemory:   true,
	}
	if !validKVDrivers[c.KVDriver] {
		return fmt.Errorf("invalid kv driver: %s", c.KVDriver)
	}

	if c.KVDriver == KVDatabase && c.DatabaseURL == "" {
		return fmt.Errorf("kv driver %q requires a database url", KVDatabase)
	}

	if _, err := time.LoadLocation(c.AnalyticsTimezone); err != nil {
		return fmt.Errorf("invalid analytics timezone %q: %w", c.AnalyticsTimezone, err)
	}

	if c.SessionSecret == "" {
		return fmt.Errorf("session secret is required")
	}
	if c.IsProduction() && (c.SessionSecret == defaultSessionSecret || len(c.SessionSecret) < 32) {
		return fmt.Errorf("production requires a unique session secret of at least 32 characters")
	}

	if c.LoginMaxFailures <= 0 || c.LoginWindowSeconds <= 0 || c.LoginCooldownSeconds <= 0 {
		return fmt.Errorf("login limiter settings must be positive")
	}

	return nil
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// HasDatabase reports whether a relational database is configured.
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

// StoreTimeout bounds every key-value and database call made by a request.
func (c *Config) StoreTimeout() time.Duration {
	if c.StoreTimeoutMs <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.StoreTimeoutMs) * time.Millisecond
}

// SessionTTL returns how long an admin session token stays valid.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

// LoginWindow returns the sliding window used to count failed logins.
func (c *Config) LoginWindow() time.Duration {
	return time.Duration(c.LoginWindowSeconds) * time.Second
}

// LoginCooldown returns how long an IP stays blocked after too many failures.
func (c *Config) LoginCooldown() time.Duration {
	return time.Duration(c.LoginCooldownSeconds) * time.Second
}

// DailyMarkerTTL returns the expiry for per-day dedup markers.
func (c *Config) DailyMarkerTTL() time.Duration {
	return time.Duration(c.DailyMarkerTTLSeconds) * time.Second
}

// CatalogCacheTTL returns how long the public catalog listing is cached in-process.
func (c *Config) CatalogCacheTTL() time.Duration {
	return time.Duration(c.CatalogCacheTTLSeconds) * time.Second
}

// Location returns the timezone used for daily buckets.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.AnalyticsTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SiteHosts returns the configured public hosts of the gallery, lower-cased.
func (c *Config) SiteHosts() []string {
	return splitList(c.PublicSiteHosts)
}

// InternalSuffixes returns host suffixes that are always treated as internal referrers.
func (c *Config) InternalSuffixes() []string {
	return splitList(c.InternalHostSuffixes)
}

// SessionCookieName returns the admin session cookie name.
func (c *Config) SessionCookieName() string {
	return c.AppName + "_session"
}

// ViewerCookieName returns the signed viewer cookie name used by the view counter.
func (c *Config) ViewerCookieName() string {
	return c.AppName + "_viewer"
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment
// If explicitly set via env var, uses that value. Otherwise:
// - Test: 1
// - Development/Production: 4 (serverless-sized Postgres plans cap connections low)
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}

	if c.Environment == Test {
		return 1
	}

	return 4
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}

	if c.Environment == Test {
		return 1
	}

	return 2
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
