// Package kvstore provides the key-value store used for dedup markers,
// counters, the analytics aggregate and login limiter records.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"gallerystats/internal/config"
)

var (
	// ErrNotFound is returned when a key is missing or expired.
	ErrNotFound = errors.New("kvstore: key not found")
	// ErrUnavailable wraps transport or backend failures.
	ErrUnavailable = errors.New("kvstore: store unavailable")
)

// Store is a minimal string key-value store with per-key expiry.
// A zero ttl means the key never expires.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Options shared by every implementation.
type Options struct {
	Prefix  string
	Timeout time.Duration
}

func (o Options) key(k string) string {
	if o.Prefix == "" {
		return k
	}
	return o.Prefix + ":" + k
}

func (o Options) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.Timeout)
}

func unavailable(op, key string, err error) error {
	return fmt.Errorf("%w: %s %q: %v", ErrUnavailable, op, key, err)
}

// GetJSON reads key and decodes it into dst.
func GetJSON(ctx context.Context, s Store, key string, dst any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("kvstore: decode %q: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kvstore: encode %q: %w", key, err)
	}
	return s.Set(ctx, key, string(data), ttl)
}

// New builds the store selected by the configured driver. db is required for
// the database driver and ignored otherwise.
func New(cfg *config.Config, db *gorm.DB, logger *slog.Logger) (Store, error) {
	opts := Options{Prefix: cfg.KVKeyPrefix, Timeout: cfg.StoreTimeout()}

	switch cfg.KVDriver {
	case config.KVRedis:
		store, err := NewRedisStore(RedisConfig{
			URL:      cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, opts)
		if err != nil {
			return nil, err
		}
		logger.Info("Using redis key-value store")
		return store, nil
	case config.KVDatabase:
		if db == nil {
			return nil, fmt.Errorf("kvstore: database driver requires a database connection")
		}
		logger.Info("Using database key-value store")
		return NewSQLStore(db, opts), nil
	default:
		if cfg.IsProduction() {
			logger.Warn("Using in-memory key-value store in production; counts reset on restart")
		}
		return NewMemoryStore(opts), nil
	}
}
