package kvstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry is a row of the kv_entries table.
type Entry struct {
	Key       string     `gorm:"column:entry_key;primaryKey;size:512"`
	Value     string     `gorm:"type:text;not null"`
	ExpiresAt *time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// TableName pins the table name used by SQLStore.
func (Entry) TableName() string {
	return "kv_entries"
}

// SQLStore is a Store backed by a relational table through GORM.
type SQLStore struct {
	db   *gorm.DB
	opts Options
	now  func() time.Time
}

// NewSQLStore wraps db. The kv_entries table is created by the migrator.
func NewSQLStore(db *gorm.DB, opts Options) *SQLStore {
	return &SQLStore{db: db, opts: opts, now: time.Now}
}

// SetClock replaces the store's time source.
func (s *SQLStore) SetClock(now func() time.Time) {
	s.now = now
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	var entry Entry
	err := s.db.WithContext(ctx).
		Where("entry_key = ? AND (expires_at IS NULL OR expires_at > ?)", s.opts.key(key), s.now().UTC()).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	} else if err != nil {
		return "", unavailable("get", key, err)
	}
	return entry.Value, nil
}

func (s *SQLStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	now := s.now().UTC()
	entry := Entry{Key: s.opts.key(key), Value: value, UpdatedAt: now}
	if ttl > 0 {
		expiresAt := now.Add(ttl)
		entry.ExpiresAt = &expiresAt
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return unavailable("set", key, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	if err := s.db.WithContext(ctx).Where("entry_key = ?", s.opts.key(key)).Delete(&Entry{}).Error; err != nil {
		return unavailable("delete", key, err)
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	sqlDB, err := s.db.DB()
	if err != nil {
		return unavailable("ping", "", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return unavailable("ping", "", err)
	}
	return nil
}

// Close is a no-op; the connection pool belongs to the database manager.
func (s *SQLStore) Close() error {
	return nil
}

// PurgeExpired deletes expired rows and returns how many were removed.
func (s *SQLStore) PurgeExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", s.now().UTC()).
		Delete(&Entry{})
	if result.Error != nil {
		return 0, unavailable("purge", "", result.Error)
	}
	return result.RowsAffected, nil
}
