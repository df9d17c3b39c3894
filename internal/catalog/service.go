package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gallerystats/internal/apperror"
)

const publicCacheKey = "public"

var errItemNotFound = apperror.NewNotFound("Item not found")

// Service reads and writes the catalog.
type Service struct {
	db      *gorm.DB
	timeout time.Duration
	cache   *expirable.LRU[string, PublicCatalog]
	logger  *slog.Logger
}

// NewService creates a catalog service. The public listing is cached for cacheTTL.
func NewService(db *gorm.DB, timeout, cacheTTL time.Duration, logger *slog.Logger) *Service {
	if cacheTTL <= 0 {
		cacheTTL = time.Second
	}
	return &Service{
		db:      db,
		timeout: timeout,
		cache:   expirable.NewLRU[string, PublicCatalog](1, nil, cacheTTL),
		logger:  logger,
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Read returns the media configuration and all items ordered by id.
func (s *Service) Read(ctx context.Context) (Catalog, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		media *MediaConfig
		items []Item
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var rows []MediaConfig
		if err := s.db.WithContext(gctx).Where("id = ?", 1).Limit(1).Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) > 0 {
			media = &rows[0]
		}
		return nil
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).
			Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tag") }).
			Order("id").
			Find(&items).Error
	})
	if err := g.Wait(); err != nil {
		return Catalog{}, apperror.NewStorageUnavailable(err)
	}

	m := mediaFromConfig(media)
	out := Catalog{Media: m, Items: make([]ItemView, 0, len(items))}
	for _, item := range items {
		out.Items = append(out.Items, toView(item, m))
	}
	return out, nil
}

// Public returns the versioned public listing, served from cache when fresh.
func (s *Service) Public(ctx context.Context) (PublicCatalog, error) {
	if cached, ok := s.cache.Get(publicCacheKey); ok {
		return cached, nil
	}

	c, err := s.Read(ctx)
	if err != nil {
		return PublicCatalog{}, err
	}

	public := PublicCatalog{SchemaVersion: SchemaVersion, Media: c.Media, Items: c.Items}
	s.cache.Add(publicCacheKey, public)
	return public, nil
}

// Create inserts a new item with its tags.
func (s *Service) Create(ctx context.Context, item Item, tags []string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	item.CreatedAt, item.UpdatedAt = now, now
	item.Tags = nil

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&item).Error; err != nil {
			return err
		}
		return insertTags(tx, item.ID, tags)
	})
	if err != nil {
		return s.writeError(err, "Duplicate id or slug")
	}

	s.invalidate()
	return nil
}

// Update replaces an existing item's fields and tags.
func (s *Service) Update(ctx context.Context, item Item, tags []string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Item{}).Where("id = ?", item.ID).Updates(map[string]any{
			"title":          item.Title,
			"theme":          item.Theme,
			"gender":         item.Gender,
			"difficulty":     item.Difficulty,
			"slug":           item.Slug,
			"url_override":   item.URLOverride,
			"thumb_override": item.ThumbOverride,
			"shop":           item.Shop,
			"updated_at":     time.Now().UTC(),
		})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errItemNotFound
		}

		if err := tx.Where("item_id = ?", item.ID).Delete(&ItemTag{}).Error; err != nil {
			return err
		}
		return insertTags(tx, item.ID, tags)
	})
	if err != nil {
		return s.writeError(err, "Duplicate slug")
	}

	s.invalidate()
	return nil
}

// Delete removes an item and its tags.
func (s *Service) Delete(ctx context.Context, id int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("item_id = ?", id).Delete(&ItemTag{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&Item{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errItemNotFound
		}
		return nil
	})
	if err != nil {
		return s.writeError(err, "Conflict")
	}

	s.invalidate()
	return nil
}

// SaveMedia writes the media configuration row.
func (s *Service) SaveMedia(ctx context.Context, m Media) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := saveMedia(s.db.WithContext(ctx), m); err != nil {
		return apperror.NewStorageUnavailable(err)
	}

	s.invalidate()
	return nil
}

// Upsert creates or fully replaces an item.
func (s *Service) Upsert(ctx context.Context, item Item, tags []string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return upsertItem(tx, item, tags)
	})
	if err != nil {
		return s.writeError(err, "Duplicate slug")
	}

	s.invalidate()
	return nil
}

// SeedItem is an item with its tags.
type SeedItem struct {
	Item Item
	Tags []string
}

// Replace writes media and items in one transaction and removes every stored
// item that is not part of items.
func (s *Service) Replace(ctx context.Context, media Media, items []SeedItem) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ids := make([]int64, 0, len(items))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveMedia(tx, media); err != nil {
			return err
		}
		for _, it := range items {
			if err := upsertItem(tx, it.Item, it.Tags); err != nil {
				return err
			}
			ids = append(ids, it.Item.ID)
		}

		if len(ids) == 0 {
			if err := tx.Where("1 = 1").Delete(&ItemTag{}).Error; err != nil {
				return err
			}
			return tx.Where("1 = 1").Delete(&Item{}).Error
		}
		if err := tx.Where("item_id NOT IN ?", ids).Delete(&ItemTag{}).Error; err != nil {
			return err
		}
		return tx.Where("id NOT IN ?", ids).Delete(&Item{}).Error
	})
	if err != nil {
		return s.writeError(err, "Duplicate slug")
	}

	s.invalidate()
	return nil
}

// Count returns the number of stored items.
func (s *Service) Count(ctx context.Context) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var n int64
	if err := s.db.WithContext(ctx).Model(&Item{}).Count(&n).Error; err != nil {
		return 0, apperror.NewStorageUnavailable(err)
	}
	return n, nil
}

func (s *Service) invalidate() {
	s.cache.Purge()
}

func saveMedia(tx *gorm.DB, m Media) error {
	row := MediaConfig{
		ID:               1,
		ArtBaseURL:       strings.TrimRight(strings.TrimSpace(m.ArtBaseURL), "/"),
		ThumbBaseURL:     strings.TrimRight(strings.TrimSpace(m.ThumbBaseURL), "/"),
		ArtDefaultFile:   strings.TrimSpace(m.ArtDefaultFile),
		ThumbFilePattern: strings.TrimSpace(m.ThumbFilePattern),
		UpdatedAt:        time.Now().UTC(),
	}
	if row.ArtDefaultFile == "" {
		row.ArtDefaultFile = DefaultArtFile
	}
	if row.ThumbFilePattern == "" {
		row.ThumbFilePattern = DefaultThumbFilePattern
	}

	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&row).Error
}

func upsertItem(tx *gorm.DB, item Item, tags []string) error {
	now := time.Now().UTC()
	item.CreatedAt, item.UpdatedAt = now, now
	item.Tags = nil

	err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "theme", "gender", "difficulty", "slug",
			"url_override", "thumb_override", "shop", "updated_at",
		}),
	}).Create(&item).Error
	if err != nil {
		return err
	}
	if err := tx.Where("item_id = ?", item.ID).Delete(&ItemTag{}).Error; err != nil {
		return err
	}
	return insertTags(tx, item.ID, tags)
}

func insertTags(tx *gorm.DB, itemID int64, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	rows := make([]ItemTag, 0, len(tags))
	for _, tag := range tags {
		rows = append(rows, ItemTag{ItemID: itemID, Tag: tag})
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func (s *Service) writeError(err error, conflictMessage string) error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if IsDuplicateKey(err) {
		return apperror.Wrap(apperror.Conflict, conflictMessage, err)
	}
	s.logger.Error("Catalog write failed", slog.Any("error", err))
	return apperror.NewStorageUnavailable(err)
}

// IsDuplicateKey reports whether err is a unique constraint violation.
func IsDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
