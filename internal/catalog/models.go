// Package catalog stores gallery items and the media configuration used to
// derive their image URLs.
package catalog

import "time"

// Media defaults applied when the configuration row is missing or blank.
const (
	DefaultArtFile          = "1.png"
	DefaultThumbFilePattern = "{slug}.png"
)

// Item is a row of the items table.
type Item struct {
	ID            int64     `gorm:"primaryKey;autoIncrement:false"`
	Title         string    `gorm:"not null"`
	Theme         string    `gorm:"not null"`
	Gender        string    `gorm:"not null"`
	Difficulty    string    `gorm:"not null"`
	Slug          string    `gorm:"uniqueIndex;not null"`
	URLOverride   *string   `gorm:"column:url_override"`
	ThumbOverride *string   `gorm:"column:thumb_override"`
	Shop          *string   `gorm:"column:shop"`
	Tags          []ItemTag `gorm:"foreignKey:ItemID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ItemTag is a row of the item_tags table.
type ItemTag struct {
	ItemID int64  `gorm:"primaryKey;autoIncrement:false"`
	Tag    string `gorm:"primaryKey"`
}

// MediaConfig is the single media_config row (ID 1).
type MediaConfig struct {
	ID               int    `gorm:"primaryKey;autoIncrement:false"`
	ArtBaseURL       string `gorm:"column:art_base_url"`
	ThumbBaseURL     string `gorm:"column:thumb_base_url"`
	ArtDefaultFile   string `gorm:"column:art_default_file"`
	ThumbFilePattern string `gorm:"column:thumb_file_pattern"`
	UpdatedAt        time.Time
}

// TableName pins the singular table name.
func (MediaConfig) TableName() string {
	return "media_config"
}

// Models returns every catalog model for migration.
func Models() []any {
	return []any{&Item{}, &ItemTag{}, &MediaConfig{}}
}
