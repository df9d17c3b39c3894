// Package seeder loads the catalog from an items file.
//
// Two layouts are accepted, as YAML or JSON: the compact document
// {schemaVersion, media, items} and the legacy flat array of items with full
// url/thumb values, which is compacted into media + items before writing.
package seeder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"gallerystats/internal/catalog"
)

var (
	artURLPattern   = regexp.MustCompile(`^(.*)/([^/]+)/([^/]+)$`)
	thumbURLPattern = regexp.MustCompile(`^(.*)/([^/]+)$`)
)

// Media is the media section of an items file.
type Media struct {
	ArtBaseURL       string `yaml:"artBaseUrl"`
	ThumbBaseURL     string `yaml:"thumbBaseUrl"`
	ArtDefaultFile   string `yaml:"artDefaultFile"`
	ThumbFilePattern string `yaml:"thumbFilePattern"`
}

// Item is one entry of an items file.
type Item struct {
	ID         any    `yaml:"id"`
	Title      string `yaml:"title"`
	Theme      string `yaml:"theme"`
	Gender     string `yaml:"gender"`
	Difficulty string `yaml:"difficulty"`
	Slug       string `yaml:"slug"`
	URL        string `yaml:"url"`
	Thumb      string `yaml:"thumb"`
	Shop       string `yaml:"shop"`
	Tags       []any  `yaml:"tags"`
}

// Payload is a normalized items file.
type Payload struct {
	SchemaVersion int    `yaml:"schemaVersion"`
	Media         Media  `yaml:"media"`
	Items         []Item `yaml:"items"`
}

type document struct {
	SchemaVersion int     `yaml:"schemaVersion"`
	Media         *Media  `yaml:"media"`
	Items         *[]Item `yaml:"items"`
}

// Parse reads an items file. Legacy arrays are compacted.
func Parse(data []byte) (*Payload, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse items file: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, errors.New("items payload must be object or array")
	}

	node := root.Content[0]
	switch node.Kind {
	case yaml.SequenceNode:
		var items []Item
		if err := node.Decode(&items); err != nil {
			return nil, fmt.Errorf("parse legacy items: %w", err)
		}
		return CompactLegacy(items), nil
	case yaml.MappingNode:
		var doc document
		if err := node.Decode(&doc); err != nil {
			return nil, fmt.Errorf("parse items document: %w", err)
		}
		if doc.Items == nil {
			return nil, errors.New("items payload missing items[]")
		}
		if doc.Media == nil {
			return nil, errors.New("items payload missing media")
		}
		return &Payload{SchemaVersion: doc.SchemaVersion, Media: *doc.Media, Items: *doc.Items}, nil
	default:
		return nil, errors.New("items payload must be object or array")
	}
}

// CompactLegacy derives shared media settings from the first item and keeps
// url/thumb only on items that differ from the derived defaults.
func CompactLegacy(items []Item) *Payload {
	var media Media
	media.ArtDefaultFile = catalog.DefaultArtFile
	media.ThumbFilePattern = catalog.DefaultThumbFilePattern

	if len(items) > 0 {
		if m := artURLPattern.FindStringSubmatch(items[0].URL); m != nil {
			media.ArtBaseURL = m[1]
			media.ArtDefaultFile = m[3]
		}
		if m := thumbURLPattern.FindStringSubmatch(items[0].Thumb); m != nil {
			media.ThumbBaseURL = m[1]
		}
	}

	out := make([]Item, 0, len(items))
	for _, it := range items {
		u := artURLPattern.FindStringSubmatch(it.URL)
		th := thumbURLPattern.FindStringSubmatch(it.Thumb)

		compact := Item{
			ID:         it.ID,
			Title:      it.Title,
			Theme:      it.Theme,
			Gender:     it.Gender,
			Difficulty: it.Difficulty,
			Slug:       strings.TrimSpace(it.Slug),
			Shop:       it.Shop,
			Tags:       it.Tags,
		}
		if u != nil {
			compact.Slug = u[2]
		}
		if u == nil || u[1] != media.ArtBaseURL || u[3] != media.ArtDefaultFile {
			compact.URL = it.URL
		}
		if th == nil || th[1] != media.ThumbBaseURL || th[2] != compact.Slug+".png" {
			compact.Thumb = it.Thumb
		}
		out = append(out, compact)
	}

	return &Payload{SchemaVersion: catalog.SchemaVersion, Media: media, Items: out}
}

// Seeder writes an items file into the catalog.
type Seeder struct {
	Catalog *catalog.Service
	Logger  *slog.Logger
}

// NewSeeder creates a new seeder instance
func NewSeeder(svc *catalog.Service, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{Catalog: svc, Logger: logger}
}

// SeedFile parses path and seeds it.
func (s *Seeder) SeedFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read items file: %w", err)
	}
	payload, err := Parse(data)
	if err != nil {
		return 0, err
	}
	return s.Seed(ctx, payload)
}

// Seed replaces the catalog with payload: media is upserted, every item is
// upserted with its tags, and stored items missing from payload are removed.
// It returns the number of items written.
func (s *Seeder) Seed(ctx context.Context, payload *Payload) (int, error) {
	start := time.Now()

	media := catalog.Media{
		ArtBaseURL:       strings.TrimRight(strings.TrimSpace(payload.Media.ArtBaseURL), "/"),
		ThumbBaseURL:     strings.TrimRight(strings.TrimSpace(payload.Media.ThumbBaseURL), "/"),
		ArtDefaultFile:   strings.TrimSpace(payload.Media.ArtDefaultFile),
		ThumbFilePattern: strings.TrimSpace(payload.Media.ThumbFilePattern),
	}
	if media.ArtDefaultFile == "" {
		media.ArtDefaultFile = catalog.DefaultArtFile
	}
	if media.ThumbFilePattern == "" {
		media.ThumbFilePattern = catalog.DefaultThumbFilePattern
	}

	items, err := toSeedItems(media, payload.Items)
	if err != nil {
		return 0, err
	}

	s.Logger.Info("Seeding catalog", slog.Int("items", len(items)))
	if err := s.Catalog.Replace(ctx, media, items); err != nil {
		return 0, fmt.Errorf("seed catalog: %w", err)
	}

	s.Logger.Info("Catalog seeding completed",
		slog.Int("items", len(items)),
		slog.Duration("elapsed", time.Since(start)))
	return len(items), nil
}

func toSeedItems(media catalog.Media, items []Item) ([]catalog.SeedItem, error) {
	seen := make(map[int64]bool, len(items))
	out := make([]catalog.SeedItem, 0, len(items))

	for _, it := range items {
		slug := strings.TrimSpace(it.Slug)
		if slug == "" {
			return nil, fmt.Errorf("item %v is missing slug", it.ID)
		}
		id, ok := parseID(it.ID)
		if !ok {
			return nil, fmt.Errorf("item has invalid id: %v", it.ID)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate item id in payload: %d", id)
		}
		seen[id] = true

		item := catalog.Item{
			ID:         id,
			Title:      strings.TrimSpace(it.Title),
			Theme:      strings.TrimSpace(it.Theme),
			Gender:     strings.TrimSpace(it.Gender),
			Difficulty: strings.TrimSpace(it.Difficulty),
			Slug:       slug,
		}
		if u := strings.TrimSpace(it.URL); u != "" && u != media.ArtURL(slug) {
			item.URLOverride = &u
		}
		if th := strings.TrimSpace(it.Thumb); th != "" && th != media.ThumbURL(slug) {
			item.ThumbOverride = &th
		}
		if shop := strings.TrimSpace(it.Shop); shop != "" {
			item.Shop = &shop
		}

		tags := make([]string, 0, len(it.Tags))
		for _, t := range it.Tags {
			if t != nil {
				tags = append(tags, fmt.Sprint(t))
			}
		}

		out = append(out, catalog.SeedItem{Item: item, Tags: catalog.CleanTags(tags)})
	}
	return out, nil
}

func parseID(v any) (int64, bool) {
	switch id := v.(type) {
	case int:
		return int64(id), id > 0
	case int64:
		return id, id > 0
	case uint64:
		return int64(id), id > 0 && id <= math.MaxInt64
	case float64:
		if id != math.Trunc(id) || id <= 0 || id > math.MaxInt64 {
			return 0, false
		}
		return int64(id), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
		return n, err == nil && n > 0
	default:
		return 0, false
	}
}
