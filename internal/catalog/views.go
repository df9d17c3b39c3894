package catalog

import (
	"encoding/json"
	"sort"
	"strings"
)

// SchemaVersion is reported by the public catalog listing.
const SchemaVersion = 2

// Media is the JSON form of MediaConfig.
type Media struct {
	ArtBaseURL       string `json:"artBaseUrl"`
	ThumbBaseURL     string `json:"thumbBaseUrl"`
	ArtDefaultFile   string `json:"artDefaultFile"`
	ThumbFilePattern string `json:"thumbFilePattern"`
}

// ItemView is an item as returned to clients, with derived image URLs.
type ItemView struct {
	ID            int64    `json:"id"`
	Title         string   `json:"title"`
	Theme         string   `json:"theme"`
	Gender        string   `json:"gender"`
	Difficulty    string   `json:"difficulty"`
	Slug          string   `json:"slug"`
	URL           string   `json:"url"`
	Thumb         string   `json:"thumb"`
	URLOverride   string   `json:"urlOverride"`
	ThumbOverride string   `json:"thumbOverride"`
	Shop          string   `json:"shop"`
	Tags          []string `json:"tags"`
}

// Catalog is the full listing.
type Catalog struct {
	Media Media      `json:"media"`
	Items []ItemView `json:"items"`
}

// PublicCatalog is the versioned public listing.
type PublicCatalog struct {
	SchemaVersion int        `json:"schemaVersion"`
	Media         Media      `json:"media"`
	Items         []ItemView `json:"items"`
}

// DefaultMedia is used when no media configuration is stored.
func DefaultMedia() Media {
	return Media{ArtDefaultFile: DefaultArtFile, ThumbFilePattern: DefaultThumbFilePattern}
}

func mediaFromConfig(cfg *MediaConfig) Media {
	if cfg == nil {
		return DefaultMedia()
	}
	m := Media{
		ArtBaseURL:       strings.TrimSpace(cfg.ArtBaseURL),
		ThumbBaseURL:     strings.TrimSpace(cfg.ThumbBaseURL),
		ArtDefaultFile:   strings.TrimSpace(cfg.ArtDefaultFile),
		ThumbFilePattern: strings.TrimSpace(cfg.ThumbFilePattern),
	}
	if m.ArtDefaultFile == "" {
		m.ArtDefaultFile = DefaultArtFile
	}
	if m.ThumbFilePattern == "" {
		m.ThumbFilePattern = DefaultThumbFilePattern
	}
	return m
}

// ArtURL derives the full image URL for slug.
func (m Media) ArtURL(slug string) string {
	return strings.TrimRight(m.ArtBaseURL, "/") + "/" + slug + "/" + m.ArtDefaultFile
}

// ThumbURL derives the thumbnail URL for slug.
func (m Media) ThumbURL(slug string) string {
	pattern := m.ThumbFilePattern
	if pattern == "" {
		pattern = DefaultThumbFilePattern
	}
	return strings.TrimRight(m.ThumbBaseURL, "/") + "/" + strings.ReplaceAll(pattern, "{slug}", slug)
}

func toView(item Item, media Media) ItemView {
	slug := strings.TrimSpace(item.Slug)
	view := ItemView{
		ID:            item.ID,
		Title:         strings.TrimSpace(item.Title),
		Theme:         strings.TrimSpace(item.Theme),
		Gender:        strings.TrimSpace(item.Gender),
		Difficulty:    strings.TrimSpace(item.Difficulty),
		Slug:          slug,
		URLOverride:   deref(item.URLOverride),
		ThumbOverride: deref(item.ThumbOverride),
		Shop:          deref(item.Shop),
		Tags:          make([]string, 0, len(item.Tags)),
	}

	view.URL = view.URLOverride
	if view.URL == "" {
		view.URL = media.ArtURL(slug)
	}
	view.Thumb = view.ThumbOverride
	if view.Thumb == "" {
		view.Thumb = media.ThumbURL(slug)
	}

	for _, t := range item.Tags {
		view.Tags = append(view.Tags, t.Tag)
	}
	sort.Strings(view.Tags)
	return view
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// NormalizeTags trims tags, drops empties and duplicates, keeping first
// occurrence order. Non-array input yields no tags.
func NormalizeTags(raw json.RawMessage) []string {
	var values []any
	if len(raw) == 0 || json.Unmarshal(raw, &values) != nil {
		return []string{}
	}

	tags := make([]string, 0, len(values))
	for _, v := range values {
		switch t := v.(type) {
		case string:
			tags = append(tags, t)
		case float64, bool:
			b, _ := json.Marshal(t)
			tags = append(tags, string(b))
		}
	}
	return CleanTags(tags)
}

// CleanTags trims tags and drops empties and duplicates, keeping order.
func CleanTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
