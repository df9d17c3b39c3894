package catalog

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"gallerystats/internal/apperror"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ItemInput is the admin create/update payload. url and thumb are accepted
// as aliases of urlOverride and thumbOverride.
type ItemInput struct {
	ID            json.Number     `json:"id"`
	Title         string          `json:"title"`
	Theme         string          `json:"theme"`
	Gender        string          `json:"gender"`
	Difficulty    string          `json:"difficulty"`
	Slug          string          `json:"slug"`
	URLOverride   string          `json:"urlOverride"`
	URL           string          `json:"url"`
	ThumbOverride string          `json:"thumbOverride"`
	Thumb         string          `json:"thumb"`
	Shop          string          `json:"shop"`
	Tags          json.RawMessage `json:"tags"`
}

type itemFields struct {
	ID         int64  `validate:"gt=0"`
	Title      string `validate:"required"`
	Theme      string `validate:"required"`
	Gender     string `validate:"required"`
	Difficulty string `validate:"required"`
	Slug       string `validate:"required"`
}

// ParseID parses an item id, returning 0 when it is not a positive integer.
func ParseID(raw string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

// ToItem validates the input and returns the item and its normalized tags.
func (in ItemInput) ToItem() (Item, []string, error) {
	fields := itemFields{
		ID:         ParseID(in.ID.String()),
		Title:      strings.TrimSpace(in.Title),
		Theme:      strings.TrimSpace(in.Theme),
		Gender:     strings.TrimSpace(in.Gender),
		Difficulty: strings.TrimSpace(in.Difficulty),
		Slug:       strings.TrimSpace(in.Slug),
	}
	if err := validate.Struct(fields); err != nil {
		return Item{}, nil, apperror.Wrap(apperror.BadRequest, "Missing required fields", err)
	}

	item := Item{
		ID:            fields.ID,
		Title:         fields.Title,
		Theme:         fields.Theme,
		Gender:        fields.Gender,
		Difficulty:    fields.Difficulty,
		Slug:          fields.Slug,
		URLOverride:   optional(firstNonEmpty(in.URLOverride, in.URL)),
		ThumbOverride: optional(firstNonEmpty(in.ThumbOverride, in.Thumb)),
		Shop:          optional(in.Shop),
	}
	return item, NormalizeTags(in.Tags), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
