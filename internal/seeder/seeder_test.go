package seeder_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gallerystats/internal/catalog"
	"gallerystats/internal/seeder"
	"gallerystats/internal/testsupport"
)

const legacyJSON = `[
  {"id": 1, "title": "Fox", "theme": "animals", "gender": "any", "difficulty": "easy",
   "url": "https://art.example/img/fox/1.png", "thumb": "https://thumbs.example/fox.png",
   "tags": ["forest", " forest ", "red"]},
  {"id": 2, "title": "Owl", "theme": "animals", "gender": "any", "difficulty": "hard",
   "url": "https://elsewhere.example/owl.jpg", "thumb": "https://thumbs.example/owl-small.png",
   "shop": "https://shop.example/owl"}
]`

const compactYAML = `
schemaVersion: 2
media:
  artBaseUrl: https://art.example/img/
  thumbBaseUrl: https://thumbs.example
items:
  - id: 10
    title: Cat
    theme: pets
    gender: any
    difficulty: easy
    slug: cat
    tags: [pet, 3]
  - id: "11"
    title: Dog
    theme: pets
    gender: any
    difficulty: medium
    slug: dog
    url: https://art.example/img/dog/1.png
`

func newSeeder(t *testing.T) (*seeder.Seeder, *catalog.Service) {
	t.Helper()
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)
	svc := catalog.NewService(db, 5*time.Second, time.Minute, testsupport.GetLogger())
	return seeder.NewSeeder(svc, testsupport.GetLogger()), svc
}

func TestParse(t *testing.T) {
	t.Run("legacy array is compacted", func(t *testing.T) {
		p, err := seeder.Parse([]byte(legacyJSON))
		require.NoError(t, err)

		assert.Equal(t, catalog.SchemaVersion, p.SchemaVersion)
		assert.Equal(t, "https://art.example/img", p.Media.ArtBaseURL)
		assert.Equal(t, "https://thumbs.example", p.Media.ThumbBaseURL)
		assert.Equal(t, "1.png", p.Media.ArtDefaultFile)
		assert.Equal(t, "{slug}.png", p.Media.ThumbFilePattern)

		require.Len(t, p.Items, 2)
		fox := p.Items[0]
		assert.Equal(t, "fox", fox.Slug)
		assert.Empty(t, fox.URL)
		assert.Empty(t, fox.Thumb)

		owl := p.Items[1]
		assert.Equal(t, "elsewhere.example", owl.Slug)
		assert.Equal(t, "https://elsewhere.example/owl.jpg", owl.URL)
		assert.Equal(t, "https://thumbs.example/owl-small.png", owl.Thumb)
	})

	t.Run("compact document", func(t *testing.T) {
		p, err := seeder.Parse([]byte(compactYAML))
		require.NoError(t, err)
		assert.Equal(t, 2, p.SchemaVersion)
		assert.Len(t, p.Items, 2)
	})

	t.Run("invalid payloads", func(t *testing.T) {
		for _, raw := range []string{
			`"just a string"`,
			`{"media": {}}`,
			`{"items": []}`,
			`{not yaml`,
		} {
			_, err := seeder.Parse([]byte(raw))
			assert.Error(t, err, raw)
		}
	})
}

func TestSeed(t *testing.T) {
	ctx := context.Background()

	t.Run("compact yaml file", func(t *testing.T) {
		s, svc := newSeeder(t)
		path := filepath.Join(t.TempDir(), "items.yaml")
		require.NoError(t, os.WriteFile(path, []byte(compactYAML), 0o644))

		n, err := s.SeedFile(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		c, err := svc.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, "https://art.example/img", c.Media.ArtBaseURL)
		require.Len(t, c.Items, 2)

		cat := c.Items[0]
		assert.Equal(t, []string{"3", "pet"}, cat.Tags)
		assert.Equal(t, "https://art.example/img/cat/1.png", cat.URL)

		// url equal to the derived default is not stored as an override
		dog := c.Items[1]
		assert.Empty(t, dog.URLOverride)
		assert.Equal(t, "https://art.example/img/dog/1.png", dog.URL)
	})

	t.Run("legacy json keeps overrides and prunes missing items", func(t *testing.T) {
		s, svc := newSeeder(t)
		stale := catalog.Item{ID: 99, Title: "Stale", Theme: "x", Gender: "x", Difficulty: "x", Slug: "stale"}
		require.NoError(t, svc.Create(ctx, stale, []string{"old"}))

		p, err := seeder.Parse([]byte(legacyJSON))
		require.NoError(t, err)
		n, err := s.Seed(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		c, err := svc.Read(ctx)
		require.NoError(t, err)
		require.Len(t, c.Items, 2)

		fox, owl := c.Items[0], c.Items[1]
		assert.Equal(t, []string{"forest", "red"}, fox.Tags)
		assert.Equal(t, "https://thumbs.example/fox.png", fox.Thumb)
		assert.Equal(t, "https://elsewhere.example/owl.jpg", owl.URLOverride)
		assert.Equal(t, "https://shop.example/owl", owl.Shop)
	})

	t.Run("rejects bad items", func(t *testing.T) {
		s, _ := newSeeder(t)
		cases := []*seeder.Payload{
			{Items: []seeder.Item{{ID: 1}}},
			{Items: []seeder.Item{{ID: "abc", Slug: "a"}}},
			{Items: []seeder.Item{{ID: 1.5, Slug: "a"}}},
			{Items: []seeder.Item{{ID: 1, Slug: "a"}, {ID: 1, Slug: "b"}}},
		}
		for _, p := range cases {
			_, err := s.Seed(ctx, p)
			assert.Error(t, err)
		}
	})
}
