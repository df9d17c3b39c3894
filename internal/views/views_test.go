package views_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gallerystats/internal/counting"
	"gallerystats/internal/kvstore"
	"gallerystats/internal/views"
	"gallerystats/internal/visitors"
)

func newCounter() (*views.Counter, *kvstore.MemoryStore) {
	store := kvstore.NewMemoryStore(kvstore.Options{})
	return views.NewCounter(store, counting.NewRecorder(store, 48*time.Hour)), store
}

func TestNormalizeID(t *testing.T) {
	id, err := views.NormalizeID("  42 ")
	require.NoError(t, err)
	assert.Equal(t, "42", id)

	_, err = views.NormalizeID("   ")
	assert.ErrorIs(t, err, views.ErrInvalidID)

	_, err = views.NormalizeID(strings.Repeat("a", views.MaxIDLength+1))
	assert.ErrorIs(t, err, views.ErrInvalidID)
}

func TestCounterRecord(t *testing.T) {
	ctx := context.Background()
	counter, _ := newCounter()
	alice := visitors.HashIdentity("alice")
	bob := visitors.HashIdentity("bob")

	n, err := counter.Get(ctx, "7")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, counted, err := counter.Record(ctx, "7", alice)
	require.NoError(t, err)
	assert.True(t, counted)
	assert.Equal(t, int64(1), n)

	n, counted, err = counter.Record(ctx, "7", alice)
	require.NoError(t, err)
	assert.False(t, counted)
	assert.Equal(t, int64(1), n)

	n, counted, err = counter.Record(ctx, "7", bob)
	require.NoError(t, err)
	assert.True(t, counted)
	assert.Equal(t, int64(2), n)

	// items are independent
	n, counted, err = counter.Record(ctx, "8", alice)
	require.NoError(t, err)
	assert.True(t, counted)
	assert.Equal(t, int64(1), n)
}

func TestCounterToleratesCorruptCount(t *testing.T) {
	ctx := context.Background()
	counter, store := newCounter()
	require.NoError(t, store.Set(ctx, views.CountKey("3"), "not-a-number", 0))

	n, err := counter.Get(ctx, "3")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, store.Set(ctx, views.CountKey("3"), "-4", 0))
	n, _, err = counter.Record(ctx, "3", visitors.HashIdentity("carol"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCounterStoreFailure(t *testing.T) {
	ctx := context.Background()
	counter, store := newCounter()
	store.FailWith = errors.New("connection reset")

	_, counted, err := counter.Record(ctx, "7", visitors.HashIdentity("alice"))
	assert.False(t, counted)
	assert.ErrorIs(t, err, kvstore.ErrUnavailable)

	_, err = counter.Get(ctx, "7")
	assert.ErrorIs(t, err, kvstore.ErrUnavailable)
}

// writeFailingStore serves reads but refuses every write.
type writeFailingStore struct {
	*kvstore.MemoryStore
}

func (s writeFailingStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return fmt.Errorf("%w: write refused", kvstore.ErrUnavailable)
}

func TestCounterKeepsCountWhenWritesFail(t *testing.T) {
	ctx := context.Background()
	mem := kvstore.NewMemoryStore(kvstore.Options{})
	require.NoError(t, mem.Set(ctx, views.CountKey("42"), "17", 0))

	store := writeFailingStore{MemoryStore: mem}
	counter := views.NewCounter(store, counting.NewRecorder(store, 48*time.Hour))

	n, counted, err := counter.Record(ctx, "42", visitors.HashIdentity("dave"))
	assert.Error(t, err)
	assert.False(t, counted)
	assert.Equal(t, int64(17), n)

	n, err = counter.Get(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, int64(17), n)
}
