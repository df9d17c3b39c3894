package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gallerystats/internal/apperror"
	"gallerystats/internal/auth"
	"gallerystats/internal/kvstore"
	"gallerystats/internal/logging"
)

var limits = auth.LimiterConfig{Window: 10 * time.Minute, MaxFailures: 5, Cooldown: 15 * time.Minute}

func newGate(t *testing.T, store kvstore.Store, now *time.Time) *auth.Gate {
	t.Helper()
	clock := func() time.Time { return *now }

	limiter := auth.NewLimiter(store, limits, logging.Discard())
	limiter.SetClock(clock)
	signer := auth.NewSigner("a-very-long-session-secret-for-tests")
	signer.SetClock(clock)

	creds := auth.Credentials{Username: "admin", Password: "correct-horse"}
	return auth.NewGate(creds, signer, limiter, 8*time.Hour, logging.Discard())
}

func TestGateLogin(t *testing.T) {
	ctx := context.Background()
	const ip = "203.0.113.7"

	t.Run("sixth attempt after five failures is rate limited", func(t *testing.T) {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		store := kvstore.NewMemoryStore(kvstore.Options{})
		store.SetClock(func() time.Time { return now })
		gate := newGate(t, store, &now)

		for i := 1; i <= 5; i++ {
			_, err := gate.Login(ctx, ip, "admin", "wrong")
			require.Error(t, err)
			assert.Equal(t, apperror.Unauthorized, apperror.KindOf(err), "attempt %d", i)
		}

		_, err := gate.Login(ctx, ip, "admin", "correct-horse")
		require.Error(t, err)
		assert.Equal(t, apperror.RateLimited, apperror.KindOf(err))

		var appErr *apperror.Error
		require.ErrorAs(t, err, &appErr)
		assert.Greater(t, appErr.RetryAfter, time.Duration(0))
		assert.LessOrEqual(t, appErr.RetryAfter, 15*time.Minute)

		// Other identities are unaffected
		session, err := gate.Login(ctx, "198.51.100.2", "admin", "correct-horse")
		require.NoError(t, err)
		assert.NotEmpty(t, session.Token)
	})

	t.Run("cooldown elapses", func(t *testing.T) {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		store := kvstore.NewMemoryStore(kvstore.Options{})
		store.SetClock(func() time.Time { return now })
		gate := newGate(t, store, &now)

		for i := 0; i < 5; i++ {
			_, _ = gate.Login(ctx, ip, "admin", "wrong")
		}
		now = now.Add(16 * time.Minute)

		_, err := gate.Login(ctx, ip, "admin", "correct-horse")
		assert.NoError(t, err)
	})

	t.Run("success resets the failure count", func(t *testing.T) {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		store := kvstore.NewMemoryStore(kvstore.Options{})
		store.SetClock(func() time.Time { return now })
		gate := newGate(t, store, &now)

		for i := 0; i < 4; i++ {
			_, _ = gate.Login(ctx, ip, "admin", "wrong")
		}
		_, err := gate.Login(ctx, ip, "admin", "correct-horse")
		require.NoError(t, err)

		for i := 0; i < 4; i++ {
			_, err := gate.Login(ctx, ip, "admin", "wrong")
			assert.Equal(t, apperror.Unauthorized, apperror.KindOf(err))
		}
		_, err = gate.Login(ctx, ip, "admin", "correct-horse")
		assert.NoError(t, err)
	})

	t.Run("failures outside the window start a new window", func(t *testing.T) {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		store := kvstore.NewMemoryStore(kvstore.Options{})
		store.SetClock(func() time.Time { return now })
		gate := newGate(t, store, &now)

		for i := 0; i < 4; i++ {
			_, _ = gate.Login(ctx, ip, "admin", "wrong")
		}
		now = now.Add(11 * time.Minute)
		_, _ = gate.Login(ctx, ip, "admin", "wrong")

		_, err := gate.Login(ctx, ip, "admin", "correct-horse")
		assert.NoError(t, err)
	})

	t.Run("store failure fails open", func(t *testing.T) {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		store := kvstore.NewMemoryStore(kvstore.Options{})
		store.FailWith = errors.New("redis down")
		gate := newGate(t, store, &now)

		for i := 0; i < 10; i++ {
			_, err := gate.Login(ctx, ip, "admin", "wrong")
			assert.Equal(t, apperror.Unauthorized, apperror.KindOf(err))
		}

		session, err := gate.Login(ctx, ip, "admin", "correct-horse")
		require.NoError(t, err)
		claims, ok := gate.Verify(session.Token)
		require.True(t, ok)
		assert.Equal(t, now.Add(8*time.Hour).Unix(), claims.ExpiresAt)
	})

	t.Run("unconfigured login is a server error", func(t *testing.T) {
		gate := auth.NewGate(auth.Credentials{Username: "admin"}, auth.NewSigner("x"),
			auth.NewLimiter(kvstore.NewMemoryStore(kvstore.Options{}), limits, logging.Discard()), time.Hour, logging.Discard())

		_, err := gate.Login(ctx, ip, "admin", "anything")
		assert.Equal(t, apperror.ServerError, apperror.KindOf(err))
	})
}
