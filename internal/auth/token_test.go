package auth_test

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gallerystats/internal/auth"
)

func TestSigner(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	signer := auth.NewSigner("a-very-long-session-secret-for-tests")
	signer.SetClock(func() time.Time { return now })

	t.Run("issued token verifies", func(t *testing.T) {
		token, claims, err := signer.Issue(8 * time.Hour)
		require.NoError(t, err)
		assert.Equal(t, now.Add(8*time.Hour).Unix(), claims.ExpiresAt)
		assert.NotContains(t, token, "=")

		got, ok := signer.Verify(token)
		require.True(t, ok)
		assert.Equal(t, auth.RoleAdmin, got.Role)
		assert.Equal(t, now.Unix(), got.IssuedAt)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		token, _, err := signer.Issue(time.Hour)
		require.NoError(t, err)

		later := auth.NewSigner("a-very-long-session-secret-for-tests")
		later.SetClock(func() time.Time { return now.Add(time.Hour) })

		_, ok := later.Verify(token)
		assert.False(t, ok)
	})

	t.Run("tampered payload is rejected", func(t *testing.T) {
		token, _, err := signer.Issue(time.Hour)
		require.NoError(t, err)

		_, sig, _ := strings.Cut(token, ".")
		forged, _ := json.Marshal(auth.Claims{Role: auth.RoleAdmin, IssuedAt: now.Unix(), ExpiresAt: now.Add(1000 * time.Hour).Unix()})
		_, ok := signer.Verify(base64.RawURLEncoding.EncodeToString(forged) + "." + sig)
		assert.False(t, ok)
	})

	t.Run("tampered signature is rejected", func(t *testing.T) {
		token, _, err := signer.Issue(time.Hour)
		require.NoError(t, err)

		flipped := token[:len(token)-1] + "A"
		if flipped == token {
			flipped = token[:len(token)-1] + "B"
		}
		_, ok := signer.Verify(flipped)
		assert.False(t, ok)
	})

	t.Run("other secret is rejected", func(t *testing.T) {
		token, _, err := signer.Issue(time.Hour)
		require.NoError(t, err)

		_, ok := auth.NewSigner("another-secret").Verify(token)
		assert.False(t, ok)
	})

	t.Run("malformed tokens are rejected", func(t *testing.T) {
		for _, token := range []string{"", ".", "abc", "abc.", ".abc", "!!!.???"} {
			_, ok := signer.Verify(token)
			assert.False(t, ok, token)
		}
	})
}
