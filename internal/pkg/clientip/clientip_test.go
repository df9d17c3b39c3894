package clientip

import (
	"net"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeIPVariants(t *testing.T) {
	t.Helper()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain ipv4", raw: "79.144.65.173", want: "79.144.65.173"},
		{name: "ipv4 with spaces", raw: " 79.144.65.173 ", want: "79.144.65.173"},
		{name: "quoted ipv4", raw: "\"79.144.65.173\"", want: "79.144.65.173"},
		{name: "ipv4 with port", raw: "79.144.65.173:443", want: "79.144.65.173"},
		{name: "quoted forwarded ipv4", raw: "\"79.144.65.173:1234\"", want: "79.144.65.173"},
		{name: "ipv6 literal", raw: "2001:db8::1", want: "2001:db8::1"},
		{name: "ipv6 in brackets", raw: "[2001:db8::1]", want: "2001:db8::1"},
		{name: "ipv6 with port", raw: "[2001:db8::1]:8443", want: "2001:db8::1"},
		{name: "ipv6 with zone", raw: "fe80::1%eth0", want: "fe80::1"},
		{name: "ipv4 mapped ipv6", raw: "::ffff:203.0.113.9", want: "203.0.113.9"},
		{name: "invalid value", raw: "not-an-ip", want: ""},
		{name: "empty", raw: "   ", want: ""},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, parsed := normalizeIP(tc.raw)
			assert.Equal(t, tc.want, got)

			if tc.want == "" {
				assert.Nil(t, parsed)
				return
			}

			require.NotNil(t, parsed)
			assert.Equal(t, tc.want, parsed.String())
		})
	}
}

func TestSelectPreferredIP(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   string
	}{
		{
			name:   "prefers public ipv4 over ipv6",
			values: []string{"2001:db8::1", "203.0.113.20"},
			want:   "203.0.113.20",
		},
		{
			name:   "skips private addresses",
			values: []string{"192.168.1.10", "10.0.0.5", "::1", "198.51.100.7"},
			want:   "198.51.100.7",
		},
		{
			name:   "returns ipv6 fallback when no ipv4",
			values: []string{"2001:db8::2"},
			want:   "2001:db8::2",
		},
		{
			name:   "returns empty when no valid candidates",
			values: []string{"", "   ", "not-an-ip"},
			want:   "",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, selectPreferredIP(tc.values))
		})
	}
}

func TestIsPrivateIPWithMappedIPv4(t *testing.T) {
	private := net.ParseIP("::ffff:192.168.1.5")
	require.NotNil(t, private)
	assert.True(t, isPrivateIP(private))

	public := net.ParseIP("::ffff:8.8.8.8")
	require.NotNil(t, public)
	assert.False(t, isPrivateIP(public))
}

func TestParseForwardedHeader(t *testing.T) {
	got := parseForwardedHeader(`for=192.0.2.60;proto=http;by=203.0.113.43, For="[2001:db8:cafe::17]:4711"`)
	assert.Equal(t, []string{"192.0.2.60", `"[2001:db8:cafe::17]:4711"`}, got)
}

func resolveWith(t *testing.T, headers map[string]string) (identity, resolved string) {
	t.Helper()
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		identity = ForIdentity(c)
		resolved = Resolve(c)
		return nil
	})

	req := httptest.NewRequest("GET", "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	_, err := app.Test(req)
	require.NoError(t, err)
	return identity, resolved
}

func TestForIdentityAndResolve(t *testing.T) {
	tests := []struct {
		name         string
		headers      map[string]string
		wantIdentity string
		wantResolved string
	}{
		{
			name:         "provider header wins",
			headers:      map[string]string{HeaderNfClientIP: "198.51.100.7", "X-Forwarded-For": "203.0.113.1"},
			wantIdentity: "198.51.100.7",
			wantResolved: "198.51.100.7",
		},
		{
			name:         "first forwarded entry for identity",
			headers:      map[string]string{"X-Forwarded-For": "10.0.0.1, 203.0.113.9"},
			wantIdentity: "10.0.0.1",
			wantResolved: "203.0.113.9",
		},
		{
			name:         "real ip header",
			headers:      map[string]string{"X-Real-IP": "203.0.113.50"},
			wantIdentity: "",
			wantResolved: "203.0.113.50",
		},
		{
			name:         "no headers",
			headers:      map[string]string{},
			wantIdentity: "",
			wantResolved: "127.0.0.1",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			identity, resolved := resolveWith(t, tc.headers)
			assert.Equal(t, tc.wantIdentity, identity)
			assert.Equal(t, tc.wantResolved, resolved)
		})
	}
}

func rateLimitKey(t *testing.T, headers map[string]string, trustProxy bool) string {
	t.Helper()
	var key string
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		key = ForRateLimit(c, trustProxy)
		return nil
	})

	req := httptest.NewRequest("GET", "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	_, err := app.Test(req)
	require.NoError(t, err)
	return key
}

func TestForRateLimit(t *testing.T) {
	spoofed := map[string]string{
		HeaderNfClientIP:          "203.0.113.7",
		fiber.HeaderXForwardedFor: "198.51.100.1, 203.0.113.9",
	}

	t.Run("headers ignored when untrusted", func(t *testing.T) {
		assert.Equal(t, "127.0.0.1", rateLimitKey(t, spoofed, false))
		assert.Equal(t, "127.0.0.1", rateLimitKey(t, nil, false))
	})

	t.Run("provider header when trusted", func(t *testing.T) {
		assert.Equal(t, "203.0.113.7", rateLimitKey(t, spoofed, true))
	})

	t.Run("last forwarded entry when trusted", func(t *testing.T) {
		headers := map[string]string{fiber.HeaderXForwardedFor: "198.51.100.1, 203.0.113.9"}
		assert.Equal(t, "203.0.113.9", rateLimitKey(t, headers, true))
	})

	t.Run("connection address when trusted headers are unusable", func(t *testing.T) {
		headers := map[string]string{fiber.HeaderXForwardedFor: "garbage"}
		assert.Equal(t, "127.0.0.1", rateLimitKey(t, headers, true))
	})
}
