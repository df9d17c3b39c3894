// Package auth implements the admin session token, credential checks and
// the login rate limiter.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
)

// RoleAdmin is the only role tokens are issued for.
const RoleAdmin = "admin"

// Claims is the signed session payload. Times are unix seconds.
type Claims struct {
	Role      string `json:"role"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// Expiry returns the expiry as a time.
func (c Claims) Expiry() time.Time {
	return time.Unix(c.ExpiresAt, 0)
}

// Signer issues and verifies session tokens of the form
// base64url(payload) "." base64url(HMAC-SHA256(payload part)).
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner creates a signer keyed by secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret), now: time.Now}
}

// SetClock replaces the signer's time source.
func (s *Signer) SetClock(now func() time.Time) {
	s.now = now
}

// Issue signs a new admin token valid for ttl. Expiry is fixed at issuance.
func (s *Signer) Issue(ttl time.Duration) (string, Claims, error) {
	now := s.now()
	claims := Claims{
		Role:      RoleAdmin,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", Claims{}, err
	}

	data := base64.RawURLEncoding.EncodeToString(payload)
	return data + "." + s.sign(data), claims, nil
}

// Verify returns the token's claims when the signature matches, the role is
// admin and the token has not expired.
func (s *Signer) Verify(token string) (*Claims, bool) {
	data, sig, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok || data == "" || sig == "" {
		return nil, false
	}

	if !hmac.Equal([]byte(sig), []byte(s.sign(data))) {
		return nil, false
	}

	payload, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return nil, false
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, false
	}

	if claims.Role != RoleAdmin || claims.ExpiresAt <= s.now().Unix() {
		return nil, false
	}
	return &claims, true
}

func (s *Signer) sign(data string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
