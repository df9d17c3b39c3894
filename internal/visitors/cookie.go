package visitors

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// CookieSigner signs visitor hashes for the viewer cookie so a returning
// browser keeps its identity when its IP changes.
type CookieSigner struct {
	secret []byte
}

// NewCookieSigner creates a signer keyed by secret.
func NewCookieSigner(secret string) *CookieSigner {
	return &CookieSigner{secret: []byte("viewer:" + secret)}
}

// Sign returns "<hash>.<mac>".
func (s *CookieSigner) Sign(visitorHash string) string {
	return visitorHash + "." + s.mac(visitorHash)
}

// Verify returns the visitor hash carried by a signed value, or "" if the
// value is malformed or the signature does not match.
func (s *CookieSigner) Verify(value string) string {
	hash, sig, ok := strings.Cut(value, ".")
	if !ok || !isHexHash(hash) {
		return ""
	}
	expected := s.mac(hash)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return ""
	}
	return hash
}

func (s *CookieSigner) mac(data string) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func isHexHash(v string) bool {
	if len(v) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(v)
	return err == nil
}
