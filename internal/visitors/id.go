package visitors

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// MaxExplicitIDLength bounds client-supplied visitor ids.
const MaxExplicitIDLength = 200

// Unknown is the identity used when no signal is available.
const Unknown = "unknown"

// Signals are the request-derived inputs to identity resolution.
type Signals struct {
	ExplicitID string
	IP         string
	UserAgent  string
}

// NormalizeExplicitID trims id and returns "" when it is empty or too long.
func NormalizeExplicitID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > MaxExplicitIDLength {
		return ""
	}
	return id
}

// ResolveIdentity picks the identity string by precedence:
// explicit id, then IP, then user agent, then "unknown".
func ResolveIdentity(s Signals) string {
	if id := NormalizeExplicitID(s.ExplicitID); id != "" {
		return id
	}
	if ip := strings.TrimSpace(s.IP); ip != "" {
		return ip
	}
	if ua := strings.TrimSpace(s.UserAgent); ua != "" {
		return ua
	}
	return Unknown
}

// HashIdentity returns the hex SHA-256 of identity. Raw identities are never stored.
func HashIdentity(identity string) string {
	if identity == "" {
		identity = Unknown
	}
	hash := sha256.Sum256([]byte(identity))
	return hex.EncodeToString(hash[:])
}

// BuildVisitorHash resolves and hashes in one step.
func BuildVisitorHash(s Signals) string {
	return HashIdentity(ResolveIdentity(s))
}
