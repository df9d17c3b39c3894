package auth

import (
	"crypto/sha256"
	"crypto/subtle"

	"github.com/karloscodes/cartridge/crypto"
)

// Credentials holds the configured admin login.
type Credentials struct {
	Username     string
	Password     string
	PasswordHash string
}

// Configured reports whether any password is set.
func (c Credentials) Configured() bool {
	return c.Password != "" || c.PasswordHash != ""
}

// Check compares username and password in constant time. A configured
// bcrypt hash takes precedence over the plain password.
func (c Credentials) Check(username, password string) bool {
	if !c.Configured() || password == "" {
		return false
	}

	userOK := digestEqual(username, c.Username)

	var passOK bool
	if c.PasswordHash != "" {
		passOK = crypto.VerifyPassword(c.PasswordHash, password)
	} else {
		passOK = digestEqual(password, c.Password)
	}

	return userOK && passOK
}

// digestEqual hashes both sides so the comparison time does not depend on
// input lengths.
func digestEqual(a, b string) bool {
	da := sha256.Sum256([]byte(a))
	db := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(da[:], db[:]) == 1
}
