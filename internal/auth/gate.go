package auth

import (
	"context"
	"log/slog"
	"time"

	"gallerystats/internal/apperror"
	"gallerystats/internal/visitors"
)

// Session is a freshly issued admin session.
type Session struct {
	Token  string
	Claims Claims
}

// Gate combines credentials, throttling and token issuance.
type Gate struct {
	creds   Credentials
	signer  *Signer
	limiter *Limiter
	ttl     time.Duration
	logger  *slog.Logger
}

// NewGate wires the admin login gate.
func NewGate(creds Credentials, signer *Signer, limiter *Limiter, ttl time.Duration, logger *slog.Logger) *Gate {
	return &Gate{creds: creds, signer: signer, limiter: limiter, ttl: ttl, logger: logger}
}

// Login checks the attempt from ip and issues a session on success.
// Errors are *apperror.Error of kind Unauthorized, RateLimited or ServerError.
func (g *Gate) Login(ctx context.Context, ip, username, password string) (*Session, error) {
	if !g.creds.Configured() {
		g.logger.Error("Admin login attempted but no admin password is configured")
		return nil, apperror.New(apperror.ServerError, "Admin login is not configured")
	}

	identity := visitors.HashIdentity(ip)

	if retryAfter, blocked := g.limiter.Blocked(ctx, identity); blocked {
		return nil, apperror.NewRateLimited("Too many login attempts. Try again later.", retryAfter)
	}

	if !g.creds.Check(username, password) {
		g.limiter.RecordFailure(ctx, identity)
		g.logger.Debug("Invalid admin login attempt")
		return nil, apperror.NewUnauthorized("Invalid credentials")
	}

	g.limiter.Reset(ctx, identity)

	token, claims, err := g.signer.Issue(g.ttl)
	if err != nil {
		return nil, apperror.Wrap(apperror.ServerError, "Login failed", err)
	}
	return &Session{Token: token, Claims: claims}, nil
}

// Verify returns the claims of a valid token.
func (g *Gate) Verify(token string) (*Claims, bool) {
	return g.signer.Verify(token)
}

// TTL returns the session lifetime.
func (g *Gate) TTL() time.Duration {
	return g.ttl
}
