// Package session carries the caller's streaming-service credential through
// a request. The credential is always an explicit value; nothing here keeps
// process-wide login state.
package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotAuthenticated is returned when a credential is missing, expired or
// cannot be verified.
var ErrNotAuthenticated = errors.New("not authenticated")

// Credential is the cookie issued by the streaming service after QR login
type Credential struct {
	Cookie    string    `json:"cookie"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewCredential wraps a cookie that stays valid for ttl from now
func NewCredential(cookie string, ttl time.Duration) *Credential {
	now := time.Now()
	return &Credential{
		Cookie:    strings.TrimSpace(cookie),
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

// Validate reports ErrNotAuthenticated for a nil, empty or expired credential
func (c *Credential) Validate(now time.Time) error {
	if c == nil || c.Cookie == "" {
		return ErrNotAuthenticated
	}
	if !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt) {
		return fmt.Errorf("%w: session expired at %s", ErrNotAuthenticated, c.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

// CookieOrEmpty returns the cookie of a valid credential, or "" otherwise.
// Public catalog calls use it to send a cookie only when one is available.
func (c *Credential) CookieOrEmpty() string {
	if c.Validate(time.Now()) != nil {
		return ""
	}
	return c.Cookie
}

type contextKey struct{}

// WithCredential returns a context carrying cred
func WithCredential(ctx context.Context, cred *Credential) context.Context {
	return context.WithValue(ctx, contextKey{}, cred)
}

// FromContext returns the credential stored by WithCredential, if any
func FromContext(ctx context.Context) (*Credential, bool) {
	cred, ok := ctx.Value(contextKey{}).(*Credential)
	return cred, ok && cred != nil
}

// sessionClaims is the payload of a session token
type sessionClaims struct {
	Cookie string `json:"ck"`
	jwt.RegisteredClaims
}

const tokenIssuer = "artistsync"

// TokenCodec issues and verifies HS256 session tokens wrapping a credential
type TokenCodec struct {
	secret []byte
	now    func() time.Time
}

// NewTokenCodec creates a codec signing with secret. An empty secret is
// replaced by a random one, so tokens only survive until the process exits.
func NewTokenCodec(secret string) (*TokenCodec, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate session secret: %w", err)
		}
		slog.Warn("SESSION_SECRET not set, session tokens will not survive a restart")
	}
	return &TokenCodec{secret: key, now: time.Now}, nil
}

// Issue signs cred into a token that expires with the credential
func (tc *TokenCodec) Issue(cred *Credential) (string, error) {
	if err := cred.Validate(tc.now()); err != nil {
		return "", err
	}

	claims := sessionClaims{
		Cookie: cred.Cookie,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(cred.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(cred.ExpiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tc.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Parse verifies a token and returns the credential inside it
func (tc *TokenCodec) Parse(tokenString string) (*Credential, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		return tc.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tc.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}

	cred := &Credential{Cookie: claims.Cookie}
	if claims.IssuedAt != nil {
		cred.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		cred.ExpiresAt = claims.ExpiresAt.Time
	}
	if err := cred.Validate(tc.now()); err != nil {
		return nil, err
	}
	return cred, nil
}
