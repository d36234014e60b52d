package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTL constants for the signing backend's access/refresh pair.
const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	DefaultAccessTokenTTL = 5 * time.Minute

	// DefaultRefreshTokenTTL is the default lifetime for refresh tokens.
	DefaultRefreshTokenTTL = 24 * time.Hour
)

// Claims are the access-token claims the signing backend issues. The backend
// puts the account identifier in "user_id"; "sub" is read as a fallback.
type Claims struct {
	jwt.RegisteredClaims

	// UserID is the numeric account identifier.
	UserID int64 `json:"user_id,omitempty"`

	// TokenType is "access" for access tokens.
	TokenType string `json:"token_type,omitempty"`

	// OrganizationID is the organization the user acts for.
	OrganizationID int64 `json:"organization_id,omitempty"`
}

// NewAccessClaims builds minimally-correct access claims.
func NewAccessClaims(userID, organizationID int64, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		UserID:         userID,
		TokenType:      "access",
		OrganizationID: organizationID,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// AccountID returns the account identifier, preferring user_id over sub.
// Returns 0 when neither is a usable number.
func (c *Claims) AccountID() int64 {
	if c.UserID != 0 {
		return c.UserID
	}

	id, err := strconv.ParseInt(c.RegisteredClaims.Subject, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// Expired reports whether the exp claim lies strictly before now.
// A token without exp never expires.
func (c *Claims) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return c.ExpiresAt.Time.Before(now)
}

// ExpiresWithin reports whether the token will have expired once leeway
// has elapsed from now.
func (c *Claims) ExpiresWithin(now time.Time, leeway time.Duration) bool {
	return c.Expired(now.Add(leeway))
}
