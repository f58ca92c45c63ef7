package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTL constants. Access tokens are short lived, refresh tokens
// are measured in days.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Kind distinguishes the two tokens we hand out. They share the same
// signing key so the "typ" claim is what stops a refresh token being
// replayed as an access token (and vice versa).
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims are the claims carried by both access and refresh tokens.
type Claims struct {
	jwt.RegisteredClaims

	// Token kind, "access" or "refresh"
	Kind Kind `json:"typ"`

	// Role strings granted to the subject, "USER", "ADMIN"
	Authorities []string `json:"authorities,omitempty"`

	// Account status at issuance time
	Status string `json:"status,omitempty"`
}

// NewClaims builds claims for a subject. Timestamps and the jti are filled in
// by Codec.Issue.
func NewClaims(kind Kind, subject string, authorities []string, status string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: subject,
		},
		Kind:        kind,
		Authorities: slices.Clone(authorities),
		Status:      status,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// HasAuthority reports whether the claims grant the given role.
func (c *Claims) HasAuthority(a string) bool {
	return slices.Contains(c.Authorities, a)
}

// IssuedTime returns the iat claim or the zero time.
func (c *Claims) IssuedTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// ExpiryTime returns the exp claim or the zero time.
func (c *Claims) ExpiryTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
