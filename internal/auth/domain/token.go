package domain

import "time"

// TokenPair is what login and reissue hand back, the short-lived access
// token and the longer lived refresh token.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string // always "Bearer"
	ExpiresIn        time.Duration
	RefreshExpiresIn time.Duration
}

// SessionRecord is the server side half of a refresh token. There is one per
// session key and it only ever holds the fingerprint of the newest token.
type SessionRecord struct {
	Key       string
	TokenHash string // base64url SHA-256 of the refresh token
	ExpiresAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the record is past its TTL at now.
func (r SessionRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
