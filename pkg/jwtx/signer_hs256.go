package jwtx

import (
	"errors"
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// MinHS256SecretSize is the smallest secret we accept for HMAC signing.
const MinHS256SecretSize = 32

// HS256Signer implements the Signer interface using HMAC-SHA256.
type HS256Signer struct {
	kid    string
	secret []byte
}

func newHS256Signer(kid string, secret []byte) (*HS256Signer, error) {
	if len(secret) < MinHS256SecretSize {
		return nil, errors.New("jwtx: HS256 secret must be at least 32 bytes")
	}
	return &HS256Signer{kid: kid, secret: slices.Clone(secret)}, nil
}

func (s *HS256Signer) Alg() string    { return jwt.SigningMethodHS256.Alg() }
func (s *HS256Signer) KID() string    { return s.kid }
func (s *HS256Signer) VerifyKey() any { return s.secret }

// Sign turns the claims into a signed JWT string.
func (s *HS256Signer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.secret)
}

func (s *HS256Signer) Validate() error {
	if len(s.secret) < MinHS256SecretSize {
		return errors.New("jwtx: HS256 secret too short")
	}
	return nil
}
