package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed  = errors.New("jwtx: malformed token")
	ErrInvalidSig = errors.New("jwtx: invalid signature")
	ErrExpired    = errors.New("jwtx: token expired")
)

// Codec issues and parses signed tokens with a single process-wide signer.
// It holds no mutable state once built and is safe for concurrent use.
type Codec struct {
	signer Signer
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

// Option configures a Codec.
type Option func(*Codec)

// WithIssuer sets the "iss" claim on issued tokens and requires it on
// parsed ones.
func WithIssuer(iss string) Option {
	return func(c *Codec) { c.issuer = iss }
}

// WithClock overrides the time source, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec builds a codec around the given signer.
func NewCodec(signer Signer, opts ...Option) (*Codec, error) {
	if signer == nil {
		return nil, errors.New("jwtx: nil signer")
	}
	if err := signer.Validate(); err != nil {
		return nil, err
	}

	c := &Codec{signer: signer, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}

	popts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signer.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		// one canonical encoding per token, no slack in the padding bits
		jwt.WithStrictDecoding(),
	}
	if c.issuer != "" {
		popts = append(popts, jwt.WithIssuer(c.issuer))
	}
	c.parser = jwt.NewParser(popts...)

	return c, nil
}

// Alg reports the signing algorithm in use.
func (c *Codec) Alg() string { return c.signer.Alg() }

// Issue stamps iat/nbf/exp, issuer and a fresh jti onto the claims and signs
// them. Every call yields a distinct token even for identical input.
func (c *Codec) Issue(claims Claims, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("jwtx: ttl must be positive, got %s", ttl)
	}
	if claims.Subject == "" {
		return "", errors.New("jwtx: subject is required")
	}

	// NumericDate has second precision, truncate so that what we sign is
	// exactly what a parser will read back.
	now := c.now().UTC().Truncate(time.Second)

	claims.Issuer = c.issuer
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.NotBefore = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	claims.ID = NewJTI()

	return c.signer.Sign(claims)
}

// Parse verifies the token and returns its claims. Failures are one of
// ErrMalformed, ErrInvalidSig or ErrExpired. The signature is checked first
// so a tampered token never reports as merely expired.
func (c *Codec) Parse(raw string) (Claims, error) {
	if raw == "" {
		return Claims{}, ErrMalformed
	}

	var claims Claims
	_, err := c.parser.ParseWithClaims(raw, &claims, c.keyFunc)
	if err != nil {
		return Claims{}, classify(err)
	}

	// jwt treats exp as exclusive of the current second, we want the token
	// dead from the instant it reaches exp.
	if !c.now().Before(claims.ExpiryTime()) {
		return Claims{}, ErrExpired
	}

	return claims, nil
}

func (c *Codec) keyFunc(t *jwt.Token) (any, error) {
	if kid, ok := t.Header["kid"].(string); ok && kid != c.signer.KID() {
		return nil, fmt.Errorf("jwtx: unknown kid %q", kid)
	}
	return c.signer.VerifyKey(), nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSig, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		// nbf in the future, wrong issuer, missing exp, undecodable claims
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
