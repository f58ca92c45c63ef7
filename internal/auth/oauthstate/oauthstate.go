// Package oauthstate keeps the in-flight OAuth2 authorization request in a
// signed cookie on the user agent, so no server side storage is needed
// between authorize and callback.
package oauthstate

import (
	"errors"
	"net/http"
	"time"

	"github.com/aussiebroadwan/sok/internal/auth/domain"
	"github.com/gorilla/securecookie"
)

const (
	CookieName = "oauth2_auth_request"
	CookiePath = "/oauth2"

	DefaultTTL = 3 * time.Minute
)

// MinHashKeySize is what securecookie recommends for HMAC-SHA256.
const MinHashKeySize = 32

var ErrHashKeyTooShort = errors.New("oauthstate: hash key must be at least 32 bytes")

type Options struct {
	// HashKey authenticates the cookie. Required.
	HashKey []byte
	// BlockKey, if set, also encrypts it (16, 24 or 32 bytes for AES).
	BlockKey []byte
	TTL      time.Duration
	Secure   bool
}

type Repository struct {
	codec  *securecookie.SecureCookie
	ttl    time.Duration
	secure bool
}

func New(opts Options) (*Repository, error) {
	if len(opts.HashKey) < MinHashKeySize {
		return nil, ErrHashKeyTooShort
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	var block []byte
	if len(opts.BlockKey) > 0 {
		block = opts.BlockKey
	}
	codec := securecookie.New(opts.HashKey, block)
	codec.MaxAge(int(ttl.Seconds()))
	codec.SetSerializer(securecookie.JSONEncoder{})

	return &Repository{codec: codec, ttl: ttl, secure: opts.Secure}, nil
}

// TTL is how long a saved state stays loadable.
func (r *Repository) TTL() time.Duration { return r.ttl }

// Save writes state as the request cookie, replacing any earlier one.
func (r *Repository) Save(w http.ResponseWriter, state domain.OAuth2RequestState) error {
	value, err := r.codec.Encode(CookieName, state)
	if err != nil {
		return err
	}
	http.SetCookie(w, r.cookie(value, int(r.ttl.Seconds())))
	return nil
}

// Load returns the state carried by the request. A missing, tampered or
// expired cookie all look the same: ok is false.
func (r *Repository) Load(req *http.Request) (domain.OAuth2RequestState, bool) {
	c, err := req.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return domain.OAuth2RequestState{}, false
	}

	var state domain.OAuth2RequestState
	if err := r.codec.Decode(CookieName, c.Value, &state); err != nil {
		return domain.OAuth2RequestState{}, false
	}
	if state.Nonce == "" || state.Provider == "" {
		return domain.OAuth2RequestState{}, false
	}
	return state, true
}

// Clear expires the cookie on the user agent.
func (r *Repository) Clear(w http.ResponseWriter) {
	http.SetCookie(w, r.cookie("", -1))
}

func (r *Repository) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     CookiePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   r.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
