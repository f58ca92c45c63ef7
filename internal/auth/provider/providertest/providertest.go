// Package providertest runs a minimal OAuth2 authorization server with PKCE
// verification for exercising provider.OAuth2 and the flows built on it.
package providertest

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/aussiebroadwan/sok/internal/auth/provider"
	"github.com/aussiebroadwan/sok/pkg/cryptox"
)

const (
	ClientID     = "test-client"
	ClientSecret = "test-secret"
)

type grant struct {
	challenge string
	userinfo  string
}

type Server struct {
	*httptest.Server

	mu     sync.Mutex
	codes  map[string]grant
	tokens map[string]string

	// UserInfoStatus, when non-zero, replaces the userinfo response code.
	UserInfoStatus int
}

// New starts a server that is closed with the test.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{codes: map[string]grant{}, tokens: map[string]string{}}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", s.token)
	mux.HandleFunc("GET /userinfo", s.userinfo)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Config points a provider at this server.
func (s *Server) Config(redirectURL string) provider.Config {
	return provider.Config{
		ClientID:     ClientID,
		ClientSecret: ClientSecret,
		RedirectURL:  redirectURL,
		AuthURL:      s.URL + "/authorize",
		TokenURL:     s.URL + "/token",
		UserInfoURL:  s.URL + "/userinfo",
	}
}

// Approve plays the user consenting at authURL. It returns the code and
// state the provider would send back to the callback, and arranges for
// userinfo to be served for the resulting access token.
func (s *Server) Approve(t testing.TB, authURL, userinfo string) (code, state string) {
	t.Helper()

	u, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	q := u.Query()
	if q.Get("code_challenge_method") != "S256" || q.Get("code_challenge") == "" {
		t.Fatalf("auth url has no S256 challenge: %s", authURL)
	}

	code = cryptox.MustGenerateToken(cryptox.TokenSize128)
	s.mu.Lock()
	s.codes[code] = grant{challenge: q.Get("code_challenge"), userinfo: userinfo}
	s.mu.Unlock()
	return code, q.Get("state")
}

func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		tokenError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	id, secret, ok := r.BasicAuth()
	if !ok {
		id, secret = r.PostForm.Get("client_id"), r.PostForm.Get("client_secret")
	}
	if id != ClientID || secret != ClientSecret {
		tokenError(w, http.StatusUnauthorized, "invalid_client")
		return
	}

	code := r.PostForm.Get("code")
	s.mu.Lock()
	g, ok := s.codes[code]
	delete(s.codes, code)
	s.mu.Unlock()
	if !ok || r.PostForm.Get("grant_type") != "authorization_code" {
		tokenError(w, http.StatusBadRequest, "invalid_grant")
		return
	}

	sum := sha256.Sum256([]byte(r.PostForm.Get("code_verifier")))
	if base64.RawURLEncoding.EncodeToString(sum[:]) != g.challenge {
		tokenError(w, http.StatusBadRequest, "invalid_grant")
		return
	}

	at := cryptox.MustGenerateToken(cryptox.TokenSize128)
	s.mu.Lock()
	s.tokens[at] = g.userinfo
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": at,
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}

func (s *Server) userinfo(w http.ResponseWriter, r *http.Request) {
	if s.UserInfoStatus != 0 {
		w.WriteHeader(s.UserInfoStatus)
		return
	}

	at, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	body, ok := s.tokens[at]
	s.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func tokenError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}
