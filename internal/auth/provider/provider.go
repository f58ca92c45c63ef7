// Package provider adapts external OAuth2 identity providers to a common
// authorize/exchange interface.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/aussiebroadwan/sok/internal/auth/domain"
	"golang.org/x/oauth2"
)

// maxUserInfoSize caps how much of a userinfo response we read.
const maxUserInfoSize = 1 << 20

type Provider interface {
	Name() string

	// AuthCodeURL is where the user agent is sent to authenticate. state is
	// echoed back on the callback, verifier is the PKCE secret.
	AuthCodeURL(state, verifier string) string

	// Exchange redeems the authorization code and fetches the profile.
	// Failures wrap domain.ErrProvider.
	Exchange(ctx context.Context, code, verifier string) (domain.Profile, error)
}

// Config is the per-provider deployment configuration. Empty endpoint
// fields fall back to the provider's public endpoints.
type Config struct {
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	RedirectURL  string   `env:"REDIRECT_URL"`
	Scopes       []string `env:"SCOPES" envSeparator:","`

	AuthURL     string `env:"AUTH_URL"`
	TokenURL    string `env:"TOKEN_URL"`
	UserInfoURL string `env:"USERINFO_URL"`
}

// Enabled reports whether the provider has credentials configured.
func (c Config) Enabled() bool { return c.ClientID != "" }

type decodeFunc func(r io.Reader) (domain.Profile, error)

// OAuth2 is a Provider backed by golang.org/x/oauth2 and a JSON userinfo
// endpoint.
type OAuth2 struct {
	name        string
	cfg         oauth2.Config
	userInfoURL string
	decode      decodeFunc

	// HTTPClient is used for the token and userinfo calls when set.
	HTTPClient *http.Client
}

func newOAuth2(name string, c Config, endpoint oauth2.Endpoint, userInfoURL string, scopes []string, decode decodeFunc) *OAuth2 {
	if c.AuthURL != "" {
		endpoint.AuthURL = c.AuthURL
	}
	if c.TokenURL != "" {
		endpoint.TokenURL = c.TokenURL
	}
	if c.UserInfoURL != "" {
		userInfoURL = c.UserInfoURL
	}
	if len(c.Scopes) > 0 {
		scopes = c.Scopes
	}

	return &OAuth2{
		name: name,
		cfg: oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       slices.Clone(scopes),
		},
		userInfoURL: userInfoURL,
		decode:      decode,
	}
}

func (p *OAuth2) Name() string { return p.name }

func (p *OAuth2) AuthCodeURL(state, verifier string) string {
	return p.cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

func (p *OAuth2) Exchange(ctx context.Context, code, verifier string) (domain.Profile, error) {
	if p.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.HTTPClient)
	}

	tok, err := p.cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return domain.Profile{}, fmt.Errorf("%w: %s token exchange: %v", domain.ErrProvider, p.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("%w: %s userinfo request: %v", domain.ErrProvider, p.name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.cfg.Client(ctx, tok).Do(req)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("%w: %s userinfo: %v", domain.ErrProvider, p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Profile{}, fmt.Errorf("%w: %s userinfo returned %d", domain.ErrProvider, p.name, resp.StatusCode)
	}

	profile, err := p.decode(io.LimitReader(resp.Body, maxUserInfoSize))
	if err != nil {
		return domain.Profile{}, fmt.Errorf("%w: %s userinfo: %v", domain.ErrProvider, p.name, err)
	}
	if profile.Subject == "" {
		return domain.Profile{}, fmt.Errorf("%w: %s userinfo has no subject", domain.ErrProvider, p.name)
	}

	profile.Provider = p.name
	profile.Email = strings.TrimSpace(profile.Email)
	return profile, nil
}

// Registry looks providers up by name.
type Registry struct {
	providers map[string]Provider
	order     []string
}

func NewRegistry(ps ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(ps))}
	for _, p := range ps {
		r.Register(p)
	}
	return r
}

// Register adds p, replacing any provider of the same name.
func (r *Registry) Register(p Provider) {
	name := strings.ToLower(p.Name())
	if _, ok := r.providers[name]; !ok {
		r.order = append(r.order, name)
	}
	r.providers[name] = p
}

func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[strings.ToLower(name)]
	return p, ok
}

// Names lists registered providers in registration order.
func (r *Registry) Names() []string { return slices.Clone(r.order) }

var errEmptyBody = errors.New("empty body")

func decodeJSON(r io.Reader, v any) error {
	err := json.NewDecoder(r).Decode(v)
	if errors.Is(err, io.EOF) {
		return errEmptyBody
	}
	return err
}
