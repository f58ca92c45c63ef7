package app

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/sok/internal/auth/oauthstate"
	"github.com/aussiebroadwan/sok/internal/auth/provider"
	"github.com/aussiebroadwan/sok/pkg/httpx"
	"github.com/caarlos0/env/v11"
)

const (
	AlgorithmHS256 = "HS256"
	AlgorithmEdDSA = "EdDSA"

	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

type Config struct {
	Issuer    string `env:"AUTH_ISSUER" envDefault:"sok-auth"`
	Algorithm string `env:"AUTH_ALGORITHM" envDefault:"HS256"` // HS256 or EdDSA
	KeyID     string `env:"AUTH_KEY_ID" envDefault:"sok-auth-key-001"`

	// SigningSecret is the HS256 secret, at least 32 bytes. SigningKeyFile
	// holds either the secret or, for EdDSA, a PKCS8 PEM key. With neither
	// set under HS256 a random secret is generated on startup.
	SigningSecret  string `env:"AUTH_SIGNING_SECRET"`
	SigningKeyFile string `env:"AUTH_SIGNING_KEY_FILE"`

	AccessTTL  time.Duration `env:"AUTH_ACCESS_TTL" envDefault:"15m"`
	RefreshTTL time.Duration `env:"AUTH_REFRESH_TTL" envDefault:"168h"`

	// StrictRotation makes concurrent reissues of one refresh token
	// resolve to a single winner.
	StrictRotation bool `env:"AUTH_STRICT_ROTATION"`
	// RecheckPrincipal reloads the user on reissue so suspended accounts
	// stop refreshing.
	RecheckPrincipal bool `env:"AUTH_RECHECK_PRINCIPAL" envDefault:"true"`

	StoreDriver   string `env:"AUTH_STORE_DRIVER" envDefault:"sqlite"` // sqlite or memory
	StoreCapacity int    `env:"AUTH_STORE_CAPACITY"`
	DatabaseFile  string `env:"AUTH_DATABASE_FILE" envDefault:"auth.db"`
	PepperFile    string `env:"AUTH_PEPPER_FILE" envDefault:"pepper"`

	OAuth2 OAuth2Config `envPrefix:"AUTH_OAUTH2_"`

	RateLimits httpx.RateLimits `envPrefix:"RATELIMIT_"`

	Env                  string        `env:"ENV" envDefault:"dev"`
	LogLevel             string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat            string        `env:"LOG_FORMAT" envDefault:"json"`
	Port                 int           `env:"PORT" envDefault:"8080"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`
}

type OAuth2Config struct {
	// State cookie keys. A missing hash key is generated on startup, which
	// only loses flows in flight across a restart.
	StateHashKey  string        `env:"STATE_HASH_KEY"`
	StateBlockKey string        `env:"STATE_BLOCK_KEY"`
	StateTTL      time.Duration `env:"STATE_TTL" envDefault:"3m"`

	FailureURL       string   `env:"FAILURE_URL"`
	DefaultRedirect  string   `env:"DEFAULT_REDIRECT"`
	AllowedRedirects []string `env:"ALLOWED_REDIRECTS" envSeparator:","`
	TokenDelivery    string   `env:"TOKEN_DELIVERY" envDefault:"query"` // query or cookie
	CookieSecure     bool     `env:"COOKIE_SECURE" envDefault:"true"`

	Google provider.Config `envPrefix:"GOOGLE_"`
	GitHub provider.Config `envPrefix:"GITHUB_"`
	Kakao  provider.Config `envPrefix:"KAKAO_"`
}

// Enabled reports whether at least one provider has credentials.
func (c OAuth2Config) Enabled() bool {
	return c.Google.Enabled() || c.GitHub.Enabled() || c.Kakao.Enabled()
}

// LoadConfig reads the process environment.
func LoadConfig() (Config, error) {
	return loadConfig(env.Options{})
}

func loadConfig(opts env.Options) (Config, error) {
	// Pre-populated so unset RATELIMIT_* variables keep the defaults.
	cfg := Config{RateLimits: httpx.DefaultRateLimits()}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.OAuth2.AllowedRedirects = trimCSV(cfg.OAuth2.AllowedRedirects)
	for _, p := range []*provider.Config{&cfg.OAuth2.Google, &cfg.OAuth2.GitHub, &cfg.OAuth2.Kakao} {
		p.Scopes = trimCSV(p.Scopes)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error

	switch c.Algorithm {
	case AlgorithmHS256:
		if c.SigningSecret != "" && len(c.SigningSecret) < 32 {
			errs = append(errs, errors.New("AUTH_SIGNING_SECRET must be at least 32 bytes"))
		}
	case AlgorithmEdDSA:
		if c.SigningKeyFile == "" {
			errs = append(errs, errors.New("AUTH_SIGNING_KEY_FILE is required for EdDSA"))
		}
	default:
		errs = append(errs, fmt.Errorf("AUTH_ALGORITHM %q is not supported, use HS256 or EdDSA", c.Algorithm))
	}

	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		errs = append(errs, errors.New("AUTH_ACCESS_TTL and AUTH_REFRESH_TTL must be positive"))
	} else if c.AccessTTL >= c.RefreshTTL {
		errs = append(errs, errors.New("AUTH_ACCESS_TTL must be shorter than AUTH_REFRESH_TTL"))
	}

	switch c.StoreDriver {
	case StoreSQLite:
		if c.DatabaseFile == "" {
			errs = append(errs, errors.New("AUTH_DATABASE_FILE is required for the sqlite store"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("AUTH_STORE_DRIVER %q is not supported, use sqlite or memory", c.StoreDriver))
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d is out of range", c.Port))
	}

	if c.OAuth2.Enabled() {
		errs = append(errs, c.OAuth2.validate()...)
	}

	return errors.Join(errs...)
}

func (c OAuth2Config) validate() []error {
	var errs []error

	if c.StateHashKey != "" && len(c.StateHashKey) < oauthstate.MinHashKeySize {
		errs = append(errs, fmt.Errorf("AUTH_OAUTH2_STATE_HASH_KEY must be at least %d bytes", oauthstate.MinHashKeySize))
	}
	switch len(c.StateBlockKey) {
	case 0, 16, 24, 32:
	default:
		errs = append(errs, errors.New("AUTH_OAUTH2_STATE_BLOCK_KEY must be 16, 24 or 32 bytes"))
	}
	if c.StateTTL <= 0 {
		errs = append(errs, errors.New("AUTH_OAUTH2_STATE_TTL must be positive"))
	}

	if !absoluteURL(c.DefaultRedirect) {
		errs = append(errs, errors.New("AUTH_OAUTH2_DEFAULT_REDIRECT must be an absolute URL"))
	}
	if !absoluteURL(c.FailureURL) {
		errs = append(errs, errors.New("AUTH_OAUTH2_FAILURE_URL must be an absolute URL"))
	}
	for _, r := range c.AllowedRedirects {
		if !absoluteURL(r) {
			errs = append(errs, fmt.Errorf("AUTH_OAUTH2_ALLOWED_REDIRECTS entry %q must be an absolute URL", r))
		}
	}

	switch c.TokenDelivery {
	case "query", "cookie":
	default:
		errs = append(errs, fmt.Errorf("AUTH_OAUTH2_TOKEN_DELIVERY %q is not supported, use query or cookie", c.TokenDelivery))
	}

	for name, p := range map[string]provider.Config{"GOOGLE": c.Google, "GITHUB": c.GitHub, "KAKAO": c.Kakao} {
		if p.Enabled() && p.RedirectURL == "" {
			errs = append(errs, fmt.Errorf("AUTH_OAUTH2_%s_REDIRECT_URL is required", name))
		}
	}
	return errs
}

func absoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// trimCSV removes empty entries from a string slice.
func trimCSV(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
