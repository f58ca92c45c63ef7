package app

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/sok/pkg/httpx"
	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, vars map[string]string) (Config, error) {
	t.Helper()
	return loadConfig(env.Options{Environment: vars})
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := parse(t, map[string]string{})
	require.NoError(t, err)

	require.Equal(t, "sok-auth", cfg.Issuer)
	require.Equal(t, AlgorithmHS256, cfg.Algorithm)
	require.Equal(t, 15*time.Minute, cfg.AccessTTL)
	require.Equal(t, 7*24*time.Hour, cfg.RefreshTTL)
	require.False(t, cfg.StrictRotation)
	require.True(t, cfg.RecheckPrincipal)
	require.Equal(t, StoreSQLite, cfg.StoreDriver)
	require.Equal(t, "auth.db", cfg.DatabaseFile)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 10*time.Second, cfg.ShutdownGracePeriod)
	require.Equal(t, time.Hour, cfg.HousekeepingInterval)
	require.Equal(t, httpx.DefaultRateLimits(), cfg.RateLimits)

	require.False(t, cfg.OAuth2.Enabled())
	require.Equal(t, 3*time.Minute, cfg.OAuth2.StateTTL)
	require.Equal(t, "query", cfg.OAuth2.TokenDelivery)
	require.True(t, cfg.OAuth2.CookieSecure)
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := parse(t, map[string]string{
		"AUTH_ISSUER":                      "https://auth.example.com",
		"AUTH_ALGORITHM":                   "EdDSA",
		"AUTH_SIGNING_KEY_FILE":            "/keys/ed25519.pem",
		"AUTH_ACCESS_TTL":                  "5m",
		"AUTH_REFRESH_TTL":                 "24h",
		"AUTH_STRICT_ROTATION":             "true",
		"AUTH_STORE_DRIVER":                "memory",
		"RATELIMIT_STRICT_REQUESTS":        "50",
		"RATELIMIT_STRICT_WINDOW":          "30s",
		"RATELIMIT_MODERATE_BURST":         "7",
		"PORT":                             "9090",
		"AUTH_OAUTH2_DEFAULT_REDIRECT":     "https://app.example.com/done",
		"AUTH_OAUTH2_FAILURE_URL":          "https://app.example.com/failed",
		"AUTH_OAUTH2_ALLOWED_REDIRECTS":    "https://app.example.com, ,http://localhost:5173/cb",
		"AUTH_OAUTH2_TOKEN_DELIVERY":       "cookie",
		"AUTH_OAUTH2_GOOGLE_CLIENT_ID":     "g-id",
		"AUTH_OAUTH2_GOOGLE_CLIENT_SECRET": "g-secret",
		"AUTH_OAUTH2_GOOGLE_REDIRECT_URL":  "https://auth.example.com/oauth2/callback/google",
		"AUTH_OAUTH2_GOOGLE_SCOPES":        "openid, email",
		"AUTH_OAUTH2_KAKAO_CLIENT_ID":      "k-id",
		"AUTH_OAUTH2_KAKAO_REDIRECT_URL":   "https://auth.example.com/oauth2/callback/kakao",
	})
	require.NoError(t, err)

	require.Equal(t, AlgorithmEdDSA, cfg.Algorithm)
	require.Equal(t, 5*time.Minute, cfg.AccessTTL)
	require.True(t, cfg.StrictRotation)
	require.Equal(t, StoreMemory, cfg.StoreDriver)
	require.Equal(t, 9090, cfg.Port)

	// overridden fields change, the rest keep their defaults
	require.Equal(t, 50, cfg.RateLimits.Strict.Requests)
	require.Equal(t, 30*time.Second, cfg.RateLimits.Strict.Window)
	require.Equal(t, httpx.DefaultRateLimits().Strict.Burst, cfg.RateLimits.Strict.Burst)
	require.Equal(t, 7, cfg.RateLimits.Moderate.Burst)
	require.Equal(t, httpx.DefaultRateLimits().Public, cfg.RateLimits.Public)

	require.True(t, cfg.OAuth2.Enabled())
	require.Equal(t, []string{"https://app.example.com", "http://localhost:5173/cb"}, cfg.OAuth2.AllowedRedirects)
	require.Equal(t, "cookie", cfg.OAuth2.TokenDelivery)
	require.Equal(t, "g-id", cfg.OAuth2.Google.ClientID)
	require.Equal(t, "g-secret", cfg.OAuth2.Google.ClientSecret)
	require.Equal(t, []string{"openid", "email"}, cfg.OAuth2.Google.Scopes)
	require.True(t, cfg.OAuth2.Kakao.Enabled())
	require.False(t, cfg.OAuth2.GitHub.Enabled())
}

func TestLoadConfigRejects(t *testing.T) {
	withOAuth2 := func(extra map[string]string) map[string]string {
		vars := map[string]string{
			"AUTH_OAUTH2_DEFAULT_REDIRECT":    "https://app.example.com/done",
			"AUTH_OAUTH2_FAILURE_URL":         "https://app.example.com/failed",
			"AUTH_OAUTH2_GITHUB_CLIENT_ID":    "gh-id",
			"AUTH_OAUTH2_GITHUB_REDIRECT_URL": "https://auth.example.com/oauth2/callback/github",
		}
		for k, v := range extra {
			vars[k] = v
		}
		return vars
	}

	tests := []struct {
		name string
		vars map[string]string
		want string
	}{
		{"unknown algorithm", map[string]string{"AUTH_ALGORITHM": "RS256"}, "AUTH_ALGORITHM"},
		{"short secret", map[string]string{"AUTH_SIGNING_SECRET": "short"}, "AUTH_SIGNING_SECRET"},
		{"eddsa without key", map[string]string{"AUTH_ALGORITHM": "EdDSA"}, "AUTH_SIGNING_KEY_FILE"},
		{"access outlives refresh", map[string]string{"AUTH_ACCESS_TTL": "2h", "AUTH_REFRESH_TTL": "1h"}, "shorter"},
		{"zero ttl", map[string]string{"AUTH_ACCESS_TTL": "0s"}, "positive"},
		{"unknown store", map[string]string{"AUTH_STORE_DRIVER": "redis"}, "AUTH_STORE_DRIVER"},
		{"bad port", map[string]string{"PORT": "70000"}, "PORT"},
		{"not a duration", map[string]string{"AUTH_ACCESS_TTL": "soon"}, "parse env"},
		{"oauth2 without default redirect", withOAuth2(map[string]string{"AUTH_OAUTH2_DEFAULT_REDIRECT": ""}), "DEFAULT_REDIRECT"},
		{"oauth2 without failure url", withOAuth2(map[string]string{"AUTH_OAUTH2_FAILURE_URL": ""}), "FAILURE_URL"},
		{"relative failure url", withOAuth2(map[string]string{"AUTH_OAUTH2_FAILURE_URL": "/failed"}), "FAILURE_URL"},
		{"relative allowed redirect", withOAuth2(map[string]string{"AUTH_OAUTH2_ALLOWED_REDIRECTS": "/callback"}), "ALLOWED_REDIRECTS"},
		{"unknown delivery", withOAuth2(map[string]string{"AUTH_OAUTH2_TOKEN_DELIVERY": "fragment"}), "TOKEN_DELIVERY"},
		{"short hash key", withOAuth2(map[string]string{"AUTH_OAUTH2_STATE_HASH_KEY": "short"}), "STATE_HASH_KEY"},
		{"bad block key", withOAuth2(map[string]string{"AUTH_OAUTH2_STATE_BLOCK_KEY": "12345"}), "STATE_BLOCK_KEY"},
		{"provider without redirect", withOAuth2(map[string]string{"AUTH_OAUTH2_GITHUB_REDIRECT_URL": ""}), "GITHUB_REDIRECT_URL"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := parse(t, tc.vars)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestValidateReportsEverything(t *testing.T) {
	cfg, err := parse(t, map[string]string{})
	require.NoError(t, err)

	cfg.Algorithm = "none"
	cfg.StoreDriver = "redis"
	err = cfg.Validate()
	require.Error(t, err)
	require.Len(t, strings.Split(err.Error(), "\n"), 2)
}

func TestSQLiteDSN(t *testing.T) {
	require.Equal(t, ":memory:", sqliteDSN(":memory:"))
	dsn := sqliteDSN("/data/auth.db")
	require.True(t, strings.HasPrefix(dsn, "file:/data/auth.db?"))
	require.Contains(t, dsn, "_pragma=journal_mode(WAL)")
	require.Contains(t, dsn, "_pragma=busy_timeout(5000)")
}
