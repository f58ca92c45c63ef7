package auth_test

import (
	"io"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/sok/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestLivezEndpoint verifies the liveness check endpoint.
func TestLivezEndpoint(t *testing.T) {
	c := setupAuthContainer(t)
	client := authsdk.NewSDKClient(c.BaseURL)

	health, err := client.GetLiveness(t.Context())
	assertHealthy(t, health, err)
	require.Nil(t, health.Checks)
}

// TestReadyzEndpoint verifies the readiness check reports every dependency.
func TestReadyzEndpoint(t *testing.T) {
	c := setupAuthContainer(t)
	client := authsdk.NewSDKClient(c.BaseURL)

	health, err := client.GetReadiness(t.Context())
	assertHealthy(t, health, err)
	require.NotNil(t, health.Checks)
	require.Equal(t, "ok", health.Checks.Store)
	require.Equal(t, "ok", health.Checks.Signer)
}

// TestSwaggerDocs verifies the API documentation is served without a token.
func TestSwaggerDocs(t *testing.T) {
	c := setupAuthContainer(t)

	resp, err := http.Get(c.BaseURL + "/swagger/doc.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "/auth/login")
}

// TestMigrateVersion verifies the image ships with the schema applied.
func TestMigrateVersion(t *testing.T) {
	c := setupAuthContainer(t)
	require.Contains(t, c.cli(t, "migrate", "version"), "schema version 2")
}
