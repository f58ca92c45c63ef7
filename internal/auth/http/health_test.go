package http_test

import (
	"net/http"
	"testing"

	"github.com/aussiebroadwan/sok/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

func TestLivez(t *testing.T) {
	env := newEnv(t)

	rec := env.do(http.MethodGet, "/livez", "")
	require.Equal(t, http.StatusOK, rec.Code)

	res := decode[authsdk.HealthResponse](t, rec)
	require.Equal(t, "ok", res.Status)
	require.Equal(t, "test", res.Version)
	require.NotEmpty(t, res.Uptime)
}

func TestReadyz(t *testing.T) {
	env := newEnv(t)

	rec := env.do(http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[authsdk.HealthResponse](t, rec)
	require.Equal(t, "ok", res.Status)
	require.NotNil(t, res.Checks)
	require.Equal(t, "ok", res.Checks.Store)
	require.Equal(t, "ok", res.Checks.Signer)

	require.NoError(t, env.store.Close())

	rec = env.do(http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	res = decode[authsdk.HealthResponse](t, rec)
	require.Equal(t, "degraded", res.Status)
	require.Contains(t, res.Checks.Store, "error")
	require.Equal(t, "ok", res.Checks.Signer)

	// liveness does not depend on the store
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/livez", "").Code)
}

func TestSwaggerDocs(t *testing.T) {
	env := newEnv(t)

	rec := env.do(http.MethodGet, "/swagger/doc.json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "SOK Authentication Service API")
	require.Contains(t, rec.Body.String(), "/auth/reissue")
}
