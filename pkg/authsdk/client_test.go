package authsdk_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/aussiebroadwan/sok/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// fakeService hands out numbered tokens and only accepts the newest
// refresh token.
type fakeService struct {
	gen     atomic.Int64
	current atomic.Value // string
}

func (f *fakeService) next(w http.ResponseWriter, expiresIn int) {
	n := strconv.FormatInt(f.gen.Add(1), 10)
	refresh := "refresh-" + n
	f.current.Store(refresh)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(authsdk.TokenResponse{
		AccessToken:  "access-" + n,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    expiresIn,
	})
}

func newFakeServer(t *testing.T, expiresIn int) (*httptest.Server, *fakeService) {
	t.Helper()
	f := &fakeService{}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req authsdk.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "pw" {
			authsdk.ErrInvalidCredentials.WriteError(w)
			return
		}
		f.next(w, expiresIn)
	})

	mux.HandleFunc("POST /auth/reissue", func(w http.ResponseWriter, r *http.Request) {
		var req authsdk.ReissueRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.RefreshToken != f.current.Load() {
			authsdk.ErrRevoked.WriteError(w)
			return
		}
		f.next(w, expiresIn)
	})

	mux.HandleFunc("GET /v1/me", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(authsdk.MeResponse{
			Sub:         r.Header.Get("Authorization"),
			Authorities: []string{"USER"},
			Status:      "ACTIVE",
		})
	})

	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		f.current.Store("")
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /livez", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(authsdk.HealthResponse{Status: "ok"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, f
}

func TestLoginAndMe(t *testing.T) {
	srv, _ := newFakeServer(t, 900)
	client := authsdk.NewSDKClient(srv.URL + "/")
	ctx := context.Background()

	session, err := client.AuthenticateWithPassword(ctx, "a@example.com", "pw")
	require.NoError(t, err)
	require.Equal(t, "access-1", session.AccessToken())

	me, err := session.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, "Bearer access-1", me.Sub)

	_, err = client.AuthenticateWithPassword(ctx, "a@example.com", "nope")
	require.ErrorIs(t, err, authsdk.ErrInvalidCredentials)
	require.True(t, authsdk.IsCode(err, authsdk.ErrorCodeInvalidCredentials))
}

func TestSessionRefreshesExpiredToken(t *testing.T) {
	// an expires_in inside the refresh skew is stale straight away
	srv, _ := newFakeServer(t, 1)
	client := authsdk.NewSDKClient(srv.URL)
	ctx := context.Background()

	session, err := client.AuthenticateWithPassword(ctx, "a@example.com", "pw")
	require.NoError(t, err)

	me, err := session.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, "Bearer access-2", me.Sub)
	require.Equal(t, "refresh-2", session.RefreshToken())
}

func TestReissueRotation(t *testing.T) {
	srv, _ := newFakeServer(t, 900)
	client := authsdk.NewSDKClient(srv.URL)
	ctx := context.Background()

	tok, err := client.Login(ctx, "a@example.com", "pw")
	require.NoError(t, err)

	next, err := client.Reissue(ctx, tok.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, tok.RefreshToken, next.RefreshToken)

	_, err = client.Reissue(ctx, tok.RefreshToken)
	require.ErrorIs(t, err, authsdk.ErrRevoked)
}

func TestLogout(t *testing.T) {
	srv, _ := newFakeServer(t, 900)
	client := authsdk.NewSDKClient(srv.URL)
	ctx := context.Background()

	session, err := client.AuthenticateWithPassword(ctx, "a@example.com", "pw")
	require.NoError(t, err)
	require.NoError(t, session.Logout(ctx))
	require.Empty(t, session.RefreshToken())
	require.ErrorIs(t, session.Refresh(ctx), authsdk.ErrNoRefreshToken)
}

func TestNonJSONErrorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	_, err := authsdk.NewSDKClient(srv.URL).GetLiveness(context.Background())
	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	require.Equal(t, authsdk.ErrorCodeServerError, apiErr.Code)
}

func TestHealth(t *testing.T) {
	srv, _ := newFakeServer(t, 900)
	h, err := authsdk.NewSDKClient(srv.URL).GetLiveness(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", h.Status)
}
