package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/sok/internal/auth/domain"
	"github.com/aussiebroadwan/sok/internal/auth/service"
	"github.com/aussiebroadwan/sok/pkg/authsdk"
	"github.com/aussiebroadwan/sok/pkg/httpx"
	"github.com/aussiebroadwan/sok/pkg/slogx"
)

// HeaderRefreshToken is an alternative to the JSON body on reissue.
const HeaderRefreshToken = "X-Refresh-Token"

// Cookie names used when tokens are delivered as cookies.
const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

type TokenHandler struct {
	TokenService *service.TokenService
	UserService  *service.UserService

	// Cookies also sets the pair as cookies on reissue when the refresh
	// token arrived in one.
	Cookies *TokenCookies
}

// HandleLogin godoc
//
//	@Summary		Password login
//	@Description	Exchanges email and password for an access and refresh token pair.
//	@Description	Any earlier refresh token of the same user stops working.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.TokenResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"invalid_request"
//	@Failure		401		{object}	authsdk.ErrorResponse	"invalid_credentials"
//	@Failure		403		{object}	authsdk.ErrorResponse	"inactive_user"
//	@Failure		429		{object}	authsdk.ErrorResponse	"rate_limit_exceeded"
//	@Failure		503		{object}	authsdk.ErrorResponse	"temporarily_unavailable"
//	@Header			200		{string}	Cache-Control			"no-store"
//	@Router			/auth/login [post]
func (h *TokenHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, "email and password are required").WriteError(w)
		return
	}

	p, err := h.UserService.AuthenticateLocal(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAuthError(w, r, err)
		return
	}

	pair, err := h.TokenService.Login(r.Context(), p)
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResponse(pair))
}

// HandleReissue godoc
//
//	@Summary		Rotate refresh token
//	@Description	Trades the current refresh token for a new pair. The presented token is dead afterwards,
//	@Description	presenting it again answers 401 revoked. The token is read from the JSON body or the
//	@Description	X-Refresh-Token header.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body			body		authsdk.ReissueRequest	false	"Refresh token"
//	@Param			X-Refresh-Token	header		string					false	"Refresh token"
//	@Success		200				{object}	authsdk.TokenResponse
//	@Failure		400				{object}	authsdk.ErrorResponse	"invalid_request"
//	@Failure		401				{object}	authsdk.ErrorResponse	"revoked or unauthenticated"
//	@Failure		503				{object}	authsdk.ErrorResponse	"temporarily_unavailable"
//	@Header			200				{string}	Cache-Control			"no-store"
//	@Router			/auth/reissue [post]
func (h *TokenHandler) HandleReissue(w http.ResponseWriter, r *http.Request) {
	refresh := strings.TrimSpace(r.Header.Get(HeaderRefreshToken))
	fromCookie := false
	if refresh == "" {
		var req authsdk.ReissueRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			authsdk.ErrInvalidRequest.WriteError(w)
			return
		}
		refresh = strings.TrimSpace(req.RefreshToken)
	}
	if refresh == "" && h.Cookies != nil {
		if c, err := r.Cookie(RefreshTokenCookie); err == nil {
			refresh, fromCookie = c.Value, true
		}
	}
	if refresh == "" {
		authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, "refresh_token is required").WriteError(w)
		return
	}

	pair, err := h.TokenService.Reissue(r.Context(), refresh)
	if err != nil {
		if fromCookie && errors.Is(err, domain.ErrRevoked) {
			h.Cookies.Clear(w)
		}
		writeAuthError(w, r, err)
		return
	}

	if fromCookie {
		h.Cookies.Set(w, pair)
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResponse(pair))
}

// HandleLogout godoc
//
//	@Summary		Logout
//	@Description	Invalidates the caller's refresh token. Access tokens already issued stay valid until they expire.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Success		204
//	@Failure		401	{object}	authsdk.ErrorResponse	"unauthenticated"
//	@Failure		503	{object}	authsdk.ErrorResponse	"temporarily_unavailable"
//	@Router			/auth/logout [post]
func (h *TokenHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		rejectUnauthenticated(w, "")
		return
	}

	if err := h.TokenService.Logout(r.Context(), p.SubjectID); err != nil {
		writeAuthError(w, r, err)
		return
	}
	if h.Cookies != nil {
		h.Cookies.Clear(w)
	}
	w.WriteHeader(http.StatusNoContent)
}

func tokenResponse(p *domain.TokenPair) authsdk.TokenResponse {
	return authsdk.TokenResponse{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		TokenType:        p.TokenType,
		ExpiresIn:        int(p.ExpiresIn.Seconds()),
		RefreshExpiresIn: int(p.RefreshExpiresIn.Seconds()),
	}
}

// writeAuthError maps service errors onto API errors. Token failures all
// collapse into "unauthenticated" so callers learn nothing about why.
func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		authsdk.ErrInvalidCredentials.WriteError(w)
	case errors.Is(err, domain.ErrInactive):
		authsdk.ErrInactiveUser.WriteError(w)
	case errors.Is(err, domain.ErrRevoked):
		authsdk.ErrRevoked.WriteError(w)
	case errors.Is(err, domain.ErrMalformed),
		errors.Is(err, domain.ErrBadSignature),
		errors.Is(err, domain.ErrExpired),
		errors.Is(err, domain.ErrUnauthenticated):
		authsdk.ErrUnauthenticated.WriteError(w)
	case errors.Is(err, domain.ErrUnavailable):
		w.Header().Set("Retry-After", "1")
		authsdk.ErrTemporarilyUnavailable.WriteError(w)
	default:
		slogx.FromContext(r.Context()).Error("unexpected_auth_error", "error", err)
		authsdk.ErrServerError.WriteError(w)
	}
}
