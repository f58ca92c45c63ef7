package http

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/aussiebroadwan/sok/internal/auth/domain"
	"github.com/aussiebroadwan/sok/internal/auth/oauthstate"
	"github.com/aussiebroadwan/sok/internal/auth/service"
	"github.com/aussiebroadwan/sok/pkg/authsdk"
	"github.com/aussiebroadwan/sok/pkg/slogx"
)

// TokenDelivery is how a successful OAuth2 callback hands the pair over.
type TokenDelivery string

const (
	DeliverQuery  TokenDelivery = "query"
	DeliverCookie TokenDelivery = "cookie"
)

// TokenCookies writes the token pair as HttpOnly cookies. The refresh
// cookie is scoped to /auth so it only travels to /auth/reissue and
// /auth/logout. The legacy /api/reissue alias takes the token in the body
// or X-Refresh-Token header only.
type TokenCookies struct {
	Secure bool
}

func (c *TokenCookies) Set(w http.ResponseWriter, p *domain.TokenPair) {
	http.SetCookie(w, c.cookie(AccessTokenCookie, p.AccessToken, "/", int(p.ExpiresIn.Seconds())))
	http.SetCookie(w, c.cookie(RefreshTokenCookie, p.RefreshToken, "/auth", int(p.RefreshExpiresIn.Seconds())))
}

func (c *TokenCookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(AccessTokenCookie, "", "/", -1))
	http.SetCookie(w, c.cookie(RefreshTokenCookie, "", "/auth", -1))
}

func (c *TokenCookies) cookie(name, value, path string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

type OAuth2Handler struct {
	OAuth2Service *service.OAuth2Service
	States        *oauthstate.Repository

	// FailureURL receives every failed flow as ?error=<kind>. Empty falls
	// back to the service's DefaultRedirect.
	FailureURL string
	Delivery   TokenDelivery
	Cookies    *TokenCookies
}

// HandleAuthorize godoc
//
//	@Summary		Start OAuth2 login
//	@Description	Redirects the user agent to the identity provider. The pending request travels in a
//	@Description	signed oauth2_auth_request cookie scoped to /oauth2.
//	@Tags			OAuth2
//	@Param			provider		path	string	false	"Provider name (google, github, kakao)"
//	@Param			provider		query	string	false	"Provider name when not in the path"
//	@Param			redirect_uri	query	string	false	"Where to send the user agent afterwards, must be allow-listed"
//	@Success		302
//	@Router			/oauth2/authorize/{provider} [get]
func (h *OAuth2Handler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("provider")
	if name == "" {
		name = r.URL.Query().Get("provider")
	}

	authURL, state, err := h.OAuth2Service.Begin(r.Context(), name, r.URL.Query().Get("redirect_uri"))
	if err != nil {
		code := authsdk.ErrorCodeServerError
		if errors.Is(err, service.ErrUnknownProvider) || errors.Is(err, service.ErrRedirectNotAllowed) {
			code = authsdk.ErrorCodeInvalidRequest
		}
		h.fail(w, r, code)
		return
	}

	if err := h.States.Save(w, state); err != nil {
		slogx.FromContext(r.Context()).Error("oauth2_state_save_failed", "error", err)
		h.fail(w, r, authsdk.ErrorCodeServerError)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleCallback godoc
//
//	@Summary		OAuth2 callback
//	@Description	Completes the flow started by authorize. On success the user agent is redirected to the
//	@Description	requested redirect_uri with the tokens, on any failure to the failure page with ?error=<kind>.
//	@Tags			OAuth2
//	@Param			provider	path	string	false	"Provider name"
//	@Param			code		query	string	false	"Authorization code"
//	@Param			state		query	string	false	"State nonce"
//	@Param			error		query	string	false	"Provider reported error"
//	@Success		302
//	@Router			/oauth2/callback/{provider} [get]
func (h *OAuth2Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	var state *domain.OAuth2RequestState
	if st, ok := h.States.Load(r); ok {
		state = &st
	}
	// single use regardless of outcome
	h.States.Clear(w)

	q := r.URL.Query()
	res, err := h.OAuth2Service.Complete(r.Context(), state, service.CallbackParams{
		Provider:         r.PathValue("provider"),
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	})
	if err != nil {
		h.fail(w, r, string(domain.KindOf(err)))
		return
	}

	target, err := url.Parse(res.RedirectURI)
	if err != nil {
		h.fail(w, r, authsdk.ErrorCodeServerError)
		return
	}

	if h.Delivery == DeliverCookie && h.Cookies != nil {
		h.Cookies.Set(w, res.Tokens)
	} else {
		v := target.Query()
		v.Set("access_token", res.Tokens.AccessToken)
		v.Set("refresh_token", res.Tokens.RefreshToken)
		v.Set("token_type", res.Tokens.TokenType)
		target.RawQuery = v.Encode()
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Referrer-Policy", "no-referrer")
	http.Redirect(w, r, target.String(), http.StatusFound)
}

// fail redirects to the failure page, or to the default success page when
// none is configured, with ?error=<kind>.
func (h *OAuth2Handler) fail(w http.ResponseWriter, r *http.Request, code string) {
	page := h.FailureURL
	if page == "" && h.OAuth2Service != nil {
		page = h.OAuth2Service.DefaultRedirect
	}

	target, err := url.Parse(page)
	if page == "" || err != nil {
		slogx.FromContext(r.Context()).Error("oauth2_failure_page_missing", "error_kind", code)
		authsdk.NewAPIError(http.StatusBadRequest, code, "oauth2 login failed").WriteError(w)
		return
	}
	v := target.Query()
	v.Set("error", code)
	target.RawQuery = v.Encode()

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, target.String(), http.StatusFound)
}
