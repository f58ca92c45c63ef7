package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/sok/internal/auth/oauthstate"
	"github.com/aussiebroadwan/sok/internal/auth/service"
	"github.com/aussiebroadwan/sok/internal/auth/store"
	"github.com/aussiebroadwan/sok/pkg/httpx"
	"github.com/aussiebroadwan/sok/pkg/jwtx"
	"github.com/aussiebroadwan/sok/pkg/slogx"

	_ "github.com/aussiebroadwan/sok/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// OAuth2Options configures the browser facing half of the OAuth2 flow.
type OAuth2Options struct {
	FailureURL   string
	Delivery     TokenDelivery
	CookieSecure bool
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux     *http.ServeMux
	handler http.Handler

	codec        *jwtx.Codec
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store
	limits       httpx.RateLimits

	// PublicRoutes bypass the authentication gate. Defaults to
	// DefaultPublicRoutes.
	PublicRoutes []string
	OAuth2       OAuth2Options

	TokenService  *service.TokenService
	UserService   *service.UserService
	OAuth2Service *service.OAuth2Service // optional, nil disables /oauth2
	States        *oauthstate.Repository
}

func NewRouter(
	codec *jwtx.Codec,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
	limits httpx.RateLimits,
) *Router {
	return &Router{
		Mux:          http.NewServeMux(),
		codec:        codec,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		limits:       limits,
		PublicRoutes: DefaultPublicRoutes(),
	}
}

// ApplyRoutes registers every route and builds the middleware chain. The
// services must be set before calling it.
func (r *Router) ApplyRoutes() {
	cookies := r.tokenCookies()

	r.registerAuth(cookies)
	r.registerUsers()
	r.registerOAuth2(cookies)
	r.registerSystem()

	r.Mux.Handle("GET /swagger/", httpSwagger.Handler())

	cookieName := ""
	if cookies != nil {
		cookieName = AccessTokenCookie
	}
	mws := append([]httpx.Middleware{slogx.HTTPMiddleware(r.logger)},
		Gate(r.TokenService, r.PublicRoutes, cookieName)...)
	r.handler = httpx.Chain(r.Mux, mws...)
}

// ServeHTTP runs the request through logging and the authentication gate.
//
//	@title						SOK Authentication Service API
//	@version					0.1.0
//	@description				Stateless JWT access tokens with single-use rotating refresh tokens,
//	@description				password login and OAuth2 login through external identity providers.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/sok
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

func (r *Router) tokenCookies() *TokenCookies {
	if r.OAuth2.Delivery != DeliverCookie {
		return nil
	}
	return &TokenCookies{Secure: r.OAuth2.CookieSecure}
}

func (r *Router) registerAuth(cookies *TokenCookies) {
	h := &TokenHandler{
		TokenService: r.TokenService,
		UserService:  r.UserService,
		Cookies:      cookies,
	}

	// credential endpoints are brute force targets
	login := httpx.Chain(http.HandlerFunc(h.HandleLogin), httpx.RateLimitByIP(r.limits.Strict))
	r.Mux.Handle("POST /auth/login", login)
	r.Mux.Handle("POST /api/login/user", login)

	reissue := httpx.Chain(http.HandlerFunc(h.HandleReissue), httpx.RateLimitByIP(r.limits.Moderate))
	r.Mux.Handle("POST /auth/reissue", reissue)
	r.Mux.Handle("POST /api/reissue", reissue)

	r.Mux.Handle("POST /auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout), httpx.RateLimitBySubject(r.limits.Moderate)))

	r.Mux.Handle("GET /v1/me",
		httpx.Chain(http.HandlerFunc(MeHandler), httpx.RateLimitBySubject(r.limits.Public)))
}

func (r *Router) registerUsers() {
	h := &UsersHandler{UserService: r.UserService}

	r.Mux.Handle("POST /api/signup",
		httpx.Chain(http.HandlerFunc(h.HandleSignup), httpx.RateLimitByIP(r.limits.Strict)))
	r.Mux.Handle("GET /api/check/email",
		httpx.Chain(http.HandlerFunc(h.HandleCheckEmail), httpx.RateLimitByIP(r.limits.Moderate)))
}

func (r *Router) registerOAuth2(cookies *TokenCookies) {
	if r.OAuth2Service == nil || r.States == nil {
		return
	}

	h := &OAuth2Handler{
		OAuth2Service: r.OAuth2Service,
		States:        r.States,
		FailureURL:    r.OAuth2.FailureURL,
		Delivery:      r.OAuth2.Delivery,
		Cookies:       cookies,
	}

	authorize := httpx.Chain(http.HandlerFunc(h.HandleAuthorize), httpx.RateLimitByIP(r.limits.Public))
	r.Mux.Handle("GET /oauth2/authorize", authorize)
	r.Mux.Handle("GET /oauth2/authorize/{provider}", authorize)

	callback := httpx.Chain(http.HandlerFunc(h.HandleCallback), httpx.RateLimitByIP(r.limits.Moderate))
	r.Mux.Handle("GET /oauth2/callback", callback)
	r.Mux.Handle("GET /oauth2/callback/{provider}", callback)
}

func (r *Router) registerSystem() {
	// probes are polled often
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion), httpx.RateLimitByIP(r.limits.Public)))
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.codec), httpx.RateLimitByIP(r.limits.Public)))
}
