package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/sok/internal/auth/domain"
	"github.com/aussiebroadwan/sok/pkg/authsdk"
	"github.com/aussiebroadwan/sok/pkg/httpx"
	"github.com/aussiebroadwan/sok/pkg/slogx"
)

// Authenticator verifies an access token. service.TokenService satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, access string) (domain.Principal, error)
}

type ctxKey int

const (
	ctxKeyPublic ctxKey = iota
	ctxKeyBearer
	ctxKeyPrincipal
)

// DefaultPublicRoutes never require a bearer token. A trailing "/*" matches
// the prefix and everything below it.
func DefaultPublicRoutes() []string {
	return []string{
		"/api/login/user",
		"/api/reissue",
		"/api/signup",
		"/api/check/*",
		"/auth/login",
		"/auth/reissue",
		"/oauth2/*",
		"/livez",
		"/readyz",
		"/swagger/*",
	}
}

func matchRoute(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
	return path == pattern
}

// PublicBypass marks requests for allow-listed paths so the later stages
// let them through untouched.
func PublicBypass(routes []string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, p := range routes {
				if matchRoute(p, r.URL.Path) {
					r = r.WithContext(context.WithValue(r.Context(), ctxKeyPublic, true))
					break
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IsPublic reports whether PublicBypass matched the request.
func IsPublic(ctx context.Context) bool {
	v, _ := ctx.Value(ctxKeyPublic).(bool)
	return v
}

// ExtractBearer pulls the access token off non-public requests, rejecting
// those that carry none. With a cookieName set, a cookie of that name is
// accepted when there is no Authorization header.
func ExtractBearer(cookieName string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsPublic(r.Context()) {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := httpx.BearerToken(r)
			if !ok && cookieName != "" {
				if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
					token, ok = c.Value, true
				}
			}
			if !ok {
				rejectUnauthenticated(w, "")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyBearer, token)))
		})
	}
}

// ValidateBearer authenticates the extracted token and attaches the
// principal. Every failure gets the same response.
func ValidateBearer(a Authenticator) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsPublic(r.Context()) {
				next.ServeHTTP(w, r)
				return
			}

			token, _ := r.Context().Value(ctxKeyBearer).(string)
			if token == "" {
				rejectUnauthenticated(w, "")
				return
			}

			p, err := a.Authenticate(r.Context(), token)
			if err != nil {
				slogx.FromContext(r.Context()).Info("authentication_failed", slog.String("kind", string(domain.KindOf(err))))
				rejectUnauthenticated(w, authsdk.ErrorCodeInvalidToken)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyPrincipal, p)
			ctx = httpx.ContextWithSubject(ctx, p.SubjectID)
			ctx = slogx.With(ctx, slog.String("sub", p.SubjectID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuthority is authorization on top of the gate, it answers 403
// when the principal lacks the authority.
func RequireAuthority(authority string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				rejectUnauthenticated(w, "")
				return
			}
			if !p.HasAuthority(authority) {
				authsdk.ErrForbidden.WriteError(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func PrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(ctxKeyPrincipal).(domain.Principal)
	return p, ok
}

// Gate is the three stages in order.
func Gate(a Authenticator, publicRoutes []string, cookieName string) []httpx.Middleware {
	return []httpx.Middleware{
		PublicBypass(publicRoutes),
		ExtractBearer(cookieName),
		ValidateBearer(a),
	}
}

func rejectUnauthenticated(w http.ResponseWriter, errCode string) {
	httpx.WriteBearerChallenge(w, http.StatusUnauthorized, errCode, authsdk.ErrUnauthenticated)
}
