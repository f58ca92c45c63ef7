package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/sok/internal/auth/domain"
	"github.com/aussiebroadwan/sok/internal/auth/provider"
	"github.com/aussiebroadwan/sok/internal/auth/store"
	"github.com/aussiebroadwan/sok/pkg/cryptox"
	"github.com/aussiebroadwan/sok/pkg/slogx"
	"golang.org/x/oauth2"
)

var (
	ErrUnknownProvider    = errors.New("unknown_provider")
	ErrRedirectNotAllowed = errors.New("redirect_not_allowed")
)

// FlowState names the steps of an OAuth2 login as they appear in logs.
type FlowState string

const (
	FlowInitiated            FlowState = "INITIATED"
	FlowRedirectedToProvider FlowState = "REDIRECTED_TO_PROVIDER"
	FlowCallbackReceived     FlowState = "CALLBACK_RECEIVED"
	FlowUserResolved         FlowState = "USER_RESOLVED"
	FlowTokensIssued         FlowState = "TOKENS_ISSUED"
	FlowFailed               FlowState = "FAILED"
)

// ProfileResolver maps an external profile to a local principal.
type ProfileResolver interface {
	ResolveProfile(ctx context.Context, p domain.Profile) (domain.Principal, error)
}

// CallbackParams are the query parameters the provider sends back.
type CallbackParams struct {
	// Provider is taken from the callback path, if the route carries one.
	Provider         string
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

type CallbackResult struct {
	Tokens      *domain.TokenPair
	Principal   domain.Principal
	RedirectURI string
}

type OAuth2Service struct {
	Providers *provider.Registry
	Users     ProfileResolver
	Tokens    *TokenService
	Store     store.Store

	// StateTTL bounds how long a flow may take end to end.
	StateTTL time.Duration

	// DefaultRedirect is used when authorize names no redirect_uri.
	DefaultRedirect string

	// AllowedRedirects are the origins (optionally with a path prefix) a
	// flow may send the user agent back to. DefaultRedirect is always
	// allowed.
	AllowedRedirects []string

	Now func() time.Time
}

func (s *OAuth2Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *OAuth2Service) stateTTL() time.Duration {
	if s.StateTTL > 0 {
		return s.StateTTL
	}
	return 3 * time.Minute
}

// Begin starts a flow. It returns the provider URL to send the user agent to
// and the state that must ride along in the state cookie.
func (s *OAuth2Service) Begin(ctx context.Context, providerName, redirectURI string) (string, domain.OAuth2RequestState, error) {
	l := slogx.FromContext(ctx).With(slog.String("provider", providerName))
	l.Info("oauth2_flow", slog.String("flow_state", string(FlowInitiated)))

	p, ok := s.Providers.Get(providerName)
	if !ok {
		l.Info("oauth2_flow", slog.String("flow_state", string(FlowFailed)), slog.String("reason", "unknown_provider"))
		return "", domain.OAuth2RequestState{}, ErrUnknownProvider
	}

	if redirectURI == "" {
		redirectURI = s.DefaultRedirect
	}
	if !s.redirectAllowed(redirectURI) {
		l.Warn("oauth2_flow", slog.String("flow_state", string(FlowFailed)), slog.String("reason", "redirect_not_allowed"), slog.String("redirect_uri", redirectURI))
		return "", domain.OAuth2RequestState{}, ErrRedirectNotAllowed
	}

	nonce, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", domain.OAuth2RequestState{}, fmt.Errorf("generate nonce: %w", err)
	}

	state := domain.OAuth2RequestState{
		Provider:     p.Name(),
		RedirectURI:  redirectURI,
		Nonce:        nonce,
		CodeVerifier: oauth2.GenerateVerifier(),
		IssuedAt:     s.now().UTC(),
	}

	l.Info("oauth2_flow", slog.String("flow_state", string(FlowRedirectedToProvider)))
	return p.AuthCodeURL(nonce, state.CodeVerifier), state, nil
}

// Complete finishes a flow started by Begin. state is what the cookie held,
// nil if there was none. The nonce is burnt before the code is redeemed, so
// a replayed callback fails even if the first attempt did too.
func (s *OAuth2Service) Complete(ctx context.Context, state *domain.OAuth2RequestState, params CallbackParams) (*CallbackResult, error) {
	l := slogx.FromContext(ctx)
	if state != nil {
		l = l.With(slog.String("provider", state.Provider))
	}
	l.Info("oauth2_flow", slog.String("flow_state", string(FlowCallbackReceived)))

	fail := func(err error) (*CallbackResult, error) {
		l.Warn("oauth2_flow",
			slog.String("flow_state", string(FlowFailed)),
			slog.String("kind", string(domain.KindOf(err))),
			slog.Any("error", err),
		)
		return nil, err
	}

	if state == nil {
		return fail(domain.ErrStateMissing)
	}
	if params.Provider != "" && !strings.EqualFold(params.Provider, state.Provider) {
		return fail(fmt.Errorf("%w: provider mismatch", domain.ErrStateMissing))
	}
	if subtle.ConstantTimeCompare([]byte(params.State), []byte(state.Nonce)) != 1 {
		return fail(fmt.Errorf("%w: nonce mismatch", domain.ErrStateMissing))
	}
	if !s.now().Before(state.IssuedAt.Add(s.stateTTL())) {
		return fail(fmt.Errorf("%w: state expired", domain.ErrStateMissing))
	}

	err := s.Store.Nonces().ConsumeNonce(ctx, state.Nonce, state.IssuedAt.Add(s.stateTTL()))
	switch {
	case errors.Is(err, store.ErrAlreadyExists):
		return fail(fmt.Errorf("%w: state replayed", domain.ErrStateMissing))
	case err != nil:
		return fail(fmt.Errorf("%w: %w", domain.ErrUnavailable, err))
	}

	if params.Error != "" {
		return fail(fmt.Errorf("%w: %s %s", domain.ErrProvider, params.Error, params.ErrorDescription))
	}
	if params.Code == "" {
		return fail(fmt.Errorf("%w: missing code", domain.ErrProvider))
	}

	p, ok := s.Providers.Get(state.Provider)
	if !ok {
		return fail(fmt.Errorf("%w: provider %q no longer configured", domain.ErrProvider, state.Provider))
	}

	profile, err := p.Exchange(ctx, params.Code, state.CodeVerifier)
	if err != nil {
		if !errors.Is(err, domain.ErrProvider) {
			err = fmt.Errorf("%w: %w", domain.ErrProvider, err)
		}
		return fail(err)
	}

	principal, err := s.Users.ResolveProfile(ctx, profile)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", domain.ErrUserResolution, err))
	}
	l.Info("oauth2_flow", slog.String("flow_state", string(FlowUserResolved)), slog.String("sub", principal.SubjectID))

	pair, err := s.Tokens.Login(ctx, principal)
	if err != nil {
		return fail(err)
	}
	l.Info("oauth2_flow", slog.String("flow_state", string(FlowTokensIssued)), slog.String("sub", principal.SubjectID))

	return &CallbackResult{Tokens: pair, Principal: principal, RedirectURI: state.RedirectURI}, nil
}

// redirectAllowed accepts absolute http(s) URLs whose origin matches an
// allowed entry and whose path sits under the entry's path.
func (s *OAuth2Service) redirectAllowed(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || u.User != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}

	allowed := s.AllowedRedirects
	if s.DefaultRedirect != "" {
		allowed = append([]string{s.DefaultRedirect}, allowed...)
	}

	for _, entry := range allowed {
		a, err := url.Parse(entry)
		if err != nil || a.Host == "" {
			continue
		}
		if !strings.EqualFold(a.Scheme, u.Scheme) || !strings.EqualFold(a.Host, u.Host) {
			continue
		}
		prefix := strings.TrimSuffix(a.Path, "/")
		if prefix == "" || u.Path == prefix || strings.HasPrefix(u.Path, prefix+"/") {
			return true
		}
	}
	return false
}
