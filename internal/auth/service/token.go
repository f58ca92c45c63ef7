package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/sok/internal/auth/domain"
	"github.com/aussiebroadwan/sok/internal/auth/store"
	"github.com/aussiebroadwan/sok/pkg/cryptox"
	"github.com/aussiebroadwan/sok/pkg/jwtx"
	"github.com/aussiebroadwan/sok/pkg/slogx"
)

// PrincipalLookup re-reads the current state of a subject. When set on the
// TokenService, reissue refuses subjects that were suspended after login.
type PrincipalLookup interface {
	GetPrincipal(ctx context.Context, subjectID string) (domain.Principal, error)
}

type TokenService struct {
	Codec      *jwtx.Codec
	Store      store.Store
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// StrictRotation makes reissue compare-and-swap the session so that of
	// two concurrent reissues with the same token only one wins.
	StrictRotation bool

	// Principals is optional.
	Principals PrincipalLookup

	// Now defaults to time.Now. It must agree with the codec's clock.
	Now func() time.Time
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *TokenService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return jwtx.DefaultAccessTokenTTL
}

func (s *TokenService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return jwtx.DefaultRefreshTokenTTL
}

// Login issues a fresh pair for an already authenticated principal and makes
// its refresh token the only valid one for the subject.
func (s *TokenService) Login(ctx context.Context, p domain.Principal) (*domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	if p.SubjectID == "" {
		return nil, fmt.Errorf("%w: empty subject", domain.ErrUnauthenticated)
	}
	if !p.Active() {
		l.Info("login_refused", slog.String("sub", p.SubjectID), slog.String("status", string(p.Status)))
		return nil, domain.ErrInactive
	}

	pair, rec, err := s.issue(p)
	if err != nil {
		return nil, err
	}
	if err := s.Store.Sessions().PutSession(ctx, rec); err != nil {
		l.Error("session_put_failed", slog.String("sub", p.SubjectID), slog.Any("error", err))
		return nil, unavailable(err)
	}

	l.Info("tokens_issued", slog.String("sub", p.SubjectID))
	return pair, nil
}

// Authenticate verifies an access token. It never touches the store, so it
// keeps working while the session backend is down.
func (s *TokenService) Authenticate(ctx context.Context, access string) (domain.Principal, error) {
	claims, err := s.Codec.Parse(access)
	if err != nil {
		return domain.Principal{}, err
	}
	if claims.Kind != jwtx.KindAccess {
		return domain.Principal{}, fmt.Errorf("%w: not an access token", domain.ErrMalformed)
	}
	return principalFromClaims(claims), nil
}

// Reissue rotates a refresh token. The presented token must be the one the
// session currently holds; anything else, including a token that was already
// rotated, is ErrRevoked.
func (s *TokenService) Reissue(ctx context.Context, refresh string) (*domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	claims, err := s.Codec.Parse(refresh)
	if err != nil {
		return nil, err
	}
	if claims.Kind != jwtx.KindRefresh {
		return nil, fmt.Errorf("%w: not a refresh token", domain.ErrMalformed)
	}

	key := claims.Subject
	rec, err := s.Store.Sessions().GetSession(ctx, key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		l.Info("refresh_revoked", slog.String("sub", key), slog.String("reason", "no_session"))
		return nil, domain.ErrRevoked
	case err != nil:
		l.Error("session_get_failed", slog.String("sub", key), slog.Any("error", err))
		return nil, unavailable(err)
	}

	if !cryptox.EqualFingerprint(rec.TokenHash, cryptox.FingerprintToken(refresh)) {
		l.Warn("refresh_revoked", slog.String("sub", key), slog.String("reason", "superseded"))
		return nil, domain.ErrRevoked
	}

	p := principalFromClaims(claims)
	if s.Principals != nil {
		current, err := s.Principals.GetPrincipal(ctx, key)
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, s.revoke(ctx, key, "unknown_subject")
		case err != nil:
			return nil, unavailable(err)
		case !current.Active():
			return nil, s.revoke(ctx, key, "inactive")
		}
		p = current
	}

	pair, next, err := s.issue(p)
	if err != nil {
		return nil, err
	}

	if s.StrictRotation {
		err = s.Store.Sessions().SwapSession(ctx, key, rec.TokenHash, next)
		if errors.Is(err, store.ErrConflict) {
			l.Warn("refresh_revoked", slog.String("sub", key), slog.String("reason", "lost_race"))
			return nil, domain.ErrRevoked
		}
	} else {
		err = s.Store.Sessions().PutSession(ctx, next)
	}
	if err != nil {
		l.Error("session_put_failed", slog.String("sub", key), slog.Any("error", err))
		return nil, unavailable(err)
	}

	l.Info("tokens_reissued", slog.String("sub", key))
	return pair, nil
}

// Logout removes the session, invalidating the outstanding refresh token.
// Access tokens already handed out stay valid until they expire.
func (s *TokenService) Logout(ctx context.Context, sessionKey string) error {
	if err := s.Store.Sessions().DeleteSession(ctx, sessionKey); err != nil {
		slogx.FromContext(ctx).Error("session_delete_failed", slog.String("sub", sessionKey), slog.Any("error", err))
		return unavailable(err)
	}
	slogx.FromContext(ctx).Info("logout", slog.String("sub", sessionKey))
	return nil
}

func (s *TokenService) revoke(ctx context.Context, key, reason string) error {
	slogx.FromContext(ctx).Warn("refresh_revoked", slog.String("sub", key), slog.String("reason", reason))
	if err := s.Store.Sessions().DeleteSession(ctx, key); err != nil {
		return unavailable(err)
	}
	return domain.ErrRevoked
}

// issue signs both tokens and builds the session record for the refresh one.
func (s *TokenService) issue(p domain.Principal) (*domain.TokenPair, domain.SessionRecord, error) {
	accessTTL, refreshTTL := s.accessTTL(), s.refreshTTL()

	access, err := s.Codec.Issue(jwtx.NewClaims(jwtx.KindAccess, p.SubjectID, p.Authorities, string(p.Status)), accessTTL)
	if err != nil {
		return nil, domain.SessionRecord{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.Codec.Issue(jwtx.NewClaims(jwtx.KindRefresh, p.SubjectID, p.Authorities, string(p.Status)), refreshTTL)
	if err != nil {
		return nil, domain.SessionRecord{}, fmt.Errorf("issue refresh token: %w", err)
	}

	now := s.now()
	rec := domain.SessionRecord{
		Key:       p.SubjectID,
		TokenHash: cryptox.FingerprintToken(refresh),
		ExpiresAt: now.Add(refreshTTL),
		UpdatedAt: now,
	}

	return &domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "Bearer",
		ExpiresIn:        accessTTL,
		RefreshExpiresIn: refreshTTL,
	}, rec, nil
}

func principalFromClaims(c jwtx.Claims) domain.Principal {
	return domain.Principal{
		SubjectID:   c.Subject,
		Authorities: c.Authorities,
		Status:      domain.Status(c.Status),
	}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
}
