package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/aussiebroadwan/sok/internal/auth/domain"
	"github.com/aussiebroadwan/sok/internal/auth/store"
	"github.com/aussiebroadwan/sok/pkg/cryptox"
	"github.com/aussiebroadwan/sok/pkg/idx"
	"github.com/aussiebroadwan/sok/pkg/slogx"
)

var (
	ErrEmailTaken     = errors.New("email_taken")
	ErrInvalidEmail   = errors.New("invalid_email")
	ErrWeakPassword   = errors.New("weak_password")
	ErrInvalidStatus  = errors.New("invalid_status")
	ErrUserNotFound   = errors.New("user_not_found")
	ErrInvalidProfile = errors.New("invalid_profile")
)

const minPasswordLength = 8

type UserService struct {
	Store store.Store
}

// AuthenticateLocal checks an email and password pair. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *UserService) AuthenticateLocal(ctx context.Context, email, password string) (domain.Principal, error) {
	l := slogx.FromContext(ctx)

	u, err := s.Store.Users().GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			cryptox.BurnPasswordCheck(password)
			return domain.Principal{}, domain.ErrInvalidCredentials
		}
		return domain.Principal{}, fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
	}

	if u.PasswordHash == "" {
		// OAuth2 only account
		cryptox.BurnPasswordCheck(password)
		return domain.Principal{}, domain.ErrInvalidCredentials
	}
	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		l.Info("login_failed", slog.String("sub", u.ID))
		return domain.Principal{}, domain.ErrInvalidCredentials
	}

	if u.Status != domain.StatusActive {
		return domain.Principal{}, domain.ErrInactive
	}
	return u.Principal(), nil
}

// CreateLocalUser registers a password account. With no authorities the
// user gets USER.
func (s *UserService) CreateLocalUser(ctx context.Context, email, name, password string, authorities []string) (domain.User, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil || strings.ContainsAny(email, "<> ") {
		return domain.User{}, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return domain.User{}, ErrWeakPassword
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	if len(authorities) == 0 {
		authorities = []string{domain.AuthorityUser}
	}

	u := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		Authorities:  authorities,
		Status:       domain.StatusActive,
	}
	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, err
	}

	slogx.FromContext(ctx).Info("user_created", slog.String("sub", u.ID))
	return s.Store.Users().GetUserByID(ctx, u.ID)
}

// EmailAvailable reports whether no account uses email yet.
func (s *UserService) EmailAvailable(ctx context.Context, email string) (bool, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return false, ErrInvalidEmail
	}
	_, err := s.Store.Users().GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return true, nil
	case err != nil:
		return false, err
	}
	return false, nil
}

func (s *UserService) SetStatus(ctx context.Context, userID string, status domain.Status) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	if err := s.Store.Users().UpdateStatus(ctx, userID, status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	slogx.FromContext(ctx).Info("user_status_changed", slog.String("sub", userID), slog.String("status", string(status)))
	return nil
}

// GetPrincipal returns the subject's current principal. A missing user is
// store.ErrNotFound so TokenService can tell it apart from an outage.
func (s *UserService) GetPrincipal(ctx context.Context, userID string) (domain.Principal, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return domain.Principal{}, err
	}
	return u.Principal(), nil
}

// ResolveProfile maps an external profile onto a local user. It matches on
// the linked identity first, then on a verified email (linking the identity),
// and finally creates a new USER account. Only active users resolve.
func (s *UserService) ResolveProfile(ctx context.Context, p domain.Profile) (domain.Principal, error) {
	l := slogx.FromContext(ctx)

	if p.Provider == "" || p.Subject == "" {
		return domain.Principal{}, ErrInvalidProfile
	}
	users := s.Store.Users()

	u, err := users.GetUserByIdentity(ctx, p.Provider, p.Subject)
	switch {
	case err == nil:
		return activePrincipal(u)
	case !errors.Is(err, store.ErrNotFound):
		return domain.Principal{}, err
	}

	ident := domain.Identity{Provider: p.Provider, Subject: p.Subject, Email: p.Email}

	if p.Email != "" && p.EmailVerified {
		u, err = users.GetUserByEmail(ctx, p.Email)
		switch {
		case err == nil:
			ident.UserID = u.ID
			if err := users.LinkIdentity(ctx, ident); err != nil && !errors.Is(err, store.ErrAlreadyExists) {
				return domain.Principal{}, err
			}
			l.Info("identity_linked", slog.String("sub", u.ID), slog.String("provider", p.Provider))
			return activePrincipal(u)
		case !errors.Is(err, store.ErrNotFound):
			return domain.Principal{}, err
		}
	}

	u = domain.User{
		ID:          idx.New().String(),
		Name:        p.Name,
		Authorities: []string{domain.AuthorityUser},
		Status:      domain.StatusActive,
	}
	// unverified addresses are not stored, they would block a later signup
	// by the real owner
	if p.EmailVerified {
		u.Email = p.Email
	}

	err = users.CreateUserWithIdentity(ctx, u, ident)
	if errors.Is(err, store.ErrAlreadyExists) {
		// a concurrent first login for the same identity got there first
		u, err = users.GetUserByIdentity(ctx, p.Provider, p.Subject)
		if err != nil {
			return domain.Principal{}, err
		}
		return activePrincipal(u)
	}
	if err != nil {
		return domain.Principal{}, err
	}

	l.Info("user_created", slog.String("sub", u.ID), slog.String("provider", p.Provider))
	return activePrincipal(u)
}

func activePrincipal(u domain.User) (domain.Principal, error) {
	if u.Status != domain.StatusActive {
		return domain.Principal{}, fmt.Errorf("user %s is %s: %w", u.ID, u.Status, domain.ErrInactive)
	}
	return u.Principal(), nil
}
