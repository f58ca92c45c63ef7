package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/aussiebroadwan/sok/internal/auth/domain"
	"github.com/aussiebroadwan/sok/internal/auth/store"
)

type identityKey struct{ provider, subject string }

type usersRepo struct {
	s *Store

	mu         sync.RWMutex
	byID       map[string]domain.User
	byEmail    map[string]string // lower(email) => id
	identities map[identityKey]domain.Identity
}

func newUsersRepo(s *Store) *usersRepo {
	return &usersRepo{
		s:          s,
		byID:       make(map[string]domain.User),
		byEmail:    make(map[string]string),
		identities: make(map[identityKey]domain.Identity),
	}
}

// clone keeps callers from mutating stored slices.
func clone(u domain.User) domain.User {
	u.Authorities = slices.Clone(u.Authorities)
	return u
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return clone(u), ctx.Err()
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok || email == "" {
		return domain.User{}, store.ErrNotFound
	}
	return clone(r.byID[id]), ctx.Err()
}

func (r *usersRepo) GetUserByIdentity(ctx context.Context, provider, subject string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ident, ok := r.identities[identityKey{provider, subject}]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	u, ok := r.byID[ident.UserID]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return clone(u), ctx.Err()
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkUser(u); err != nil {
		return err
	}
	r.insertUser(u)
	return ctx.Err()
}

func (r *usersRepo) CreateUserWithIdentity(ctx context.Context, u domain.User, id domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkUser(u); err != nil {
		return err
	}
	if _, ok := r.identities[identityKey{id.Provider, id.Subject}]; ok {
		return store.ErrAlreadyExists
	}

	r.insertUser(u)
	id.UserID = u.ID
	id.CreatedAt = r.s.now()
	r.identities[identityKey{id.Provider, id.Subject}] = id
	return ctx.Err()
}

func (r *usersRepo) LinkIdentity(ctx context.Context, id domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id.UserID]; !ok {
		return store.ErrNotFound
	}
	key := identityKey{id.Provider, id.Subject}
	if _, ok := r.identities[key]; ok {
		return store.ErrAlreadyExists
	}

	id.CreatedAt = r.s.now()
	r.identities[key] = id
	return ctx.Err()
}

func (r *usersRepo) UpdateStatus(ctx context.Context, userID string, status domain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.Status = status
	u.UpdatedAt = r.s.now()
	r.byID[userID] = u
	return ctx.Err()
}

// checkUser must be called with mu held.
func (r *usersRepo) checkUser(u domain.User) error {
	if _, ok := r.byID[u.ID]; ok {
		return store.ErrAlreadyExists
	}
	if u.Email != "" {
		if _, ok := r.byEmail[strings.ToLower(u.Email)]; ok {
			return store.ErrAlreadyExists
		}
	}
	return nil
}

// insertUser must be called with mu held.
func (r *usersRepo) insertUser(u domain.User) {
	now := r.s.now()
	u = clone(u)
	u.CreatedAt, u.UpdatedAt = now, now
	r.byID[u.ID] = u
	if u.Email != "" {
		r.byEmail[strings.ToLower(u.Email)] = u.ID
	}
}
