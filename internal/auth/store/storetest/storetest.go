// Package storetest is a conformance suite every store driver runs from its
// own tests.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/sok/internal/auth/domain"
	"github.com/aussiebroadwan/sok/internal/auth/store"
	"github.com/aussiebroadwan/sok/pkg/idx"
	"github.com/stretchr/testify/require"
)

// Clock is a manually advanced time source.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock(t time.Time) *Clock { return &Clock{t: t} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// Factory builds a fresh, migrated store that reads time from now.
type Factory func(t *testing.T, now func() time.Time) store.Store

// Run exercises the full store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("sessions", func(t *testing.T) { t.Parallel(); testSessions(t, newStore) })
	t.Run("session expiry", func(t *testing.T) { t.Parallel(); testSessionExpiry(t, newStore) })
	t.Run("session swap", func(t *testing.T) { t.Parallel(); testSessionSwap(t, newStore) })
	t.Run("concurrent swap", func(t *testing.T) { t.Parallel(); testConcurrentSwap(t, newStore) })
	t.Run("nonces", func(t *testing.T) { t.Parallel(); testNonces(t, newStore) })
	t.Run("users", func(t *testing.T) { t.Parallel(); testUsers(t, newStore) })
	t.Run("identities", func(t *testing.T) { t.Parallel(); testIdentities(t, newStore) })
}

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testSessions(t *testing.T, newStore Factory) {
	ctx := context.Background()
	clock := NewClock(epoch)
	s := newStore(t, clock.Now).Sessions()

	_, err := s.GetSession(ctx, "u1")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.PutSession(ctx, domain.SessionRecord{Key: "u1", TokenHash: "h1", ExpiresAt: epoch.Add(time.Hour)}))
	rec, err := s.GetSession(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "h1", rec.TokenHash)
	require.WithinDuration(t, epoch.Add(time.Hour), rec.ExpiresAt, time.Millisecond)

	// overwrite replaces the previous value
	require.NoError(t, s.PutSession(ctx, domain.SessionRecord{Key: "u1", TokenHash: "h2", ExpiresAt: epoch.Add(time.Hour)}))
	rec, err = s.GetSession(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "h2", rec.TokenHash)

	// keys are independent
	require.NoError(t, s.PutSession(ctx, domain.SessionRecord{Key: "u2", TokenHash: "x", ExpiresAt: epoch.Add(time.Hour)}))
	require.NoError(t, s.DeleteSession(ctx, "u1"))
	_, err = s.GetSession(ctx, "u1")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetSession(ctx, "u2")
	require.NoError(t, err)

	// deleting twice is fine
	require.NoError(t, s.DeleteSession(ctx, "u1"))
}

func testSessionExpiry(t *testing.T, newStore Factory) {
	ctx := context.Background()
	clock := NewClock(epoch)
	s := newStore(t, clock.Now).Sessions()

	require.NoError(t, s.PutSession(ctx, domain.SessionRecord{Key: "short", TokenHash: "h", ExpiresAt: epoch.Add(time.Minute)}))
	require.NoError(t, s.PutSession(ctx, domain.SessionRecord{Key: "long", TokenHash: "h", ExpiresAt: epoch.Add(time.Hour)}))

	clock.Advance(time.Minute)
	_, err := s.GetSession(ctx, "short")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.DeleteExpiredSessions(ctx))
	_, err = s.GetSession(ctx, "long")
	require.NoError(t, err)

	// an expired record cannot be swapped
	err = s.SwapSession(ctx, "short", "h", domain.SessionRecord{Key: "short", TokenHash: "h2", ExpiresAt: epoch.Add(time.Hour)})
	require.ErrorIs(t, err, store.ErrConflict)
}

func testSessionSwap(t *testing.T, newStore Factory) {
	ctx := context.Background()
	clock := NewClock(epoch)
	s := newStore(t, clock.Now).Sessions()

	next := domain.SessionRecord{Key: "u1", TokenHash: "h2", ExpiresAt: epoch.Add(time.Hour)}

	// nothing stored yet
	require.ErrorIs(t, s.SwapSession(ctx, "u1", "h1", next), store.ErrConflict)

	require.NoError(t, s.PutSession(ctx, domain.SessionRecord{Key: "u1", TokenHash: "h1", ExpiresAt: epoch.Add(time.Hour)}))
	require.ErrorIs(t, s.SwapSession(ctx, "u1", "wrong", next), store.ErrConflict)
	require.NoError(t, s.SwapSession(ctx, "u1", "h1", next))

	rec, err := s.GetSession(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "h2", rec.TokenHash)

	// the old value no longer matches
	require.ErrorIs(t, s.SwapSession(ctx, "u1", "h1", next), store.ErrConflict)
}

func testConcurrentSwap(t *testing.T, newStore Factory) {
	ctx := context.Background()
	clock := NewClock(epoch)
	s := newStore(t, clock.Now).Sessions()

	require.NoError(t, s.PutSession(ctx, domain.SessionRecord{Key: "u1", TokenHash: "h0", ExpiresAt: epoch.Add(time.Hour)}))

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := domain.SessionRecord{Key: "u1", TokenHash: "h" + string(rune('a'+i)), ExpiresAt: epoch.Add(time.Hour)}
			if err := s.SwapSession(ctx, "u1", "h0", rec); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes)
}

func testNonces(t *testing.T, newStore Factory) {
	ctx := context.Background()
	clock := NewClock(epoch)
	n := newStore(t, clock.Now).Nonces()

	require.NoError(t, n.ConsumeNonce(ctx, "n1", epoch.Add(3*time.Minute)))
	require.ErrorIs(t, n.ConsumeNonce(ctx, "n1", epoch.Add(3*time.Minute)), store.ErrAlreadyExists)
	require.NoError(t, n.ConsumeNonce(ctx, "n2", epoch.Add(3*time.Minute)))

	clock.Advance(3 * time.Minute)
	require.NoError(t, n.DeleteExpiredNonces(ctx))

	// once the ledger entry lapses the nonce can be recorded again, the
	// cookie carrying it expired at the same instant
	require.NoError(t, n.ConsumeNonce(ctx, "n1", clock.Now().Add(3*time.Minute)))
}

func testUsers(t *testing.T, newStore Factory) {
	ctx := context.Background()
	clock := NewClock(epoch)
	u := newStore(t, clock.Now).Users()

	user := domain.User{
		ID:           idx.New().String(),
		Email:        "Alice@Example.com",
		Name:         "Alice",
		PasswordHash: "$argon2id$fake",
		Authorities:  []string{domain.AuthorityUser, domain.AuthorityAdmin},
		Status:       domain.StatusActive,
	}
	require.NoError(t, u.CreateUser(ctx, user))

	got, err := u.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, user.Email, got.Email)
	require.Equal(t, user.Authorities, got.Authorities)
	require.Equal(t, domain.StatusActive, got.Status)
	require.WithinDuration(t, epoch, got.CreatedAt, time.Millisecond)

	got, err = u.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)

	dup := user
	dup.ID = idx.New().String()
	dup.Email = "ALICE@example.com"
	require.ErrorIs(t, u.CreateUser(ctx, dup), store.ErrAlreadyExists)

	// users without email never collide
	for range 2 {
		require.NoError(t, u.CreateUser(ctx, domain.User{ID: idx.New().String(), Status: domain.StatusActive}))
	}
	_, err = u.GetUserByEmail(ctx, "")
	require.ErrorIs(t, err, store.ErrNotFound)

	clock.Advance(time.Minute)
	require.NoError(t, u.UpdateStatus(ctx, user.ID, domain.StatusSuspended))
	got, err = u.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusSuspended, got.Status)
	require.WithinDuration(t, epoch.Add(time.Minute), got.UpdatedAt, time.Millisecond)

	require.ErrorIs(t, u.UpdateStatus(ctx, "missing", domain.StatusActive), store.ErrNotFound)
	_, err = u.GetUserByID(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testIdentities(t *testing.T, newStore Factory) {
	ctx := context.Background()
	clock := NewClock(epoch)
	u := newStore(t, clock.Now).Users()

	user := domain.User{ID: idx.New().String(), Email: "bob@example.com", Authorities: []string{domain.AuthorityUser}, Status: domain.StatusActive}
	ident := domain.Identity{Provider: "google", Subject: "g-123", Email: "bob@example.com"}
	require.NoError(t, u.CreateUserWithIdentity(ctx, user, ident))

	got, err := u.GetUserByIdentity(ctx, "google", "g-123")
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)

	_, err = u.GetUserByIdentity(ctx, "github", "g-123")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, u.LinkIdentity(ctx, domain.Identity{Provider: "github", Subject: "42", UserID: user.ID}))
	got, err = u.GetUserByIdentity(ctx, "github", "42")
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)

	require.ErrorIs(t, u.LinkIdentity(ctx, domain.Identity{Provider: "github", Subject: "42", UserID: user.ID}), store.ErrAlreadyExists)

	// a failed identity insert leaves no orphaned user behind
	other := domain.User{ID: idx.New().String(), Email: "carol@example.com", Status: domain.StatusActive}
	err = u.CreateUserWithIdentity(ctx, other, domain.Identity{Provider: "google", Subject: "g-123"})
	require.ErrorIs(t, err, store.ErrAlreadyExists)
	_, err = u.GetUserByEmail(ctx, "carol@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}
