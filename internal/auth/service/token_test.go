package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/sok/internal/auth/domain"
	"github.com/aussiebroadwan/sok/internal/auth/store"
	"github.com/aussiebroadwan/sok/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestLoginAndAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.tokens.Login(ctx, testPrincipal())
	require.NoError(t, err)
	require.Equal(t, "Bearer", pair.TokenType)
	require.Equal(t, 15*time.Minute, pair.ExpiresIn)
	require.Equal(t, 7*24*time.Hour, pair.RefreshExpiresIn)
	require.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	p, err := f.tokens.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, testPrincipal(), p)

	// a refresh token is not a bearer credential
	_, err = f.tokens.Authenticate(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, domain.ErrMalformed)

	rec, err := f.store.Sessions().GetSession(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, cryptox.FingerprintToken(pair.RefreshToken), rec.TokenHash)
	require.WithinDuration(t, epoch.Add(7*24*time.Hour), rec.ExpiresAt, time.Millisecond)
}

func TestLoginRefusesInactive(t *testing.T) {
	f := newFixture(t)

	p := testPrincipal()
	p.Status = domain.StatusSuspended
	_, err := f.tokens.Login(context.Background(), p)
	require.ErrorIs(t, err, domain.ErrInactive)

	_, err = f.store.Sessions().GetSession(context.Background(), "u1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAuthenticateNeverTouchesStore(t *testing.T) {
	f := newFixture(t)
	pair, err := f.tokens.Login(context.Background(), testPrincipal())
	require.NoError(t, err)

	f.tokens.Store = brokenStore{f.store}
	_, err = f.tokens.Authenticate(context.Background(), pair.AccessToken)
	require.NoError(t, err)
}

func TestReissueRotates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.tokens.Login(ctx, testPrincipal())
	require.NoError(t, err)

	second, err := f.tokens.Reissue(ctx, first.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)
	require.NotEqual(t, first.AccessToken, second.AccessToken)

	p, err := f.tokens.Authenticate(ctx, second.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "u1", p.SubjectID)

	// the rotated-out token is dead even though it has not expired
	_, err = f.tokens.Reissue(ctx, first.RefreshToken)
	require.ErrorIs(t, err, domain.ErrRevoked)

	third, err := f.tokens.Reissue(ctx, second.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, second.RefreshToken, third.RefreshToken)
}

func TestReissueRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.tokens.Login(ctx, testPrincipal())
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"access token", pair.AccessToken, domain.ErrMalformed},
		{"garbage", "abc", domain.ErrMalformed},
		{"empty", "", domain.ErrMalformed},
		{"tampered", pair.RefreshToken[:len(pair.RefreshToken)-4] + "AAAA", domain.ErrBadSignature},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.tokens.Reissue(ctx, tc.token)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestLoginSupersedesEarlierSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.tokens.Login(ctx, testPrincipal())
	require.NoError(t, err)
	second, err := f.tokens.Login(ctx, testPrincipal())
	require.NoError(t, err)

	_, err = f.tokens.Reissue(ctx, first.RefreshToken)
	require.ErrorIs(t, err, domain.ErrRevoked)
	_, err = f.tokens.Reissue(ctx, second.RefreshToken)
	require.NoError(t, err)
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.tokens.Login(ctx, testPrincipal())
	require.NoError(t, err)

	require.NoError(t, f.tokens.Logout(ctx, "u1"))
	_, err = f.tokens.Reissue(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, domain.ErrRevoked)

	// access tokens run out on their own
	_, err = f.tokens.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)

	// logging out twice is fine
	require.NoError(t, f.tokens.Logout(ctx, "u1"))
}

func TestAccessExpiresRefreshSurvives(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.tokens.Login(ctx, testPrincipal())
	require.NoError(t, err)

	f.clock.Advance(5 * time.Minute)
	_, err = f.tokens.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)

	f.clock.Advance(20 * time.Minute)
	_, err = f.tokens.Authenticate(ctx, pair.AccessToken)
	require.ErrorIs(t, err, domain.ErrExpired)

	next, err := f.tokens.Reissue(ctx, pair.RefreshToken)
	require.NoError(t, err)
	_, err = f.tokens.Authenticate(ctx, next.AccessToken)
	require.NoError(t, err)
}

func TestReissueExpiredRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.tokens.Login(ctx, testPrincipal())
	require.NoError(t, err)

	f.clock.Advance(7 * 24 * time.Hour)
	_, err = f.tokens.Reissue(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, domain.ErrExpired)
}

func TestReissueStoreFailure(t *testing.T) {
	f := newFixture(t)
	pair, err := f.tokens.Login(context.Background(), testPrincipal())
	require.NoError(t, err)

	f.tokens.Store = brokenStore{f.store}

	_, err = f.tokens.Reissue(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, domain.ErrUnavailable)
	require.ErrorIs(t, err, errBackendDown)

	_, err = f.tokens.Login(context.Background(), testPrincipal())
	require.ErrorIs(t, err, domain.ErrUnavailable)

	require.ErrorIs(t, f.tokens.Logout(context.Background(), "u1"), domain.ErrUnavailable)
}

func TestReissueCancelledContext(t *testing.T) {
	f := newFixture(t)
	pair, err := f.tokens.Login(context.Background(), testPrincipal())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = f.tokens.Reissue(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, domain.ErrUnavailable)
	require.True(t, errors.Is(err, context.Canceled))
}

func concurrentReissue(t *testing.T, f *fixture, refresh string, n int) (wins []string, revoked int) {
	t.Helper()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	start := make(chan struct{})
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			pair, err := f.tokens.Reissue(context.Background(), refresh)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins = append(wins, pair.RefreshToken)
			case errors.Is(err, domain.ErrRevoked):
				revoked++
			default:
				t.Errorf("unexpected reissue error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()
	return wins, revoked
}

func TestConcurrentReissueStrict(t *testing.T) {
	f := newFixture(t)
	f.tokens.StrictRotation = true

	pair, err := f.tokens.Login(context.Background(), testPrincipal())
	require.NoError(t, err)

	const n = 8
	wins, revoked := concurrentReissue(t, f, pair.RefreshToken, n)
	require.Len(t, wins, 1)
	require.Equal(t, n-1, revoked)

	rec, err := f.store.Sessions().GetSession(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, cryptox.FingerprintToken(wins[0]), rec.TokenHash)
}

func TestConcurrentReissueDefault(t *testing.T) {
	f := newFixture(t)

	pair, err := f.tokens.Login(context.Background(), testPrincipal())
	require.NoError(t, err)

	const n = 8
	wins, revoked := concurrentReissue(t, f, pair.RefreshToken, n)
	require.NotEmpty(t, wins)
	require.Equal(t, n, len(wins)+revoked)

	// whoever wrote last owns the session, every other winner is stale
	rec, err := f.store.Sessions().GetSession(context.Background(), "u1")
	require.NoError(t, err)
	var live int
	for _, w := range wins {
		if cryptox.FingerprintToken(w) == rec.TokenHash {
			live++
		}
	}
	require.Equal(t, 1, live)
}

func TestReissueChecksCurrentPrincipal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.tokens.Principals = f.users

	u, err := f.users.CreateLocalUser(ctx, "dana@example.com", "Dana", "correct-horse", nil)
	require.NoError(t, err)

	pair, err := f.tokens.Login(ctx, u.Principal())
	require.NoError(t, err)

	next, err := f.tokens.Reissue(ctx, pair.RefreshToken)
	require.NoError(t, err)

	require.NoError(t, f.users.SetStatus(ctx, u.ID, domain.StatusSuspended))
	_, err = f.tokens.Reissue(ctx, next.RefreshToken)
	require.ErrorIs(t, err, domain.ErrRevoked)

	_, err = f.store.Sessions().GetSession(ctx, u.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}
