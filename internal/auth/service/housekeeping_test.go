package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/sok/internal/auth/store"
	"github.com/aussiebroadwan/sok/pkg/slogx"
	"github.com/stretchr/testify/require"
)

// countingStore counts purge calls. Session purges can be made to fail.
type countingStore struct {
	store.Store
	failSessions bool

	sessionPurges atomic.Int32
	noncePurges   atomic.Int32
}

func (s *countingStore) Sessions() store.Sessions { return countingSessions{s.Store.Sessions(), s} }
func (s *countingStore) Nonces() store.Nonces     { return countingNonces{s.Store.Nonces(), s} }

type countingSessions struct {
	store.Sessions
	s *countingStore
}

func (c countingSessions) DeleteExpiredSessions(ctx context.Context) error {
	c.s.sessionPurges.Add(1)
	if c.s.failSessions {
		return errBackendDown
	}
	return c.Sessions.DeleteExpiredSessions(ctx)
}

type countingNonces struct {
	store.Nonces
	s *countingStore
}

func (c countingNonces) DeleteExpiredNonces(ctx context.Context) error {
	c.s.noncePurges.Add(1)
	return c.Nonces.DeleteExpiredNonces(ctx)
}

func TestHousekeepingPurges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.tokens.Login(ctx, testPrincipal())
	require.NoError(t, err)
	require.NoError(t, f.store.Nonces().ConsumeNonce(ctx, "n1", epoch.Add(time.Minute)))

	f.clock.Advance(8 * 24 * time.Hour)

	cs := &countingStore{Store: f.store}
	hk := NewHousekeepingService(cs, slogx.Discard(), time.Hour)
	hk.Start()
	hk.Stop()

	require.EqualValues(t, 1, cs.sessionPurges.Load())
	require.EqualValues(t, 1, cs.noncePurges.Load())

	// the purged nonce can be recorded again
	require.NoError(t, f.store.Nonces().ConsumeNonce(ctx, "n1", f.clock.Now().Add(time.Minute)))

	_, err = f.tokens.Reissue(ctx, pair.RefreshToken)
	require.Error(t, err)
}

func TestHousekeepingFailureDoesNotSkip(t *testing.T) {
	f := newFixture(t)

	cs := &countingStore{Store: f.store, failSessions: true}
	hk := NewHousekeepingService(cs, slogx.Discard(), time.Hour)
	hk.Start()
	hk.Stop()

	require.EqualValues(t, 1, cs.sessionPurges.Load())
	require.EqualValues(t, 1, cs.noncePurges.Load())
}

func TestHousekeepingDefaultInterval(t *testing.T) {
	hk := NewHousekeepingService(nil, slogx.Discard(), 0)
	require.Equal(t, time.Hour, hk.Interval)
}
