package service

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/aussiebroadwan/sok/internal/auth/domain"
	"github.com/aussiebroadwan/sok/internal/auth/store"
	"github.com/aussiebroadwan/sok/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/sok/internal/auth/store/storetest"
	"github.com/aussiebroadwan/sok/pkg/cryptox"
	"github.com/aussiebroadwan/sok/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	cryptox.SetPepper("service-test-pepper")
	os.Exit(m.Run())
}

type fixture struct {
	clock  *storetest.Clock
	store  store.Store
	tokens *TokenService
	users  *UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := storetest.NewClock(epoch)

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())
	s.SetClock(clock.Now)

	signer, err := jwtx.NewSignerHS256("test", []byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	codec, err := jwtx.NewCodec(signer, jwtx.WithIssuer("https://auth.test"), jwtx.WithClock(clock.Now))
	require.NoError(t, err)

	return &fixture{
		clock: clock,
		store: s,
		tokens: &TokenService{
			Codec:      codec,
			Store:      s,
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Now:        clock.Now,
		},
		users: &UserService{Store: s},
	}
}

func testPrincipal() domain.Principal {
	return domain.Principal{SubjectID: "u1", Authorities: []string{domain.AuthorityUser}, Status: domain.StatusActive}
}

// brokenStore fails every session and nonce call.
type brokenStore struct {
	store.Store
}

var errBackendDown = errors.New("backend down")

func (brokenStore) Sessions() store.Sessions { return brokenSessions{} }
func (brokenStore) Nonces() store.Nonces     { return brokenNonces{} }

type brokenSessions struct{}

func (brokenSessions) PutSession(context.Context, domain.SessionRecord) error { return errBackendDown }
func (brokenSessions) GetSession(context.Context, string) (domain.SessionRecord, error) {
	return domain.SessionRecord{}, errBackendDown
}
func (brokenSessions) SwapSession(context.Context, string, string, domain.SessionRecord) error {
	return errBackendDown
}
func (brokenSessions) DeleteSession(context.Context, string) error { return errBackendDown }
func (brokenSessions) DeleteExpiredSessions(context.Context) error { return errBackendDown }

type brokenNonces struct{}

func (brokenNonces) ConsumeNonce(context.Context, string, time.Time) error { return errBackendDown }
func (brokenNonces) DeleteExpiredNonces(context.Context) error             { return errBackendDown }
