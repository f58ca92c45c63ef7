// Package memory is a process local store driver. Sessions and nonces live in
// size bounded expiring LRUs, users in plain maps. It suits tests and single
// instance deployments where losing sessions on restart is acceptable.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aussiebroadwan/sok/internal/auth/domain"
	"github.com/aussiebroadwan/sok/internal/auth/store"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Options sizes the caches. Once Capacity is reached the least recently
// used session is evicted, which logs that principal out. Nonces are never
// evicted while live; a full ledger refuses new ones instead.
type Options struct {
	Capacity int
	// MaxTTL bounds how long any entry is kept regardless of its own expiry.
	MaxTTL time.Duration
}

const defaultCapacity = 100_000

type Store struct {
	// mu serialises read-modify-write sequences on the LRUs. Plain reads
	// and writes rely on the LRU's own locking.
	mu       sync.Mutex
	sessions *expirable.LRU[string, domain.SessionRecord]
	nonces   *expirable.LRU[string, time.Time]

	users    *usersRepo
	now      func() time.Time
	capacity int
}

func NewStore(opts Options) *Store {
	if opts.Capacity <= 0 {
		opts.Capacity = defaultCapacity
	}

	s := &Store{
		sessions: expirable.NewLRU[string, domain.SessionRecord](opts.Capacity, nil, opts.MaxTTL),
		nonces:   expirable.NewLRU[string, time.Time](opts.Capacity, nil, opts.MaxTTL),
		now:      time.Now,
		capacity: opts.Capacity,
	}
	s.users = newUsersRepo(s)
	return s
}

// SetClock overrides the time source used for expiry checks.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

func (s *Store) Users() store.Users       { return s.users }
func (s *Store) Sessions() store.Sessions { return (*sessionsRepo)(s) }
func (s *Store) Nonces() store.Nonces     { return (*noncesRepo)(s) }

func (s *Store) ApplyMigrations() error         { return nil }
func (s *Store) Close() error                   { s.sessions.Purge(); s.nonces.Purge(); return nil }
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }
