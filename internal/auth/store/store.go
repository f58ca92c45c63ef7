package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/sok/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrConflict is returned by SwapSession when the stored token is not
	// the one the caller expected.
	ErrConflict = errors.New("store: conflict")
)

// Store is the root data access interface. Concrete drivers (sqlite, memory)
// implement this and expose sub-repositories to keep concerns tidy. Anything
// that must be atomic is a single repository method, so drivers without
// transactions can still honour it.
type Store interface {
	Users() Users
	Sessions() Sessions
	Nonces() Nonces

	// ApplyMigrations brings the schema up to date. A no-op for drivers
	// without a schema.
	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the backend is still reachable.
	Ping(ctx context.Context) error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used by local login and OAuth2 email matching.
	// Emails compare case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// GetUserByIdentity finds the user linked to an external account.
	GetUserByIdentity(ctx context.Context, provider, subject string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	// Returns ErrAlreadyExists on a duplicate email.
	CreateUser(ctx context.Context, u domain.User) error

	// CreateUserWithIdentity inserts a user and its first external identity
	// atomically.
	CreateUserWithIdentity(ctx context.Context, u domain.User, id domain.Identity) error

	// LinkIdentity attaches an external identity to an existing user.
	// Returns ErrAlreadyExists if the identity is linked already.
	LinkIdentity(ctx context.Context, id domain.Identity) error

	// UpdateStatus sets the account status and bumps updated_at.
	UpdateStatus(ctx context.Context, userID string, status domain.Status) error
}

// Sessions tracks the single valid refresh token per session key.
type Sessions interface {
	// PutSession unconditionally replaces whatever is stored under rec.Key
	// in one atomic step.
	PutSession(ctx context.Context, rec domain.SessionRecord) error

	// GetSession returns the live record for key. Expired records are
	// reported as ErrNotFound.
	GetSession(ctx context.Context, key string) (domain.SessionRecord, error)

	// SwapSession replaces the record only if the stored fingerprint equals
	// expectedHash and is not expired, otherwise ErrConflict.
	SwapSession(ctx context.Context, key, expectedHash string, rec domain.SessionRecord) error

	// DeleteSession removes the record. Deleting a missing key is not an error.
	DeleteSession(ctx context.Context, key string) error

	// DeleteExpiredSessions is optional housekeeping.
	DeleteExpiredSessions(ctx context.Context) error
}

// Nonces remembers OAuth2 state nonces that were already redeemed so a
// replayed callback can be told apart from a fresh one.
type Nonces interface {
	// ConsumeNonce records nonce as used until expiresAt. Returns
	// ErrAlreadyExists if it was consumed before.
	ConsumeNonce(ctx context.Context, nonce string, expiresAt time.Time) error

	// DeleteExpiredNonces is optional housekeeping.
	DeleteExpiredNonces(ctx context.Context) error
}
