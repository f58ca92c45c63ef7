package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/sok/internal/auth/domain"
	"github.com/aussiebroadwan/sok/internal/auth/store"
)

type usersRepo struct {
	s *Store
	q dbtx
}

const userColumns = `id, email, name, password_hash, authorities, status, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var (
		u                    domain.User
		email                sql.NullString
		authorities, status  string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&u.ID, &email, &u.Name, &u.PasswordHash, &authorities, &status, &createdAt, &updatedAt); err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.Email = email.String
	u.Authorities = splitFields(authorities)
	u.Status = domain.Status(status)
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	if email == "" {
		return domain.User{}, store.ErrNotFound
	}
	return scanUser(r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

func (r *usersRepo) GetUserByIdentity(ctx context.Context, provider, subject string) (domain.User, error) {
	return scanUser(r.q.QueryRowContext(ctx,
		`SELECT u.id, u.email, u.name, u.password_hash, u.authorities, u.status, u.created_at, u.updated_at
		   FROM users u
		   JOIN identities i ON i.user_id = u.id
		  WHERE i.provider = ? AND i.subject = ?`,
		provider, subject))
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	return createUser(ctx, r.q, u, r.s.now())
}

func (r *usersRepo) CreateUserWithIdentity(ctx context.Context, u domain.User, id domain.Identity) error {
	now := r.s.now()
	return r.s.WithTx(ctx, func(q dbtx) error {
		if err := createUser(ctx, q, u, now); err != nil {
			return err
		}
		id.UserID = u.ID
		return linkIdentity(ctx, q, id, now)
	})
}

func (r *usersRepo) LinkIdentity(ctx context.Context, id domain.Identity) error {
	return linkIdentity(ctx, r.q, id, r.s.now())
}

func (r *usersRepo) UpdateStatus(ctx context.Context, userID string, status domain.Status) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), toMillis(r.s.now()), userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func createUser(ctx context.Context, q dbtx, u domain.User, now time.Time) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID,
		mapStringNull(u.Email),
		u.Name,
		u.PasswordHash,
		joinFields(u.Authorities),
		string(u.Status),
		toMillis(now),
		toMillis(now),
	)
	return mapConstraint(err)
}

func linkIdentity(ctx context.Context, q dbtx, id domain.Identity, now time.Time) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO identities (provider, subject, user_id, email, created_at) VALUES (?, ?, ?, ?, ?)`,
		id.Provider, id.Subject, id.UserID, id.Email, toMillis(now))
	return mapConstraint(err)
}
