package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/sok/internal/auth/domain"
	"github.com/aussiebroadwan/sok/internal/auth/store"
)

type sessionsRepo struct {
	q   dbtx
	now func() time.Time
}

// PutSession is a single upsert so a concurrent writer can never observe a
// half-replaced row.
func (r *sessionsRepo) PutSession(ctx context.Context, rec domain.SessionRecord) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO sessions (session_key, token_hash, expires_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (session_key) DO UPDATE SET
		     token_hash = excluded.token_hash,
		     expires_at = excluded.expires_at,
		     updated_at = excluded.updated_at`,
		rec.Key, rec.TokenHash, toMillis(rec.ExpiresAt), toMillis(r.now()))
	return err
}

func (r *sessionsRepo) GetSession(ctx context.Context, key string) (domain.SessionRecord, error) {
	var (
		rec                  domain.SessionRecord
		expiresAt, updatedAt int64
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT session_key, token_hash, expires_at, updated_at
		   FROM sessions
		  WHERE session_key = ? AND expires_at > ?`,
		key, toMillis(r.now()),
	).Scan(&rec.Key, &rec.TokenHash, &expiresAt, &updatedAt)
	if err != nil {
		return domain.SessionRecord{}, mapNotFound(err)
	}

	rec.ExpiresAt = fromMillis(expiresAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	return rec, nil
}

// SwapSession is a conditional update, the WHERE clause is the compare half
// of the compare-and-swap.
func (r *sessionsRepo) SwapSession(ctx context.Context, key, expectedHash string, rec domain.SessionRecord) error {
	now := toMillis(r.now())
	res, err := r.q.ExecContext(ctx,
		`UPDATE sessions
		    SET token_hash = ?, expires_at = ?, updated_at = ?
		  WHERE session_key = ? AND token_hash = ? AND expires_at > ?`,
		rec.TokenHash, toMillis(rec.ExpiresAt), now, key, expectedHash, now)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrConflict
	}
	return nil
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, key string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM sessions WHERE session_key = ?`, key)
	return err
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, toMillis(r.now()))
	return err
}
