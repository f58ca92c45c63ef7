package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/sok/internal/auth/store"
)

type noncesRepo struct {
	q   dbtx
	now func() time.Time
}

// ConsumeNonce inserts the nonce, or revives a row that has already expired.
// A live row means the nonce was redeemed before.
func (r *noncesRepo) ConsumeNonce(ctx context.Context, nonce string, expiresAt time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO oauth2_nonces (nonce, expires_at) VALUES (?, ?)
		 ON CONFLICT (nonce) DO UPDATE SET expires_at = excluded.expires_at
		  WHERE oauth2_nonces.expires_at <= ?`,
		nonce, toMillis(expiresAt), toMillis(r.now()))
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrAlreadyExists
	}
	return nil
}

func (r *noncesRepo) DeleteExpiredNonces(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM oauth2_nonces WHERE expires_at <= ?`, toMillis(r.now()))
	return err
}
