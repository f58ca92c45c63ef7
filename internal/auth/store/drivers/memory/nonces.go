package memory

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/sok/internal/auth/store"
)

// ErrNonceLedgerFull is returned when every slot holds a nonce that is
// still live. Evicting one would let its state be replayed.
var ErrNonceLedgerFull = errors.New("memory: nonce ledger full")

type noncesRepo Store

func (r *noncesRepo) ConsumeNonce(ctx context.Context, nonce string, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	exp, seen := r.nonces.Peek(nonce)
	if seen && r.now().Before(exp) {
		return store.ErrAlreadyExists
	}
	if !seen && r.nonces.Len() >= r.capacity {
		r.purgeExpiredNonces()
		if r.nonces.Len() >= r.capacity {
			return ErrNonceLedgerFull
		}
	}
	r.nonces.Add(nonce, expiresAt)
	return nil
}

// purgeExpiredNonces must be called with mu held.
func (r *noncesRepo) purgeExpiredNonces() {
	now := r.now()
	for _, key := range r.nonces.Keys() {
		if exp, ok := r.nonces.Peek(key); ok && !now.Before(exp) {
			r.nonces.Remove(key)
		}
	}
}

func (r *noncesRepo) DeleteExpiredNonces(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.purgeExpiredNonces()
	return ctx.Err()
}
