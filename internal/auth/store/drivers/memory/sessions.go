package memory

import (
	"context"

	"github.com/aussiebroadwan/sok/internal/auth/domain"
	"github.com/aussiebroadwan/sok/internal/auth/store"
)

type sessionsRepo Store

func (r *sessionsRepo) PutSession(ctx context.Context, rec domain.SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec.UpdatedAt = r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions.Add(rec.Key, rec)
	return nil
}

func (r *sessionsRepo) GetSession(ctx context.Context, key string) (domain.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.SessionRecord{}, err
	}

	rec, ok := r.sessions.Get(key)
	if !ok || rec.Expired(r.now()) {
		return domain.SessionRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (r *sessionsRepo) SwapSession(ctx context.Context, key, expectedHash string, rec domain.SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.sessions.Peek(key)
	if !ok || cur.Expired(r.now()) || cur.TokenHash != expectedHash {
		return store.ErrConflict
	}

	rec.UpdatedAt = r.now()
	r.sessions.Add(key, rec)
	return nil
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions.Remove(key)
	return nil
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for _, key := range r.sessions.Keys() {
		if rec, ok := r.sessions.Peek(key); ok && rec.Expired(now) {
			r.sessions.Remove(key)
		}
	}
	return ctx.Err()
}
