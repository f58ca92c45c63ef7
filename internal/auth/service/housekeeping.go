package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/sok/internal/auth/store"
)

// HousekeepingService periodically purges expired sessions and redeemed
// OAuth2 nonces so the tables do not grow without bound.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService builds the worker. A non-positive interval means
// hourly.
func NewHousekeepingService(store store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:    store,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the worker and returns immediately. The first purge runs
// right away, so call it only once migrations are applied.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping_started", "interval", s.Interval)
}

// Stop blocks until an in-flight purge has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping_stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.cleanup()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup runs each purge independently, a failure in one does not skip
// the others.
func (s *HousekeepingService) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), s.Interval)
	defer cancel()

	purges := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"sessions", s.Store.Sessions().DeleteExpiredSessions},
		{"oauth2_nonces", s.Store.Nonces().DeleteExpiredNonces},
	}

	var ok int
	for _, p := range purges {
		if err := p.fn(ctx); err != nil {
			s.Logger.Error("housekeeping_purge_failed", "table", p.name, "error", err)
			continue
		}
		s.Logger.Debug("housekeeping_purged", "table", p.name)
		ok++
	}

	s.Logger.Info("housekeeping_completed", "successful_cleanups", ok, "total", len(purges))
}
