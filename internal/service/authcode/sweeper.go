package authcode

import (
	"context"
	"fmt"
	"time"

	"github.com/nkiryanov/bemserver/internal/logger"
)

const defaultSweepInterval = 10 * time.Minute

// Delete codes that expired at the manager clock
func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	deleted, err := m.storage.AuthCode().DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("error while deleting expired codes. Err: %w", err)
	}
	return deleted, nil
}

// Purge expired codes on every tick until ctx is done
// Verification never deletes expired codes, so without sweeper they stay forever
type Sweeper struct {
	interval time.Duration
	manager  *Manager
	logger   logger.Logger
}

func NewSweeper(manager *Manager, interval time.Duration, l logger.Logger) *Sweeper {
	if interval == 0 {
		interval = defaultSweepInterval
	}

	return &Sweeper{
		interval: interval,
		manager:  manager,
		logger:   l,
	}
}

// Start sweeping in background
// Returned channel is closed when sweeper stopped
func (s *Sweeper) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})
	s.logger.Debug("Starting code sweeper", "interval", s.interval)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Debug("Code sweeper stopped by context")
				return

			case <-ticker.C:
				deleted, err := s.manager.Sweep(ctx)
				if err != nil {
					s.logger.Error("Failed to sweep expired codes", "error", err)
					continue
				}
				s.logger.Debug("Expired codes swept", "deleted", deleted)
			}
		}
	}()

	return idleStopped
}
