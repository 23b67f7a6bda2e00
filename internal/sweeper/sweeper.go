// Package sweeper periodically forces TIMEOUT transitions on conversations
// inactive beyond the threshold. It is one of two timeout drivers; the
// engine also evaluates timeouts lazily on load, and both issue the same
// synthetic event.
package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"commerce-agent/internal/domain"
)

// InactiveLister finds conversations due for a timeout.
type InactiveLister interface {
	ListInactive(ctx context.Context, cutoff time.Time, exempt []domain.State) ([]string, error)
}

// TimeoutForcer issues a synthetic TIMEOUT transition.
type TimeoutForcer interface {
	ForceTimeout(ctx context.Context, customerID string) error
}

// exemptStates never time out.
var exemptStates = []domain.State{
	domain.StateIdle,
	domain.StateCompleted,
	domain.StateAwaitingHuman,
}

// Sweeper runs timeout sweeps on an interval.
type Sweeper struct {
	store     InactiveLister
	engine    TimeoutForcer
	threshold time.Duration
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Sweeper with the given inactivity threshold and sweep
// interval.
func New(store InactiveLister, engine TimeoutForcer, threshold, interval time.Duration, logger *slog.Logger) (*Sweeper, error) {
	if store == nil {
		return nil, errors.New("sweeper: store must not be nil")
	}
	if engine == nil {
		return nil, errors.New("sweeper: engine must not be nil")
	}
	if threshold <= 0 || interval <= 0 {
		return nil, errors.New("sweeper: threshold and interval must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:     store,
		engine:    engine,
		threshold: threshold,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Sweep performs one pass and returns how many conversations were timed
// out. Per-conversation failures are logged and do not stop the pass; a
// conversation that was advanced concurrently simply fails its transition
// and is picked up again if still due.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.threshold)
	ids, err := s.store.ListInactive(ctx, cutoff, exemptStates)
	if err != nil {
		return 0, err
	}
	swept := 0
	for _, id := range ids {
		if err := s.engine.ForceTimeout(ctx, id); err != nil {
			s.logger.Error("timeout sweep failed for conversation", "customer_id", id, "err", err)
			continue
		}
		swept++
	}
	return swept, nil
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if swept, err := s.Sweep(ctx); err != nil {
				s.logger.Error("timeout sweep pass failed", "err", err)
			} else if swept > 0 {
				s.logger.Info("timeout sweep complete", "swept", swept)
			}
		}
	}
}
