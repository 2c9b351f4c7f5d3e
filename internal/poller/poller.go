// Package poller waits on slow external render jobs by polling their status
// at a fixed interval under a wall-clock budget. Transport hiccups are
// tolerated up to a bounded streak; budget exhaustion is a distinct terminal
// outcome from job failure.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/services"
)

// State is the externally visible condition of a render job.
type State string

const (
	StatePending   State = "pending"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Status is one observation of a render job.
type Status struct {
	State     State
	ResultURL string
	Reason    string
}

// Backend exposes status checks for submitted jobs.
type Backend interface {
	Status(ctx context.Context, handle string) (Status, error)
}

// Poller repeatedly checks a backend until the job reaches a terminal state
// or the wall-clock budget runs out. Safe for concurrent use; the shared
// rate limiter caps aggregate request rate across all in-flight jobs.
type Poller struct {
	interval     time.Duration
	budget       time.Duration
	maxTransient int
	limiter      *rate.Limiter
	logger       *slog.Logger

	// sleep and now are swapped in tests to avoid real waits.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// Option customizes the poller.
type Option func(*Poller)

// WithSleeper overrides how waits between polls are performed (useful for
// tests).
func WithSleeper(sleeper func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Poller) {
		if sleeper != nil {
			p.sleep = sleeper
		}
	}
}

// WithClock overrides the wall-clock source (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
	}
}

// New builds a poller from configuration.
func New(cfg config.Poller, logger *slog.Logger, opts ...Option) *Poller {
	if logger == nil {
		logger = logging.NewNop()
	}
	interval := time.Duration(cfg.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	budget := time.Duration(cfg.BudgetMinutes) * time.Minute
	if budget <= 0 {
		budget = 20 * time.Minute
	}
	maxTransient := cfg.MaxTransient
	if maxTransient <= 0 {
		maxTransient = 6
	}
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 5
	}
	p := &Poller{
		interval:     interval,
		budget:       budget,
		maxTransient: maxTransient,
		limiter:      rate.NewLimiter(rate.Limit(perSecond), 1),
		logger:       logging.NewComponentLogger(logger, "poller"),
		sleep:        sleepContext,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Wait polls the backend for the job's terminal state. It returns the
// successful status, or ErrTimeout when the budget elapses, or the job's
// failure. Context cancellation abandons the wait immediately.
func (p *Poller) Wait(ctx context.Context, backend Backend, handle string) (Status, error) {
	logger := logging.WithContext(ctx, p.logger)
	deadline := p.now().Add(p.budget)
	transientStreak := 0
	polls := 0

	for {
		if err := ctx.Err(); err != nil {
			return Status{}, err
		}
		if !p.now().Before(deadline) {
			return Status{}, services.Wrap(services.ErrTimeout, "poller", "wait",
				fmt.Sprintf("job %s not terminal after %s (%d polls)", handle, p.budget, polls), nil)
		}
		if err := p.sleep(ctx, p.interval); err != nil {
			return Status{}, err
		}

		if err := p.limiter.Wait(ctx); err != nil {
			return Status{}, err
		}
		status, err := backend.Status(ctx, handle)
		polls++
		if err != nil {
			if !services.IsRetryable(err) {
				return Status{}, err
			}
			transientStreak++
			logger.Warn("poll failed",
				logging.String(logging.FieldJobID, handle),
				logging.Int("transient_streak", transientStreak),
				logging.Error(err))
			if transientStreak >= p.maxTransient {
				return Status{}, services.Wrap(services.ErrTransient, "poller", "wait",
					fmt.Sprintf("job %s: %d consecutive transport failures", handle, transientStreak), err)
			}
			// Exponential backoff on top of the base interval, capped at the
			// remaining budget by the outer deadline check.
			if err := p.sleep(ctx, p.interval*(1<<min(transientStreak-1, 4))); err != nil {
				return Status{}, err
			}
			continue
		}
		transientStreak = 0

		switch status.State {
		case StateSucceeded:
			logger.Info("job succeeded",
				logging.String(logging.FieldJobID, handle),
				logging.Int("polls", polls))
			return status, nil
		case StateFailed:
			return Status{}, fmt.Errorf("poller: job %s failed: %s", handle, status.Reason)
		default:
			logger.Debug("job pending",
				logging.String(logging.FieldJobID, handle),
				logging.Int("polls", polls))
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
