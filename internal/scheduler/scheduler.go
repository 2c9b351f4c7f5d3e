// Package scheduler runs the production loop: a cron-driven tick that finds
// due channels, gates them on budget headroom, and hands them to the
// pipeline dispatcher. Ticks never block on pipeline completion; a channel
// that misses capacity is simply picked up on a later tick.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"loom/internal/config"
	"loom/internal/ledger"
	"loom/internal/logging"
	"loom/internal/notifications"
	"loom/internal/pipeline"
	"loom/internal/services"
	"loom/internal/store"
)

// Scheduler owns the tick loop and the daily budget reset.
type Scheduler struct {
	store      *store.Store
	ledger     *ledger.Ledger
	dispatcher *pipeline.Dispatcher
	notifier   notifications.Service
	logger     *slog.Logger

	tickInterval time.Duration
	resetWindow  time.Duration
	costCents    int64

	cron    *cron.Cron
	tickMu  sync.Mutex
	baseCtx context.Context
	cancel  context.CancelFunc

	now func() time.Time
}

// Option customizes the scheduler.
type Option func(*Scheduler)

// WithClock overrides the wall-clock source (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds the scheduler. Start must be called to begin ticking.
func New(cfg *config.Config, st *store.Store, led *ledger.Ledger, dispatcher *pipeline.Dispatcher, notifier notifications.Service, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(&config.Config{})
	}
	tick := time.Duration(cfg.Scheduler.TickSeconds) * time.Second
	if tick <= 0 {
		tick = time.Hour
	}
	window := time.Duration(cfg.Scheduler.ResetWindowMinutes) * time.Minute
	if window <= 0 {
		window = 5 * time.Minute
	}
	s := &Scheduler{
		store:        st,
		ledger:       led,
		dispatcher:   dispatcher,
		notifier:     notifier,
		logger:       logging.NewComponentLogger(logger, "scheduler"),
		tickInterval: tick,
		resetWindow:  window,
		costCents:    cfg.Production.CostPerVideoCents,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the cron entries and begins ticking. The first tick runs
// after one interval; callers wanting an immediate pass use Tick directly.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cron != nil {
		return fmt.Errorf("scheduler already started")
	}
	s.baseCtx, s.cancel = context.WithCancel(ctx)
	s.cron = cron.New(cron.WithLocation(time.UTC))

	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.tickInterval), func() {
		if err := s.Tick(s.baseCtx); err != nil {
			s.logger.Error("tick failed", logging.Error(err))
			_ = s.notifier.NotifyError(s.baseCtx, err, "scheduler tick")
		}
	}); err != nil {
		return fmt.Errorf("register tick entry: %w", err)
	}
	// Midnight entry guarantees the reset even when the tick interval is
	// long enough to skip the window entirely.
	if _, err := s.cron.AddFunc("@midnight", func() {
		if _, err := s.ledger.ResetDaily(s.baseCtx, s.now()); err != nil {
			s.logger.Error("daily reset failed", logging.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("register reset entry: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		logging.Duration("tick_interval", s.tickInterval),
		logging.Duration("reset_window", s.resetWindow))
	return nil
}

// Stop halts the cron loop and waits for in-flight pipelines to finish.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		stopCtx := s.cron.Stop()
		<-stopCtx.Done()
		s.cron = nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.dispatcher.Wait()
	s.logger.Info("scheduler stopped")
}

// Tick runs one scheduling pass. Exposed for the IPC manual trigger.
// Overlapping ticks are serialized; a tick that arrives while another is
// still dispatching waits rather than doubling up.
func (s *Scheduler) Tick(ctx context.Context) error {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	now := s.now()
	s.maybeResetDaily(ctx, now)

	channels, err := s.store.ListActiveChannels(ctx)
	if err != nil {
		return fmt.Errorf("list active channels: %w", err)
	}
	s.cancelDeactivated(channels)

	dispatched := 0
	for _, channel := range channels {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !IsDue(channel, now) {
			continue
		}
		if ok, err := s.admit(ctx, channel); err != nil {
			// Per-channel evaluation errors skip the channel, never the tick.
			s.logger.Error("channel evaluation failed",
				logging.Int64(logging.FieldChannelID, channel.ID),
				logging.Error(err))
			continue
		} else if !ok {
			continue
		}
		if s.dispatcher.Dispatch(ctx, channel) {
			dispatched++
			s.logger.Info("channel dispatched",
				logging.Int64(logging.FieldChannelID, channel.ID),
				logging.String(logging.FieldPlatform, channel.Platform))
		}
	}
	s.logger.Info("tick complete",
		logging.Int("active_channels", len(channels)),
		logging.Int("dispatched", dispatched))
	return nil
}

// admit applies the pre-dispatch budget gates. Advisory only: the ledger
// re-checks atomically at commit time.
func (s *Scheduler) admit(ctx context.Context, channel *store.Channel) (bool, error) {
	if err := s.ledger.CheckDaily(ctx, channel.ID, s.costCents); err != nil {
		if errors.Is(err, services.ErrBudgetExceeded) {
			s.logger.Info("daily budget exhausted, skipping channel",
				logging.Int64(logging.FieldChannelID, channel.ID))
			_ = s.notifier.NotifyBudgetExhausted(ctx, "Daily", channel.Username)
			return false, nil
		}
		return false, err
	}
	if err := s.ledger.CheckCampaign(ctx, channel.CampaignID, s.costCents); err != nil {
		if errors.Is(err, services.ErrBudgetExceeded) {
			s.logger.Info("campaign budget exhausted, skipping channel",
				logging.Int64(logging.FieldChannelID, channel.ID),
				logging.Int64(logging.FieldCampaignID, channel.CampaignID))
			_ = s.notifier.NotifyBudgetExhausted(ctx, "Campaign", fmt.Sprintf("campaign %d", channel.CampaignID))
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// cancelDeactivated aborts in-flight jobs for channels that are no longer
// active. Polling abandons and no cost commits for the canceled job.
func (s *Scheduler) cancelDeactivated(active []*store.Channel) {
	inflight := s.dispatcher.InflightStages()
	if len(inflight) == 0 {
		return
	}
	activeIDs := make(map[int64]struct{}, len(active))
	for _, channel := range active {
		activeIDs[channel.ID] = struct{}{}
	}
	for channelID := range inflight {
		if _, ok := activeIDs[channelID]; ok {
			continue
		}
		if s.dispatcher.CancelChannel(channelID) {
			s.logger.Info("canceled job for deactivated channel",
				logging.Int64(logging.FieldChannelID, channelID))
		}
	}
}

// maybeResetDaily applies the daily counter reset when the tick lands inside
// the midnight UTC window. The ledger's persisted day guard makes repeated
// calls within the window idempotent.
func (s *Scheduler) maybeResetDaily(ctx context.Context, now time.Time) {
	utc := now.UTC()
	midnight := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	if utc.Sub(midnight) >= s.resetWindow {
		return
	}
	applied, err := s.ledger.ResetDaily(ctx, utc)
	if err != nil {
		s.logger.Error("daily reset failed", logging.Error(err))
		return
	}
	if applied {
		s.logger.Info("daily budgets reset within window")
	}
}
