package poller_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"loom/internal/config"
	"loom/internal/poller"
	"loom/internal/services"
)

// fakeClock advances only when the poller sleeps.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return ctx.Err()
}

type scriptedBackend struct {
	mu       sync.Mutex
	statuses []poller.Status
	errs     []error
	calls    int
}

func (b *scriptedBackend) Status(ctx context.Context, handle string) (poller.Status, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := b.calls
	b.calls++
	if idx < len(b.errs) && b.errs[idx] != nil {
		return poller.Status{}, b.errs[idx]
	}
	if idx >= len(b.statuses) {
		return b.statuses[len(b.statuses)-1], nil
	}
	return b.statuses[idx], nil
}

func newTestPoller(clock *fakeClock, cfg config.Poller) *poller.Poller {
	if cfg.IntervalSeconds == 0 {
		cfg.IntervalSeconds = 10
	}
	if cfg.BudgetMinutes == 0 {
		cfg.BudgetMinutes = 20
	}
	if cfg.RatePerSecond == 0 {
		cfg.RatePerSecond = 1000
	}
	return poller.New(cfg, nil,
		poller.WithSleeper(clock.Sleep),
		poller.WithClock(clock.Now))
}

func TestWaitSucceedsAfterPendingPolls(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, time.March, 7, 10, 0, 0, 0, time.UTC)}
	backend := &scriptedBackend{statuses: []poller.Status{
		{State: poller.StatePending},
		{State: poller.StatePending},
		{State: poller.StateSucceeded, ResultURL: "https://cdn.example/video.mp4"},
	}}
	p := newTestPoller(clock, config.Poller{})

	status, err := p.Wait(context.Background(), backend, "task-1")
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if status.ResultURL != "https://cdn.example/video.mp4" {
		t.Errorf("result url = %q", status.ResultURL)
	}
	if backend.calls != 3 {
		t.Errorf("polls = %d, want 3", backend.calls)
	}
}

func TestWaitTimesOutWhenBudgetElapses(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, time.March, 7, 10, 0, 0, 0, time.UTC)}
	backend := &scriptedBackend{statuses: []poller.Status{{State: poller.StatePending}}}
	p := newTestPoller(clock, config.Poller{IntervalSeconds: 10, BudgetMinutes: 20})

	_, err := p.Wait(context.Background(), backend, "task-1")
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	// 20 minutes at one poll per 10 seconds.
	if backend.calls != 120 {
		t.Errorf("polls = %d, want 120", backend.calls)
	}
}

func TestWaitToleratesTransientStreakThenSucceeds(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, time.March, 7, 10, 0, 0, 0, time.UTC)}
	transient := services.Wrap(services.ErrTransient, "render", "status", "dns lookup", nil)
	backend := &scriptedBackend{
		errs: []error{transient, transient, transient, nil},
		statuses: []poller.Status{
			{}, {}, {},
			{State: poller.StateSucceeded, ResultURL: "u"},
		},
	}
	p := newTestPoller(clock, config.Poller{MaxTransient: 6})

	status, err := p.Wait(context.Background(), backend, "task-1")
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if status.State != poller.StateSucceeded {
		t.Errorf("state = %q", status.State)
	}
}

func TestWaitGivesUpAfterMaxTransientStreak(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, time.March, 7, 10, 0, 0, 0, time.UTC)}
	transient := services.Wrap(services.ErrTransient, "render", "status", "connection reset", nil)
	backend := &scriptedBackend{
		errs:     []error{transient, transient, transient},
		statuses: []poller.Status{{}, {}, {}},
	}
	p := newTestPoller(clock, config.Poller{MaxTransient: 3})

	_, err := p.Wait(context.Background(), backend, "task-1")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("error = %v, want ErrTransient", err)
	}
	if backend.calls != 3 {
		t.Errorf("polls = %d, want 3", backend.calls)
	}
}

func TestWaitReturnsJobFailure(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, time.March, 7, 10, 0, 0, 0, time.UTC)}
	backend := &scriptedBackend{statuses: []poller.Status{
		{State: poller.StatePending},
		{State: poller.StateFailed, Reason: "content policy"},
	}}
	p := newTestPoller(clock, config.Poller{})

	_, err := p.Wait(context.Background(), backend, "task-1")
	if err == nil {
		t.Fatal("expected failure")
	}
	if errors.Is(err, services.ErrTimeout) || errors.Is(err, services.ErrTransient) {
		t.Errorf("job failure misclassified: %v", err)
	}
}

func TestWaitAbandonsOnCancel(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, time.March, 7, 10, 0, 0, 0, time.UTC)}
	backend := &scriptedBackend{statuses: []poller.Status{{State: poller.StatePending}}}
	p := newTestPoller(clock, config.Poller{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Wait(ctx, backend, "task-1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}
