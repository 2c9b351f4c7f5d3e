package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"
	"log/slog"

	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/notifications"
	"loom/internal/pipeline"
	"loom/internal/scheduler"
	"loom/internal/store"
)

// Daemon owns the scheduler lifecycle and the single-instance lock.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *store.Store
	scheduler  *scheduler.Scheduler
	dispatcher *pipeline.Dispatcher

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status is the daemon runtime snapshot surfaced over IPC.
type Status struct {
	Running      bool
	PID          int
	DBPath       string
	LockFilePath string
	Inflight     map[int64]string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, sched *scheduler.Scheduler, dispatcher *pipeline.Dispatcher, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || sched == nil || dispatcher == nil {
		return nil, errors.New("daemon requires config, store, scheduler, and dispatcher")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := filepath.Join(cfg.Paths.DataDir, "loomd.lock")
	return &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		store:      st,
		scheduler:  sched,
		dispatcher: dispatcher,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and launches the scheduler loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another loom daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.scheduler.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start scheduler: %w", err)
	}
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("loom daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts the scheduler, waits for in-flight productions, and releases
// the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.scheduler.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("loom daemon stopped")
}

// Close stops the daemon and releases its resources.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether the scheduler loop is active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DBPath:       d.store.Path(),
		LockFilePath: d.lockPath,
		Inflight:     d.dispatcher.InflightStages(),
	}
}

// Tick runs one scheduling pass immediately, outside the cron cadence.
func (d *Daemon) Tick(ctx context.Context) error {
	if !d.running.Load() {
		return errors.New("daemon is not running")
	}
	return d.scheduler.Tick(ctx)
}

// Channels lists every configured channel.
func (d *Daemon) Channels(ctx context.Context) ([]*store.Channel, error) {
	return d.store.ListChannels(ctx)
}

// InflightStages reports the pipeline stage of each in-flight job.
func (d *Daemon) InflightStages() map[int64]string {
	return d.dispatcher.InflightStages()
}

// Runs returns recent production run records, optionally scoped to one
// channel.
func (d *Daemon) Runs(ctx context.Context, channelID int64, limit int) ([]*store.Run, error) {
	if channelID > 0 {
		return d.store.ListRunsForChannel(ctx, channelID, limit)
	}
	return d.store.ListRuns(ctx, limit)
}

// TestNotification sends a test push through the configured notifier.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
