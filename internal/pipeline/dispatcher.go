package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"loom/internal/logging"
	"loom/internal/store"
)

// RunRecorder is the slice of the store the dispatcher persists outcomes
// through.
type RunRecorder interface {
	RecordRun(ctx context.Context, run *store.Run) (*store.Run, error)
	UpdateChannelLastRun(ctx context.Context, channelID int64, at time.Time, outcome store.RunOutcome, costCents int64, runErr string) error
}

type inflightJob struct {
	job    *Job
	cancel context.CancelFunc
}

// Dispatcher launches pipeline jobs under a parallelism cap while enforcing
// at most one in-flight job per channel. Dispatch never blocks: when the cap
// is reached the channel is skipped and picked up on a later tick.
type Dispatcher struct {
	runner   *Runner
	recorder RunRecorder
	logger   *slog.Logger
	sem      *semaphore.Weighted

	mu       sync.Mutex
	inflight map[int64]*inflightJob
	wg       sync.WaitGroup
}

// NewDispatcher builds a dispatcher running at most maxConcurrent jobs.
func NewDispatcher(runner *Runner, recorder RunRecorder, maxConcurrent int, logger *slog.Logger) *Dispatcher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Dispatcher{
		runner:   runner,
		recorder: recorder,
		logger:   logging.NewComponentLogger(logger, "dispatcher"),
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		inflight: make(map[int64]*inflightJob),
	}
}

// Dispatch starts a job for the channel unless one is already in flight or
// the parallelism cap is reached. Reports whether a job was started.
func (d *Dispatcher) Dispatch(ctx context.Context, channel *store.Channel) bool {
	if !d.sem.TryAcquire(1) {
		d.logger.Debug("parallelism cap reached, skipping channel",
			logging.Int64(logging.FieldChannelID, channel.ID))
		return false
	}

	d.mu.Lock()
	if _, exists := d.inflight[channel.ID]; exists {
		d.mu.Unlock()
		d.sem.Release(1)
		d.logger.Debug("job already in flight, skipping channel",
			logging.Int64(logging.FieldChannelID, channel.ID))
		return false
	}
	job := NewJob(channel)
	jobCtx, cancel := context.WithCancel(ctx)
	d.inflight[channel.ID] = &inflightJob{job: job, cancel: cancel}
	d.mu.Unlock()

	d.wg.Add(1)
	go d.run(jobCtx, cancel, job)
	return true
}

func (d *Dispatcher) run(ctx context.Context, cancel context.CancelFunc, job *Job) {
	defer d.wg.Done()
	defer d.sem.Release(1)
	defer cancel()
	defer func() {
		d.mu.Lock()
		delete(d.inflight, job.Channel.ID)
		d.mu.Unlock()
	}()

	result := d.runner.Run(ctx, job)
	finishedAt := time.Now().UTC()

	// Persist with a fresh context: the job context may already be canceled.
	recordCtx, recordCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer recordCancel()

	if _, err := d.recorder.RecordRun(recordCtx, result.Run(job, finishedAt)); err != nil {
		d.logger.Error("record run failed",
			logging.Int64(logging.FieldChannelID, job.Channel.ID),
			logging.Error(err))
	}
	if err := d.recorder.UpdateChannelLastRun(recordCtx, job.Channel.ID, finishedAt,
		result.Outcome, result.CostCents, result.ErrorMessage); err != nil {
		d.logger.Error("update channel last run failed",
			logging.Int64(logging.FieldChannelID, job.Channel.ID),
			logging.Error(err))
	}
	d.logger.Info("job finished",
		logging.Int64(logging.FieldChannelID, job.Channel.ID),
		logging.String(logging.FieldJobID, job.ID),
		logging.String("outcome", string(result.Outcome)),
		logging.Int64(logging.FieldCostCents, result.CostCents))
}

// CancelChannel aborts the channel's in-flight job, if any. Used when a
// channel is disabled mid-production; polling abandons and no cost commits.
func (d *Dispatcher) CancelChannel(channelID int64) bool {
	d.mu.Lock()
	entry, ok := d.inflight[channelID]
	d.mu.Unlock()
	if !ok {
		return false
	}
	entry.cancel()
	return true
}

// InflightStages returns the current stage of every in-flight job keyed by
// channel ID, for status surfaces.
func (d *Dispatcher) InflightStages() map[int64]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	stages := make(map[int64]string, len(d.inflight))
	for channelID, entry := range d.inflight {
		stages[channelID] = string(entry.job.Stage())
	}
	return stages
}

// Wait blocks until every in-flight job has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
