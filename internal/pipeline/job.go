// Package pipeline executes the production state machine that turns a due
// channel into a published video: analysis, persona, script, storyboard,
// render submission, polling, artifact storage, budget commit, publish.
// Jobs are transient; only their terminal outcome is persisted as a run
// record.
package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"loom/internal/store"
)

// Stage is a production job's position in the state machine.
type Stage string

const (
	StagePendingAnalysis Stage = "pending_analysis"
	StagePersonaReady    Stage = "persona_ready"
	StageScriptReady     Stage = "script_ready"
	StageStoryboardReady Stage = "storyboard_ready"
	StageJobSubmitted    Stage = "job_submitted"
	StageJobPolling      Stage = "job_polling"
	StageAssetReady      Stage = "asset_ready"
	StagePublished       Stage = "published"
	StageFailed          Stage = "failed"
	StagePublishFailed   Stage = "publish_failed"
)

// Job is one in-flight production attempt for a channel. The channel data is
// a snapshot taken at dispatch time; budget state is always re-checked
// against the store at commit.
type Job struct {
	ID        string
	Channel   *store.Channel
	StartedAt time.Time

	mu          sync.Mutex
	stage       Stage
	handle      string
	artifactURL string
	remoteURL   string
	costCents   int64
}

// NewJob snapshots the channel into a fresh job.
func NewJob(channel *store.Channel) *Job {
	return &Job{
		ID:        uuid.NewString(),
		Channel:   channel,
		StartedAt: time.Now().UTC(),
		stage:     StagePendingAnalysis,
	}
}

// Stage returns the job's current stage.
func (j *Job) Stage() Stage {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stage
}

func (j *Job) setStage(stage Stage) {
	j.mu.Lock()
	j.stage = stage
	j.mu.Unlock()
}

// Handle returns the external render task handle, when submitted.
func (j *Job) Handle() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.handle
}

func (j *Job) setHandle(handle string) {
	j.mu.Lock()
	j.handle = handle
	j.mu.Unlock()
}

// ArtifactURL returns the durable artifact reference, when stored.
func (j *Job) ArtifactURL() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.artifactURL
}

func (j *Job) setArtifactURL(url string) {
	j.mu.Lock()
	j.artifactURL = url
	j.mu.Unlock()
}

// CostCents returns the committed production cost, zero until commit.
func (j *Job) CostCents() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.costCents
}

func (j *Job) setCostCents(cents int64) {
	j.mu.Lock()
	j.costCents = cents
	j.mu.Unlock()
}

// RemoteURL returns the platform post reference, when published.
func (j *Job) RemoteURL() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.remoteURL
}

func (j *Job) setRemoteURL(url string) {
	j.mu.Lock()
	j.remoteURL = url
	j.mu.Unlock()
}

// Result is the terminal outcome of a finished job, ready to persist.
type Result struct {
	Outcome      store.RunOutcome
	Stage        Stage
	CostCents    int64
	ArtifactURL  string
	RemoteURL    string
	ErrorMessage string
}

// Run converts the result into a store record for the job.
func (r Result) Run(job *Job, finishedAt time.Time) *store.Run {
	return &store.Run{
		ChannelID:    job.Channel.ID,
		JobID:        job.ID,
		Outcome:      r.Outcome,
		Stage:        string(r.Stage),
		CostCents:    r.CostCents,
		ArtifactURL:  r.ArtifactURL,
		RemoteURL:    r.RemoteURL,
		ErrorMessage: r.ErrorMessage,
		StartedAt:    job.StartedAt,
		FinishedAt:   finishedAt.UTC(),
	}
}
