package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/notifications"
	"loom/internal/poller"
	"loom/internal/services"
	"loom/internal/services/analysis"
	"loom/internal/services/persona"
	"loom/internal/services/publish"
	"loom/internal/services/script"
	"loom/internal/store"
	"loom/internal/storyboard"
)

// Catalog is the slice of the store the runner reads and caches through.
type Catalog interface {
	GetProduct(ctx context.Context, id int64) (*store.Product, error)
	SaveCachedAnalysis(ctx context.Context, productID int64, analysisJSON string) error
	SavePersonaIfAbsent(ctx context.Context, channelID int64, personaJSON string) (string, error)
}

// Budget commits production spend atomically against daily and monthly caps.
type Budget interface {
	Commit(ctx context.Context, channelID, campaignID, costCents int64, uploadedAt time.Time) error
}

// AnalysisProvider produces product analyses.
type AnalysisProvider interface {
	Analyze(ctx context.Context, product *store.Product) (*analysis.Result, string, error)
}

// PersonaProvider produces channel personas.
type PersonaProvider interface {
	Generate(ctx context.Context, platform string, a *analysis.Result) (*persona.Result, string, error)
}

// ScriptProvider produces the selected script from candidate generations.
type ScriptProvider interface {
	Generate(ctx context.Context, per *persona.Result, a *analysis.Result, candidates int, selection string) (*script.Result, error)
}

// RenderBackend submits storyboards, reports task status, and serves the
// finished video bytes.
type RenderBackend interface {
	poller.Backend
	Submit(ctx context.Context, sb *storyboard.Storyboard) (string, error)
	Fetch(ctx context.Context, resultURL string) ([]byte, error)
}

// Waiter blocks until a render task reaches a terminal state.
type Waiter interface {
	Wait(ctx context.Context, backend poller.Backend, handle string) (poller.Status, error)
}

// ArtifactStore uploads finished videos to durable storage.
type ArtifactStore interface {
	Upload(ctx context.Context, jobID string, video []byte) (string, error)
}

// Captioner produces the post caption.
type Captioner interface {
	Caption(productName string, per *persona.Result) string
}

// Runner drives one job through every stage. It is stateless across jobs
// and safe for concurrent use.
type Runner struct {
	catalog    Catalog
	budget     Budget
	analysis   AnalysisProvider
	persona    PersonaProvider
	script     ScriptProvider
	render     RenderBackend
	waiter     Waiter
	artifacts  ArtifactStore
	publishers *publish.Registry
	captioner  Captioner
	notifier   notifications.Service
	logger     *slog.Logger

	production     config.Production
	publishEnabled bool
}

// RunnerDeps collects the runner's collaborators.
type RunnerDeps struct {
	Catalog    Catalog
	Budget     Budget
	Analysis   AnalysisProvider
	Persona    PersonaProvider
	Script     ScriptProvider
	Render     RenderBackend
	Waiter     Waiter
	Artifacts  ArtifactStore
	Publishers *publish.Registry
	Captioner  Captioner
	Notifier   notifications.Service
	Logger     *slog.Logger
}

// NewRunner builds a runner from configuration and collaborators.
func NewRunner(cfg *config.Config, deps RunnerDeps) *Runner {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(&config.Config{})
	}
	return &Runner{
		catalog:        deps.Catalog,
		budget:         deps.Budget,
		analysis:       deps.Analysis,
		persona:        deps.Persona,
		script:         deps.Script,
		render:         deps.Render,
		waiter:         deps.Waiter,
		artifacts:      deps.Artifacts,
		publishers:     deps.Publishers,
		captioner:      deps.Captioner,
		notifier:       notifier,
		logger:         logging.NewComponentLogger(logger, "pipeline"),
		production:     cfg.Production,
		publishEnabled: cfg.Publish.Enabled,
	}
}

// Run executes the job to a terminal outcome. Errors never escape; they are
// folded into the returned result.
func (r *Runner) Run(ctx context.Context, job *Job) Result {
	channel := job.Channel
	ctx = logging.WithChannelID(ctx, channel.ID)
	ctx = logging.WithJobID(ctx, job.ID)
	logger := logging.WithContext(ctx, r.logger)

	a, per, err := r.prepareContent(ctx, job, logger)
	if err != nil {
		return r.fail(ctx, job, logger, err)
	}

	selected, err := r.script.Generate(ctx, per, a, r.production.ScriptCandidates, r.production.Selection)
	if err != nil {
		return r.fail(ctx, job, logger, err)
	}
	job.setStage(StageScriptReady)

	sb, findings, err := storyboard.Build(selected.Dialogues(), r.production.TotalSeconds)
	if err != nil {
		return r.fail(ctx, job, logger, err)
	}
	for _, finding := range findings {
		logger.Warn("script_contract_risk",
			logging.Int("scene", finding.SceneIndex+1),
			logging.Int("word_count", finding.WordCount),
			logging.String("band", fmt.Sprintf("%d-%d", finding.Min, finding.Max)))
	}
	job.setStage(StageStoryboardReady)

	handle, err := r.submitWithRetry(ctx, sb, logger)
	if err != nil {
		return r.fail(ctx, job, logger, err)
	}
	job.setHandle(handle)
	job.setStage(StageJobSubmitted)
	logger.Info("render task submitted", logging.String("handle", handle))

	job.setStage(StageJobPolling)
	status, err := r.waiter.Wait(logging.WithStage(ctx, string(StageJobPolling)), r.render, handle)
	if err != nil {
		if errors.Is(err, services.ErrTimeout) {
			job.setStage(StageFailed)
			logger.Warn("render task timed out", logging.Error(err))
			return Result{Outcome: store.RunTimeout, Stage: StageFailed, ErrorMessage: err.Error()}
		}
		return r.fail(ctx, job, logger, err)
	}

	video, err := r.render.Fetch(ctx, status.ResultURL)
	if err != nil {
		return r.fail(ctx, job, logger, err)
	}
	artifactURL, err := r.artifacts.Upload(ctx, job.ID, video)
	if err != nil {
		return r.fail(ctx, job, logger, err)
	}
	job.setArtifactURL(artifactURL)

	cost := int64(r.production.CostPerVideoCents)
	uploadedAt := time.Now().UTC()
	if err := r.budget.Commit(ctx, channel.ID, channel.CampaignID, cost, uploadedAt); err != nil {
		if errors.Is(err, services.ErrBudgetExceeded) {
			job.setStage(StageFailed)
			logger.Warn("budget rejected commit", logging.Error(err))
			_ = r.notifier.NotifyBudgetExhausted(ctx, "Daily", channel.Username)
			return Result{Outcome: store.RunFailed, Stage: StageFailed, ArtifactURL: artifactURL, ErrorMessage: err.Error()}
		}
		return r.fail(ctx, job, logger, err)
	}
	job.setCostCents(cost)
	job.setStage(StageAssetReady)
	logger.Info("artifact stored and cost committed",
		logging.String("artifact_url", artifactURL),
		logging.Int64(logging.FieldCostCents, cost))

	return r.publishStage(ctx, job, per, logger)
}

func (r *Runner) prepareContent(ctx context.Context, job *Job, logger *slog.Logger) (*analysis.Result, *persona.Result, error) {
	channel := job.Channel

	product, err := r.catalog.GetProduct(ctx, channel.ProductID)
	if err != nil {
		return nil, nil, err
	}
	if product == nil {
		return nil, nil, services.Wrap(services.ErrConfiguration, "pipeline", "analysis",
			fmt.Sprintf("product %d not found", channel.ProductID), nil)
	}

	var a *analysis.Result
	if cached := strings.TrimSpace(product.CachedAnalysisJSON); cached != "" {
		a, err = analysis.Parse(cached)
		if err != nil {
			logger.Warn("cached analysis invalid, recomputing", logging.Error(err))
			a = nil
		}
	}
	if a == nil {
		var raw string
		a, raw, err = r.analysis.Analyze(ctx, product)
		if err != nil {
			return nil, nil, err
		}
		if err := r.catalog.SaveCachedAnalysis(ctx, product.ID, raw); err != nil {
			return nil, nil, err
		}
		logger.Info("product analysis cached", logging.Int64("product_id", product.ID))
	}

	var per *persona.Result
	if cached := strings.TrimSpace(channel.PersonaJSON); cached != "" {
		per, err = persona.Parse(cached)
		if err != nil {
			return nil, nil, err
		}
	} else {
		_, raw, err := r.persona.Generate(ctx, channel.Platform, a)
		if err != nil {
			return nil, nil, err
		}
		// The store arbitrates concurrent persona creation; always adopt
		// whatever it kept.
		winner, err := r.catalog.SavePersonaIfAbsent(ctx, channel.ID, raw)
		if err != nil {
			return nil, nil, err
		}
		per, err = persona.Parse(winner)
		if err != nil {
			return nil, nil, err
		}
	}
	job.setStage(StagePersonaReady)
	return a, per, nil
}

func (r *Runner) submitWithRetry(ctx context.Context, sb *storyboard.Storyboard, logger *slog.Logger) (string, error) {
	attempts := r.production.SubmitAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		handle, err := r.render.Submit(ctx, sb)
		if err == nil {
			return handle, nil
		}
		lastErr = err
		if !services.IsRetryable(err) || attempt == attempts {
			break
		}
		logger.Warn("render submit failed, retrying",
			logging.Int("attempt", attempt),
			logging.Error(err))
		select {
		case <-time.After(time.Duration(attempt) * time.Second):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", lastErr
}

func (r *Runner) publishStage(ctx context.Context, job *Job, per *persona.Result, logger *slog.Logger) Result {
	channel := job.Channel
	base := Result{
		CostCents:   job.CostCents(),
		ArtifactURL: job.ArtifactURL(),
	}

	if !r.publishEnabled || !channel.HasCredentials() {
		job.setStage(StagePublished)
		logger.Info("publish skipped",
			logging.Bool("publish_enabled", r.publishEnabled),
			logging.Bool("has_credentials", channel.HasCredentials()))
		base.Outcome = store.RunPublished
		base.Stage = StagePublished
		return base
	}

	publisher, err := r.publishers.For(channel)
	if err != nil {
		return r.publishFailed(ctx, job, logger, base, err)
	}

	productName := ""
	if product, perr := r.catalog.GetProduct(ctx, channel.ProductID); perr == nil && product != nil {
		productName = product.Name
	}
	caption := r.captioner.Caption(productName, per)

	creds := publish.Credentials{
		AccessToken:    channel.AccessToken,
		PlatformUserID: channel.PlatformUserID,
	}
	remoteURL, err := publisher.Publish(ctx, job.ArtifactURL(), creds, caption)
	if err != nil {
		return r.publishFailed(ctx, job, logger, base, err)
	}
	job.setRemoteURL(remoteURL)
	job.setStage(StagePublished)
	logger.Info("published",
		logging.String(logging.FieldPlatform, channel.Platform),
		logging.String("remote_url", remoteURL))
	_ = r.notifier.NotifyProductionCompleted(ctx, channel.Username, channel.Platform, job.CostCents())

	base.Outcome = store.RunPublished
	base.Stage = StagePublished
	base.RemoteURL = remoteURL
	return base
}

func (r *Runner) publishFailed(ctx context.Context, job *Job, logger *slog.Logger, base Result, err error) Result {
	job.setStage(StagePublishFailed)
	logger.Error("publish failed, artifact retained", logging.Error(err))
	_ = r.notifier.NotifyPublishFailed(ctx, job.Channel.Username, job.ArtifactURL(), err)
	base.Outcome = store.RunPublishFailed
	base.Stage = StagePublishFailed
	base.ErrorMessage = err.Error()
	return base
}

func (r *Runner) fail(ctx context.Context, job *Job, logger *slog.Logger, err error) Result {
	stage := job.Stage()
	job.setStage(StageFailed)
	if errors.Is(err, context.Canceled) {
		logger.Info("job canceled", logging.String(logging.FieldStage, string(stage)))
		return Result{Outcome: store.RunCanceled, Stage: StageFailed, ErrorMessage: err.Error()}
	}
	logger.Error("job failed",
		logging.String(logging.FieldStage, string(stage)),
		logging.Error(err))
	_ = r.notifier.NotifyProductionFailed(ctx, job.Channel.Username, string(stage), err)
	return Result{Outcome: store.RunFailed, Stage: StageFailed, ErrorMessage: err.Error()}
}
