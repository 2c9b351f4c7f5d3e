package main

import (
	"time"

	"log/slog"

	"loom/internal/config"
	"loom/internal/daemon"
	"loom/internal/ledger"
	"loom/internal/notifications"
	"loom/internal/pipeline"
	"loom/internal/poller"
	"loom/internal/scheduler"
	"loom/internal/services/analysis"
	"loom/internal/services/artifacts"
	"loom/internal/services/llm"
	"loom/internal/services/persona"
	"loom/internal/services/publish"
	"loom/internal/services/render"
	"loom/internal/services/script"
	"loom/internal/store"
)

// buildDaemon wires every collaborator: text generation providers, the
// render backend, artifact storage, publishers, budget ledger, pipeline,
// and the scheduler loop.
func buildDaemon(cfg *config.Config, st *store.Store, logger *slog.Logger) (*daemon.Daemon, error) {
	notifier := notifications.NewService(cfg)
	led := ledger.New(st, logger)

	llmClient := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})

	publishTimeout := time.Duration(cfg.Publish.TimeoutSeconds) * time.Second
	publishers := publish.NewRegistry(map[string]publish.Publisher{
		"tiktok":    publish.NewTikTok(cfg.Publish.TikTokBaseURL, publishTimeout),
		"instagram": publish.NewInstagram(cfg.Publish.InstagramBaseURL, publishTimeout),
	})

	runner := pipeline.NewRunner(cfg, pipeline.RunnerDeps{
		Catalog:    st,
		Budget:     led,
		Analysis:   analysis.NewProvider(llmClient),
		Persona:    persona.NewProvider(llmClient),
		Script:     script.NewProvider(llmClient),
		Render:     render.NewClient(cfg.Render),
		Waiter:     poller.New(cfg.Poller, logger),
		Artifacts:  artifacts.NewService(cfg.Storage),
		Publishers: publishers,
		Captioner:  publish.NewCaptioner(cfg.Publish.AnthropicAPIKey, cfg.Publish.CaptionModel, logger),
		Notifier:   notifier,
		Logger:     logger,
	})
	dispatcher := pipeline.NewDispatcher(runner, st, cfg.Scheduler.MaxConcurrent, logger)
	sched := scheduler.New(cfg, st, led, dispatcher, notifier, logger)

	return daemon.New(cfg, st, sched, dispatcher, logger)
}
