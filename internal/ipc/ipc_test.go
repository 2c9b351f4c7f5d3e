package ipc_test

import (
	"context"
	"testing"
	"time"

	"loom/internal/config"
	"loom/internal/daemon"
	"loom/internal/ipc"
	"loom/internal/ledger"
	"loom/internal/pipeline"
	"loom/internal/scheduler"
	"loom/internal/store"
)

type harness struct {
	cfg    *config.Config
	store  *store.Store
	daemon *daemon.Daemon
	client *ipc.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()

	st, err := store.Open(&cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	led := ledger.New(st, nil)
	runner := pipeline.NewRunner(&cfg, pipeline.RunnerDeps{Catalog: st, Budget: led})
	dispatcher := pipeline.NewDispatcher(runner, st, cfg.Scheduler.MaxConcurrent, nil)
	sched := scheduler.New(&cfg, st, led, dispatcher, nil, nil)
	d, err := daemon.New(&cfg, st, sched, dispatcher, nil)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	t.Cleanup(d.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	server, err := ipc.NewServer(ctx, cfg.SocketPath(), d, nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	server.Serve()
	t.Cleanup(server.Close)

	client, err := ipc.Dial(cfg.SocketPath())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return &harness{cfg: &cfg, store: st, daemon: d, client: client}
}

func TestPing(t *testing.T) {
	h := newHarness(t)
	resp, err := h.client.Ping()
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	if resp.PID <= 0 {
		t.Errorf("pid = %d, want a real process id", resp.PID)
	}
}

func TestStartStatusStop(t *testing.T) {
	h := newHarness(t)

	status, err := h.client.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Running {
		t.Error("daemon should not run before start")
	}

	started, err := h.client.Start()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !started.Started {
		t.Fatalf("start rejected: %s", started.Message)
	}

	status, err = h.client.Status()
	if err != nil {
		t.Fatalf("status after start: %v", err)
	}
	if !status.Running {
		t.Error("daemon should report running")
	}
	if status.DBPath == "" || status.LockFilePath == "" {
		t.Errorf("status paths incomplete: %+v", status)
	}

	stopped, err := h.client.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !stopped.Stopped {
		t.Error("stop should report stopped")
	}
}

func TestTickRequiresRunningDaemon(t *testing.T) {
	h := newHarness(t)

	resp, err := h.client.Tick()
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if resp.Completed {
		t.Error("tick should be rejected while the daemon is stopped")
	}

	if _, err := h.client.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	resp, err = h.client.Tick()
	if err != nil {
		t.Fatalf("tick while running: %v", err)
	}
	if !resp.Completed {
		t.Errorf("tick should complete: %s", resp.Message)
	}
}

func TestChannelsAndRunsRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	campaign, err := h.store.CreateCampaign(ctx, &store.Campaign{Name: "q3", MonthKey: store.MonthKey(time.Now())})
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	product, err := h.store.CreateProduct(ctx, &store.Product{Name: "resistance bands"})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	channel, err := h.store.CreateChannel(ctx, &store.Channel{
		CampaignID:   campaign.ID,
		ProductID:    product.ID,
		Username:     "bands.daily",
		Platform:     "instagram",
		Status:       store.ChannelActive,
		VideosPerDay: 2,
	})
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}

	now := time.Now().UTC()
	if _, err := h.store.RecordRun(ctx, &store.Run{
		ChannelID:  channel.ID,
		JobID:      "job-1",
		Outcome:    store.RunPublished,
		Stage:      "published",
		CostCents:  32,
		StartedAt:  now.Add(-time.Minute),
		FinishedAt: now,
	}); err != nil {
		t.Fatalf("record run: %v", err)
	}

	channels, err := h.client.Channels()
	if err != nil {
		t.Fatalf("channels: %v", err)
	}
	if len(channels.Channels) != 1 {
		t.Fatalf("channels = %d, want 1", len(channels.Channels))
	}
	got := channels.Channels[0]
	if got.Username != "bands.daily" || got.Platform != "instagram" {
		t.Errorf("channel = %+v", got)
	}
	if got.VideosPerDay != 2 {
		t.Errorf("videos per day = %d, want 2", got.VideosPerDay)
	}

	runs, err := h.client.Runs(channel.ID, 10)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs.Runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs.Runs))
	}
	if runs.Runs[0].Outcome != string(store.RunPublished) || runs.Runs[0].CostCents != 32 {
		t.Errorf("run = %+v", runs.Runs[0])
	}
}

func TestNotificationWithoutTopic(t *testing.T) {
	h := newHarness(t)
	resp, err := h.client.TestNotification()
	if err != nil {
		t.Fatalf("test notification: %v", err)
	}
	if resp.Sent {
		t.Error("nothing should send without a configured topic")
	}
}
