package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"loom/internal/config"
	"loom/internal/services"
	"loom/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	st, err := store.Open(&cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func seedChannel(t *testing.T, st *store.Store) *store.Channel {
	t.Helper()
	ctx := context.Background()
	campaign, err := st.CreateCampaign(ctx, &store.Campaign{
		Name:               "spring-launch",
		MonthlyBudgetCents: 50_000,
		MonthKey:           store.MonthKey(time.Now()),
	})
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	product, err := st.CreateProduct(ctx, &store.Product{
		Name:        "posture trainer",
		Kind:        "physical",
		Description: "wearable posture corrector",
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	ch, err := st.CreateChannel(ctx, &store.Channel{
		CampaignID:      campaign.ID,
		ProductID:       product.ID,
		Username:        "posture.daily",
		Platform:        "tiktok",
		Status:          store.ChannelActive,
		VideosPerDay:    1,
		DailyLimitCents: 100,
		AccessToken:     "token-abc",
	})
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}
	return ch
}

func TestChannelRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ch := seedChannel(t, st)

	got, err := st.GetChannel(context.Background(), ch.ID)
	if err != nil {
		t.Fatalf("get channel: %v", err)
	}
	if got.Username != "posture.daily" {
		t.Errorf("username = %q, want posture.daily", got.Username)
	}
	if got.Status != store.ChannelActive {
		t.Errorf("status = %q, want active", got.Status)
	}
	if got.Frequency != store.FreqDaily {
		t.Errorf("frequency = %q, want daily default", got.Frequency)
	}
	if got.LastUploadTime != nil {
		t.Errorf("last upload time = %v, want nil", got.LastUploadTime)
	}
	if got.DailyLimitCents != 100 {
		t.Errorf("daily limit = %d, want 100", got.DailyLimitCents)
	}
	if !got.HasCredentials() {
		t.Error("expected channel to have credentials")
	}
}

func TestGetChannelNotFound(t *testing.T) {
	st := newTestStore(t)

	_, err := st.GetChannel(context.Background(), 9999)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestListActiveChannelsFiltersStatus(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	ch := seedChannel(t, st)

	if err := st.UpdateChannelStatus(ctx, ch.ID, store.ChannelPaused); err != nil {
		t.Fatalf("pause channel: %v", err)
	}
	active, err := st.ListActiveChannels(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("active channels = %d, want 0", len(active))
	}

	if err := st.UpdateChannelStatus(ctx, ch.ID, store.ChannelActive); err != nil {
		t.Fatalf("reactivate channel: %v", err)
	}
	active, err = st.ListActiveChannels(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("active channels = %d, want 1", len(active))
	}
}

func TestSavePersonaIfAbsentConvergesOnSingleWinner(t *testing.T) {
	st := newTestStore(t)
	ch := seedChannel(t, st)

	const writers = 8
	results := make([]string, writers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			persona, err := st.SavePersonaIfAbsent(context.Background(), ch.ID,
				`{"writer":`+string(rune('0'+idx))+`}`)
			if err != nil {
				t.Errorf("save persona: %v", err)
				return
			}
			results[idx] = persona
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 1; i < writers; i++ {
		if results[i] != results[0] {
			t.Fatalf("writer %d saw persona %q, writer 0 saw %q", i, results[i], results[0])
		}
	}

	got, err := st.GetChannel(context.Background(), ch.ID)
	if err != nil {
		t.Fatalf("get channel: %v", err)
	}
	if got.PersonaJSON != results[0] {
		t.Errorf("persisted persona = %q, want %q", got.PersonaJSON, results[0])
	}
}

func TestCachedAnalysisInvalidation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	product, err := st.CreateProduct(ctx, &store.Product{Name: "lamp", Kind: "physical"})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	if err := st.SaveCachedAnalysis(ctx, product.ID, `{"benefits":["warm light"]}`); err != nil {
		t.Fatalf("save analysis: %v", err)
	}
	got, err := st.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.CachedAnalysisJSON == "" {
		t.Fatal("expected cached analysis to be set")
	}

	if err := st.InvalidateAnalysis(ctx, product.ID); err != nil {
		t.Fatalf("invalidate analysis: %v", err)
	}
	got, err = st.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.CachedAnalysisJSON != "" {
		t.Errorf("cached analysis = %q, want empty after invalidation", got.CachedAnalysisJSON)
	}
}

func TestRunHistoryOrdering(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	ch := seedChannel(t, st)

	base := time.Date(2026, time.March, 3, 12, 0, 0, 0, time.UTC)
	outcomes := []store.RunOutcome{store.RunFailed, store.RunPublished, store.RunTimeout}
	for i, outcome := range outcomes {
		_, err := st.RecordRun(ctx, &store.Run{
			ChannelID:  ch.ID,
			JobID:      "job-" + string(rune('a'+i)),
			Outcome:    outcome,
			CostCents:  32,
			StartedAt:  base.Add(time.Duration(i) * time.Hour),
			FinishedAt: base.Add(time.Duration(i)*time.Hour + 20*time.Minute),
		})
		if err != nil {
			t.Fatalf("record run %d: %v", i, err)
		}
	}

	runs, err := st.ListRunsForChannel(ctx, ch.ID, 2)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	if runs[0].Outcome != store.RunTimeout {
		t.Errorf("newest outcome = %q, want timeout", runs[0].Outcome)
	}
	if runs[1].Outcome != store.RunPublished {
		t.Errorf("second outcome = %q, want published", runs[1].Outcome)
	}
}

func TestUpdateChannelLastRun(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	ch := seedChannel(t, st)

	at := time.Date(2026, time.March, 4, 9, 30, 0, 0, time.UTC)
	if err := st.UpdateChannelLastRun(ctx, ch.ID, at, store.RunPublished, 32, ""); err != nil {
		t.Fatalf("update last run: %v", err)
	}

	got, err := st.GetChannel(ctx, ch.ID)
	if err != nil {
		t.Fatalf("get channel: %v", err)
	}
	if got.LastRunAt == nil || !got.LastRunAt.Equal(at) {
		t.Errorf("last run at = %v, want %v", got.LastRunAt, at)
	}
	if got.LastRunOutcome != string(store.RunPublished) {
		t.Errorf("last run outcome = %q, want published", got.LastRunOutcome)
	}
	if got.LastRunCostCents != 32 {
		t.Errorf("last run cost = %d, want 32", got.LastRunCostCents)
	}
}

func TestMetaRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	value, err := st.GetMeta(ctx, "last_daily_reset")
	if err != nil {
		t.Fatalf("get meta: %v", err)
	}
	if value != "" {
		t.Errorf("meta = %q, want empty before first set", value)
	}

	if err := st.SetMeta(ctx, "last_daily_reset", "2026-03-03"); err != nil {
		t.Fatalf("set meta: %v", err)
	}
	if err := st.SetMeta(ctx, "last_daily_reset", "2026-03-04"); err != nil {
		t.Fatalf("overwrite meta: %v", err)
	}
	value, err = st.GetMeta(ctx, "last_daily_reset")
	if err != nil {
		t.Fatalf("get meta: %v", err)
	}
	if value != "2026-03-04" {
		t.Errorf("meta = %q, want 2026-03-04", value)
	}
}
