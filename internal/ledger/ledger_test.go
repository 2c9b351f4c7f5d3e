package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"loom/internal/config"
	"loom/internal/ledger"
	"loom/internal/services"
	"loom/internal/store"
)

type fixture struct {
	store    *store.Store
	ledger   *ledger.Ledger
	campaign *store.Campaign
	channel  *store.Channel
}

func newFixture(t *testing.T, dailyLimit, monthlyBudget int64) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	st, err := store.Open(&cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	campaign, err := st.CreateCampaign(ctx, &store.Campaign{
		Name:               "q1-push",
		MonthlyBudgetCents: monthlyBudget,
		MonthKey:           store.MonthKey(time.Now()),
	})
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	product, err := st.CreateProduct(ctx, &store.Product{Name: "desk mat"})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	channel, err := st.CreateChannel(ctx, &store.Channel{
		CampaignID:      campaign.ID,
		ProductID:       product.ID,
		Username:        "deskmat.clips",
		Platform:        "tiktok",
		Status:          store.ChannelActive,
		VideosPerDay:    3,
		DailyLimitCents: dailyLimit,
	})
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}
	return &fixture{
		store:    st,
		ledger:   ledger.New(st, nil),
		campaign: campaign,
		channel:  channel,
	}
}

func TestCommitChargesBothCounters(t *testing.T) {
	f := newFixture(t, 100, 10_000)
	ctx := context.Background()

	uploadedAt := time.Date(2026, time.March, 5, 14, 0, 0, 0, time.UTC)
	if err := f.ledger.Commit(ctx, f.channel.ID, f.campaign.ID, 32, uploadedAt); err != nil {
		t.Fatalf("commit: %v", err)
	}

	ch, err := f.store.GetChannel(ctx, f.channel.ID)
	if err != nil {
		t.Fatalf("get channel: %v", err)
	}
	if ch.DailyCostCents != 32 {
		t.Errorf("daily cost = %d, want 32", ch.DailyCostCents)
	}
	if ch.TotalCostCents != 32 {
		t.Errorf("total cost = %d, want 32", ch.TotalCostCents)
	}
	if ch.LastUploadTime == nil || !ch.LastUploadTime.Equal(uploadedAt) {
		t.Errorf("last upload time = %v, want %v", ch.LastUploadTime, uploadedAt)
	}

	camp, err := f.store.GetCampaign(ctx, f.campaign.ID)
	if err != nil {
		t.Fatalf("get campaign: %v", err)
	}
	if camp.MonthSpentCents != 32 {
		t.Errorf("month spent = %d, want 32", camp.MonthSpentCents)
	}
}

func TestCommitRejectsWhenDailyCapWouldOverflow(t *testing.T) {
	f := newFixture(t, 100, 0)
	ctx := context.Background()

	// Two videos at 45 cents fit under the 100 cent cap; the third must not.
	for i := 0; i < 2; i++ {
		if err := f.ledger.Commit(ctx, f.channel.ID, f.campaign.ID, 45, time.Now()); err != nil {
			t.Fatalf("commit %d: %v", i, err)
		}
	}
	err := f.ledger.Commit(ctx, f.channel.ID, f.campaign.ID, 45, time.Now())
	if !errors.Is(err, services.ErrBudgetExceeded) {
		t.Fatalf("error = %v, want ErrBudgetExceeded", err)
	}

	ch, err := f.store.GetChannel(ctx, f.channel.ID)
	if err != nil {
		t.Fatalf("get channel: %v", err)
	}
	if ch.DailyCostCents != 90 {
		t.Errorf("daily cost = %d, want 90 after rejected commit", ch.DailyCostCents)
	}
}

func TestCheckDailySkipsBeforeProduction(t *testing.T) {
	f := newFixture(t, 100, 0)
	ctx := context.Background()

	if err := f.ledger.Commit(ctx, f.channel.ID, f.campaign.ID, 90, time.Now()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	err := f.ledger.CheckDaily(ctx, f.channel.ID, 32)
	if !errors.Is(err, services.ErrBudgetExceeded) {
		t.Fatalf("error = %v, want ErrBudgetExceeded", err)
	}
	if err := f.ledger.CheckDaily(ctx, f.channel.ID, 10); err != nil {
		t.Fatalf("check within cap: %v", err)
	}
}

func TestCommitConcurrentAdmitsExactlyBudget(t *testing.T) {
	const (
		workers = 6
		cost    = 32
	)
	// Cap leaves room for exactly workers-1 commits.
	f := newFixture(t, cost*(workers-1), 0)
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		rejected int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := f.ledger.Commit(ctx, f.channel.ID, f.campaign.ID, cost, time.Now())
			if errors.Is(err, services.ErrBudgetExceeded) {
				mu.Lock()
				rejected++
				mu.Unlock()
				return
			}
			if err != nil {
				t.Errorf("commit: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if rejected != 1 {
		t.Errorf("rejected = %d, want exactly 1", rejected)
	}
	ch, err := f.store.GetChannel(ctx, f.channel.ID)
	if err != nil {
		t.Fatalf("get channel: %v", err)
	}
	if want := int64(cost * (workers - 1)); ch.DailyCostCents != want {
		t.Errorf("daily cost = %d, want %d", ch.DailyCostCents, want)
	}
}

func TestCampaignBudgetRejects(t *testing.T) {
	f := newFixture(t, 0, 60)
	ctx := context.Background()

	if err := f.ledger.Commit(ctx, f.channel.ID, f.campaign.ID, 32, time.Now()); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	err := f.ledger.Commit(ctx, f.channel.ID, f.campaign.ID, 32, time.Now())
	if !errors.Is(err, services.ErrBudgetExceeded) {
		t.Fatalf("error = %v, want ErrBudgetExceeded", err)
	}

	// The channel charge from the rejected commit must have rolled back.
	ch, err := f.store.GetChannel(ctx, f.channel.ID)
	if err != nil {
		t.Fatalf("get channel: %v", err)
	}
	if ch.DailyCostCents != 32 {
		t.Errorf("daily cost = %d, want 32 after rollback", ch.DailyCostCents)
	}
	if ch.TotalCostCents != 32 {
		t.Errorf("total cost = %d, want 32 after rollback", ch.TotalCostCents)
	}
}

func TestCampaignMonthRolloverClearsStaleSpend(t *testing.T) {
	f := newFixture(t, 0, 100)
	ctx := context.Background()

	// Simulate spend recorded under a previous month.
	if _, err := f.store.DB().ExecContext(ctx,
		`UPDATE campaigns SET month_spent_cents = 95, month_key = '2020-01' WHERE id = ?`,
		f.campaign.ID); err != nil {
		t.Fatalf("backdate campaign: %v", err)
	}

	if err := f.ledger.CheckCampaign(ctx, f.campaign.ID, 32); err != nil {
		t.Fatalf("check after rollover: %v", err)
	}
	if err := f.ledger.Commit(ctx, f.channel.ID, f.campaign.ID, 32, time.Now()); err != nil {
		t.Fatalf("commit after rollover: %v", err)
	}

	camp, err := f.store.GetCampaign(ctx, f.campaign.ID)
	if err != nil {
		t.Fatalf("get campaign: %v", err)
	}
	if camp.MonthSpentCents != 32 {
		t.Errorf("month spent = %d, want 32 after rollover", camp.MonthSpentCents)
	}
	if camp.MonthKey != store.MonthKey(time.Now()) {
		t.Errorf("month key = %q, want current month", camp.MonthKey)
	}
}

func TestResetDailyIsIdempotentPerDay(t *testing.T) {
	f := newFixture(t, 100, 0)
	ctx := context.Background()

	if err := f.ledger.Commit(ctx, f.channel.ID, f.campaign.ID, 64, time.Now()); err != nil {
		t.Fatalf("commit: %v", err)
	}

	day := time.Date(2026, time.March, 6, 0, 2, 0, 0, time.UTC)
	applied, err := f.ledger.ResetDaily(ctx, day)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !applied {
		t.Fatal("first reset should apply")
	}

	ch, err := f.store.GetChannel(ctx, f.channel.ID)
	if err != nil {
		t.Fatalf("get channel: %v", err)
	}
	if ch.DailyCostCents != 0 {
		t.Errorf("daily cost = %d, want 0 after reset", ch.DailyCostCents)
	}
	if ch.TotalCostCents != 64 {
		t.Errorf("total cost = %d, want 64 preserved across reset", ch.TotalCostCents)
	}

	// Spend again, then re-run the reset for the same day: it must not apply.
	if err := f.ledger.Commit(ctx, f.channel.ID, f.campaign.ID, 32, time.Now()); err != nil {
		t.Fatalf("second commit: %v", err)
	}
	applied, err = f.ledger.ResetDaily(ctx, day)
	if err != nil {
		t.Fatalf("repeat reset: %v", err)
	}
	if applied {
		t.Fatal("repeat reset for the same day should be a no-op")
	}
	ch, err = f.store.GetChannel(ctx, f.channel.ID)
	if err != nil {
		t.Fatalf("get channel: %v", err)
	}
	if ch.DailyCostCents != 32 {
		t.Errorf("daily cost = %d, want 32 after no-op reset", ch.DailyCostCents)
	}

	// The next day's reset applies again.
	applied, err = f.ledger.ResetDaily(ctx, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("next-day reset: %v", err)
	}
	if !applied {
		t.Fatal("next-day reset should apply")
	}
}
