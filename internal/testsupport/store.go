package testsupport

import (
	"context"
	"testing"
	"time"

	"loom/internal/config"
	"loom/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

// Seed holds the records created by SeedChannel.
type Seed struct {
	Campaign *store.Campaign
	Product  *store.Product
	Channel  *store.Channel
}

// SeedChannel creates a campaign, product, and active channel wired together,
// for tests that need a schedulable channel without caring about the details.
func SeedChannel(t testing.TB, st *store.Store, mutate func(*store.Channel)) *Seed {
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
	product, err := st.CreateProduct(ctx, &store.Product{Name: "posture trainer"})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	channel := &store.Channel{
		CampaignID:      campaign.ID,
		ProductID:       product.ID,
		Username:        "posture.daily",
		Platform:        "tiktok",
		Status:          store.ChannelActive,
		VideosPerDay:    1,
		DailyLimitCents: 100,
	}
	if mutate != nil {
		mutate(channel)
	}
	created, err := st.CreateChannel(ctx, channel)
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}
	return &Seed{Campaign: campaign, Product: product, Channel: created}
}
