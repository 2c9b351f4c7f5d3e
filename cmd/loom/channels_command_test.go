package main

import (
	"context"
	"testing"
	"time"

	"loom/internal/store"
	"loom/internal/testsupport"
)

func TestChannelsCommandEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"channels"}, env.socketPath)
	if err != nil {
		t.Fatalf("channels: %v", err)
	}
	requireContains(t, out, "No channels configured")
}

func TestChannelsCommandRendersTable(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.SeedChannel(t, env.store, func(ch *store.Channel) {
		ch.Username = "bands.weekly"
		ch.Platform = "instagram"
		ch.VideosPerDay = 0
		ch.Frequency = "weekly"
	})

	out, _, err := runCLI(t, []string{"channels"}, env.socketPath)
	if err != nil {
		t.Fatalf("channels: %v", err)
	}
	requireContains(t, out, "bands.weekly")
	requireContains(t, out, "instagram")
	requireContains(t, out, "weekly")
	requireContains(t, out, "$1.00") // daily limit
	requireContains(t, out, "never") // no upload yet
}

func TestRunsCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	seed := testsupport.SeedChannel(t, env.store, nil)

	out, _, err := runCLI(t, []string{"runs"}, env.socketPath)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	requireContains(t, out, "No runs recorded")

	now := time.Now().UTC()
	if _, err := env.store.RecordRun(context.Background(), &store.Run{
		ChannelID:  seed.Channel.ID,
		JobID:      "job-42",
		Outcome:    store.RunPublished,
		Stage:      "published",
		CostCents:  32,
		StartedAt:  now.Add(-2 * time.Minute),
		FinishedAt: now,
	}); err != nil {
		t.Fatalf("record run: %v", err)
	}

	out, _, err = runCLI(t, []string{"runs"}, env.socketPath)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	requireContains(t, out, "job-42")
	requireContains(t, out, "$0.32")
}
