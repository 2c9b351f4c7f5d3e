package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"loom/internal/config"
	"loom/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyProductionCompleted(context.Background(), "posture.daily", "tiktok", 32); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	type captured struct {
		title    string
		tags     string
		priority string
		body     string
	}

	tests := []struct {
		name           string
		notify         func(svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "production completed",
			notify: func(svc notifications.Service) error {
				return svc.NotifyProductionCompleted(context.Background(), "posture.daily", "tiktok", 32)
			},
			expectTitle:   "Loom - Video Published",
			expectMessage: "Published for @posture.daily (tiktok), cost $0.32",
			expectTags:    "loom,production,published",
		},
		{
			name: "production failed",
			notify: func(svc notifications.Service) error {
				return svc.NotifyProductionFailed(context.Background(), "posture.daily", "job_polling",
					errors.New("render timeout"))
			},
			expectTitle:    "Loom - Production Failed",
			expectMessage:  "@posture.daily failed at job_polling: render timeout",
			expectTags:     "loom,production,failed",
			expectPriority: "high",
		},
		{
			name: "budget exhausted",
			notify: func(svc notifications.Service) error {
				return svc.NotifyBudgetExhausted(context.Background(), "Daily", "posture.daily")
			},
			expectTitle:    "Loom - Budget Exhausted",
			expectMessage:  "Daily budget exhausted for posture.daily; production paused until the next period",
			expectTags:     "loom,budget,exhausted",
			expectPriority: "high",
		},
		{
			name: "error",
			notify: func(svc notifications.Service) error {
				return svc.NotifyError(context.Background(), errors.New("database is locked"), "scheduler tick")
			},
			expectTitle:    "Loom - Error",
			expectMessage:  "Error with scheduler tick: database is locked",
			expectTags:     "loom,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got captured
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				got.title = r.Header.Get("Title")
				got.tags = r.Header.Get("Tags")
				got.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				got.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5
			cfg.Notifications.Production = true
			cfg.Notifications.Budget = true
			cfg.Notifications.Errors = true

			svc := notifications.NewService(&cfg)
			if err := tc.notify(svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if got.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, got.title)
			}
			if got.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, got.body)
			}
			if got.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, got.tags)
			}
			if got.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, got.priority)
			}
		})
	}
}

func TestNtfyServiceHonorsCategoryToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for suppressed category: %s", r.Header.Get("Title"))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Production = false
	cfg.Notifications.Budget = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	ctx := context.Background()
	if err := svc.NotifyProductionCompleted(ctx, "a", "tiktok", 32); err != nil {
		t.Fatalf("suppressed production event returned error: %v", err)
	}
	if err := svc.NotifyBudgetExhausted(ctx, "Daily", "a"); err != nil {
		t.Fatalf("suppressed budget event returned error: %v", err)
	}
	if err := svc.NotifyError(ctx, errors.New("x"), "tick"); err != nil {
		t.Fatalf("suppressed error event returned error: %v", err)
	}
}
