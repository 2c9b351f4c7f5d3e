package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"loom/internal/config"
)

const userAgent = "Loom/0.1.0"

// Service defines the notification surface exposed to the scheduler and
// pipeline.
type Service interface {
	NotifyProductionCompleted(ctx context.Context, channelUsername, platform string, costCents int64) error
	NotifyProductionFailed(ctx context.Context, channelUsername, stage string, err error) error
	NotifyPublishFailed(ctx context.Context, channelUsername, artifactURL string, err error) error
	NotifyBudgetExhausted(ctx context.Context, scope, name string) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		production: cfg.Notifications.Production,
		budget:     cfg.Notifications.Budget,
		errors:     cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client

	production bool
	budget     bool
	errors     bool
}

func centsToDollars(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

func (n *ntfyService) NotifyProductionCompleted(ctx context.Context, channelUsername, platform string, costCents int64) error {
	if !n.production {
		return nil
	}
	data := payload{
		title: "Loom - Video Published",
		message: fmt.Sprintf("Published for @%s (%s), cost %s",
			strings.TrimSpace(channelUsername), strings.TrimSpace(platform), centsToDollars(costCents)),
		tags: []string{"loom", "production", "published"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyProductionFailed(ctx context.Context, channelUsername, stage string, err error) error {
	if !n.production {
		return nil
	}
	reason := "unknown"
	if err != nil {
		reason = strings.TrimSpace(err.Error())
	}
	data := payload{
		title: "Loom - Production Failed",
		message: fmt.Sprintf("@%s failed at %s: %s",
			strings.TrimSpace(channelUsername), strings.TrimSpace(stage), reason),
		tags:     []string{"loom", "production", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPublishFailed(ctx context.Context, channelUsername, artifactURL string, err error) error {
	if !n.production {
		return nil
	}
	reason := "unknown"
	if err != nil {
		reason = strings.TrimSpace(err.Error())
	}
	message := fmt.Sprintf("@%s publish failed: %s", strings.TrimSpace(channelUsername), reason)
	if artifactURL = strings.TrimSpace(artifactURL); artifactURL != "" {
		message = fmt.Sprintf("%s\nArtifact retained: %s", message, artifactURL)
	}
	data := payload{
		title:    "Loom - Publish Failed",
		message:  message,
		tags:     []string{"loom", "publish", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyBudgetExhausted(ctx context.Context, scope, name string) error {
	if !n.budget {
		return nil
	}
	data := payload{
		title: "Loom - Budget Exhausted",
		message: fmt.Sprintf("%s budget exhausted for %s; production paused until the next period",
			strings.TrimSpace(scope), strings.TrimSpace(name)),
		tags:     []string{"loom", "budget", "exhausted"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Loom - Error",
		message:  builder.String(),
		tags:     []string{"loom", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Loom - Test",
		message:  "Notification system test",
		tags:     []string{"loom", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyProductionCompleted(context.Context, string, string, int64) error { return nil }
func (noopService) NotifyProductionFailed(context.Context, string, string, error) error    { return nil }
func (noopService) NotifyPublishFailed(context.Context, string, string, error) error       { return nil }
func (noopService) NotifyBudgetExhausted(context.Context, string, string) error            { return nil }
func (noopService) NotifyError(context.Context, error, string) error                       { return nil }
func (noopService) TestNotification(context.Context) error                                 { return nil }
