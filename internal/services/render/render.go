// Package render submits storyboards to the video generation backend and
// reports task status. The backend is asynchronous: creation returns a task
// handle that the poller watches until the rendered video URL appears.
package render

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"loom/internal/config"
	"loom/internal/poller"
	"loom/internal/services"
	"loom/internal/storyboard"
)

const (
	defaultModel       = "sora-2-pro-storyboard"
	defaultAspectRatio = "portrait"
)

// Client talks to the render backend over HTTP.
type Client struct {
	http     *resty.Client
	download *resty.Client
	apiKey   string
}

// NewClient builds a render client from configuration.
func NewClient(cfg config.Render) *Client {
	timeout := time.Duration(cfg.SubmitTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(cfg.APIKey)
	// Result URLs are pre-signed; downloads use a bare client without the
	// API auth header and with a longer timeout.
	download := resty.New().SetTimeout(2 * time.Minute)
	return &Client{http: httpClient, download: download, apiKey: cfg.APIKey}
}

type shot struct {
	Scene    string `json:"Scene"`
	Duration int    `json:"duration"`
}

type createTaskRequest struct {
	Model string          `json:"model"`
	Input createTaskInput `json:"input"`
}

type createTaskInput struct {
	NFrames     string `json:"n_frames"`
	AspectRatio string `json:"aspect_ratio"`
	Shots       []shot `json:"shots"`
}

type apiEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type createTaskData struct {
	TaskID string `json:"taskId"`
}

type taskStatusData struct {
	State      string `json:"state"`
	ResultJSON string `json:"resultJson"`
	FailMsg    string `json:"failMsg"`
	FailCode   string `json:"failCode"`
}

// Submit creates a render task for the storyboard and returns its handle.
// Transport and 5xx failures are tagged transient so the pipeline's bounded
// submit retry applies; 4xx responses are not retried.
func (c *Client) Submit(ctx context.Context, sb *storyboard.Storyboard) (string, error) {
	if sb == nil || len(sb.Scenes) == 0 {
		return "", services.Wrap(services.ErrValidation, "render", "submit", "empty storyboard", nil)
	}
	if strings.TrimSpace(c.apiKey) == "" {
		return "", services.Wrap(services.ErrConfiguration, "render", "submit", "api key required", nil)
	}

	shots := make([]shot, len(sb.Scenes))
	for i, scene := range sb.Scenes {
		shots[i] = shot{Scene: scene.Dialogue, Duration: scene.DurationSeconds}
	}
	payload := createTaskRequest{
		Model: defaultModel,
		Input: createTaskInput{
			NFrames:     fmt.Sprintf("%d", sb.TotalSeconds),
			AspectRatio: defaultAspectRatio,
			Shots:       shots,
		},
	}

	var envelope apiEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&envelope).
		Post("/jobs/createTask")
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "render", "submit", "transport", err)
	}
	if resp.StatusCode() >= 500 {
		return "", services.Wrap(services.ErrTransient, "render", "submit",
			fmt.Sprintf("http %d: %s", resp.StatusCode(), snippet(resp.String())), nil)
	}
	if resp.IsError() {
		return "", fmt.Errorf("render submit: http %d: %s", resp.StatusCode(), snippet(resp.String()))
	}
	if envelope.Code != 0 && envelope.Code != 200 {
		return "", fmt.Errorf("render submit: api code %d: %s", envelope.Code, envelope.Message)
	}

	var data createTaskData
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return "", fmt.Errorf("render submit: decode data: %w", err)
		}
	}
	if strings.TrimSpace(data.TaskID) == "" {
		return "", fmt.Errorf("render submit: no task id in response")
	}
	return data.TaskID, nil
}

// Status implements poller.Backend. Transport and 5xx failures are transient;
// an explicit fail state is terminal with the backend's reason.
func (c *Client) Status(ctx context.Context, handle string) (poller.Status, error) {
	var envelope apiEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("taskId", handle).
		SetResult(&envelope).
		Get("/jobs/queryTask")
	if err != nil {
		return poller.Status{}, services.Wrap(services.ErrTransient, "render", "status", "transport", err)
	}
	if resp.StatusCode() >= 500 || resp.StatusCode() == 429 {
		return poller.Status{}, services.Wrap(services.ErrTransient, "render", "status",
			fmt.Sprintf("http %d", resp.StatusCode()), nil)
	}
	if resp.IsError() {
		return poller.Status{}, fmt.Errorf("render status: http %d: %s", resp.StatusCode(), snippet(resp.String()))
	}
	if envelope.Code != 0 && envelope.Code != 200 {
		return poller.Status{}, services.Wrap(services.ErrTransient, "render", "status",
			fmt.Sprintf("api code %d: %s", envelope.Code, envelope.Message), nil)
	}

	var data taskStatusData
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return poller.Status{}, fmt.Errorf("render status: decode data: %w", err)
		}
	}

	switch data.State {
	case "success":
		url, err := extractResultURL(data.ResultJSON)
		if err != nil {
			return poller.Status{}, fmt.Errorf("render status: %w", err)
		}
		return poller.Status{State: poller.StateSucceeded, ResultURL: url}, nil
	case "fail":
		reason := data.FailMsg
		if data.FailCode != "" {
			reason = fmt.Sprintf("%s (%s)", reason, data.FailCode)
		}
		return poller.Status{State: poller.StateFailed, Reason: reason}, nil
	default:
		return poller.Status{State: poller.StatePending}, nil
	}
}

// Fetch downloads the rendered video bytes from the result URL.
func (c *Client) Fetch(ctx context.Context, resultURL string) ([]byte, error) {
	resp, err := c.download.R().
		SetContext(ctx).
		Get(resultURL)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "render", "fetch", "transport", err)
	}
	if resp.IsError() {
		return nil, services.Wrap(services.ErrTransient, "render", "fetch",
			fmt.Sprintf("http %d", resp.StatusCode()), nil)
	}
	body := resp.Body()
	if len(body) == 0 {
		return nil, fmt.Errorf("render fetch: empty artifact at %s", resultURL)
	}
	return body, nil
}

func extractResultURL(resultJSON string) (string, error) {
	if strings.TrimSpace(resultJSON) == "" {
		return "", fmt.Errorf("success state with empty result")
	}
	var result struct {
		ResultURLs []string `json:"resultUrls"`
	}
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return "", fmt.Errorf("decode result json: %w", err)
	}
	if len(result.ResultURLs) == 0 || strings.TrimSpace(result.ResultURLs[0]) == "" {
		return "", fmt.Errorf("success state with no result urls")
	}
	return result.ResultURLs[0], nil
}

func snippet(body string) string {
	body = strings.TrimSpace(body)
	if len(body) > 200 {
		return body[:200] + "..."
	}
	return body
}
