// Package artifacts moves rendered videos from the render backend's
// short-lived result URLs into durable storage and returns a public
// reference for publishing. Render outputs expire within hours, so every
// successful job is re-uploaded before the publish stage runs.
package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"loom/internal/config"
	"loom/internal/services"
)

// Service uploads finished artifacts to durable storage.
type Service struct {
	http   *resty.Client
	apiKey string
}

// NewService builds the artifact storage client from configuration.
func NewService(cfg config.Storage) *Service {
	timeout := time.Duration(cfg.UploadTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetAuthToken(cfg.APIKey)
	return &Service{http: httpClient, apiKey: cfg.APIKey}
}

type uploadResponse struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// Upload stores the video bytes under the job's name and returns the public
// URL. Transport and 5xx failures are transient.
func (s *Service) Upload(ctx context.Context, jobID string, video []byte) (string, error) {
	if len(video) == 0 {
		return "", services.Wrap(services.ErrValidation, "artifacts", "upload", "empty video", nil)
	}
	if strings.TrimSpace(s.apiKey) == "" {
		return "", services.Wrap(services.ErrConfiguration, "artifacts", "upload", "api key required", nil)
	}

	var result uploadResponse
	resp, err := s.http.R().
		SetContext(ctx).
		SetFileReader("file", jobID+".mp4", bytes.NewReader(video)).
		SetResult(&result).
		Post("/uploads")
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "artifacts", "upload", "transport", err)
	}
	if resp.StatusCode() >= 500 {
		return "", services.Wrap(services.ErrTransient, "artifacts", "upload",
			fmt.Sprintf("http %d", resp.StatusCode()), nil)
	}
	if resp.IsError() {
		return "", fmt.Errorf("artifact upload: http %d: %s", resp.StatusCode(), result.Error)
	}
	if strings.TrimSpace(result.URL) == "" {
		return "", fmt.Errorf("artifact upload: no url in response")
	}
	return result.URL, nil
}
