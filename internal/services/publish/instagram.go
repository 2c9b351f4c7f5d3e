package publish

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"loom/internal/services"
)

const defaultInstagramBaseURL = "https://graph.instagram.com/v18.0"

// Instagram publishes Reels through the Graph API: create a media container
// pointing at the artifact URL, then publish the container.
type Instagram struct {
	http *resty.Client
}

// NewInstagram builds an Instagram publisher. baseURL is overridable for
// tests.
func NewInstagram(baseURL string, timeout time.Duration) *Instagram {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultInstagramBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Instagram{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout),
	}
}

type graphIDResponse struct {
	ID    string `json:"id"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Publish creates and publishes a Reels container and returns the media ID.
func (ig *Instagram) Publish(ctx context.Context, artifactURL string, creds Credentials, caption string) (string, error) {
	if strings.TrimSpace(creds.AccessToken) == "" {
		return "", services.Wrap(services.ErrConfiguration, "publish", "instagram", "missing access token", nil)
	}
	if strings.TrimSpace(creds.PlatformUserID) == "" {
		return "", services.Wrap(services.ErrConfiguration, "publish", "instagram", "missing platform user id", nil)
	}

	containerID, err := ig.createContainer(ctx, artifactURL, creds, caption)
	if err != nil {
		return "", err
	}
	return ig.publishContainer(ctx, containerID, creds)
}

func (ig *Instagram) createContainer(ctx context.Context, artifactURL string, creds Credentials, caption string) (string, error) {
	var result graphIDResponse
	resp, err := ig.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"media_type":   "REELS",
			"video_url":    artifactURL,
			"caption":      caption,
			"access_token": creds.AccessToken,
		}).
		SetResult(&result).
		Post("/" + creds.PlatformUserID + "/media")
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "publish", "instagram", "container transport", err)
	}
	if resp.StatusCode() >= 500 {
		return "", services.Wrap(services.ErrTransient, "publish", "instagram",
			fmt.Sprintf("container http %d", resp.StatusCode()), nil)
	}
	if resp.IsError() {
		return "", fmt.Errorf("instagram container: http %d: %s", resp.StatusCode(), result.Error.Message)
	}
	if result.ID == "" {
		return "", fmt.Errorf("instagram container: no creation id in response")
	}
	return result.ID, nil
}

func (ig *Instagram) publishContainer(ctx context.Context, containerID string, creds Credentials) (string, error) {
	var result graphIDResponse
	resp, err := ig.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"creation_id":  containerID,
			"access_token": creds.AccessToken,
		}).
		SetResult(&result).
		Post("/" + creds.PlatformUserID + "/media_publish")
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "publish", "instagram", "publish transport", err)
	}
	if resp.StatusCode() >= 500 {
		return "", services.Wrap(services.ErrTransient, "publish", "instagram",
			fmt.Sprintf("publish http %d", resp.StatusCode()), nil)
	}
	if resp.IsError() {
		return "", fmt.Errorf("instagram publish: http %d: %s", resp.StatusCode(), result.Error.Message)
	}
	if result.ID == "" {
		return "", fmt.Errorf("instagram publish: no media id in response")
	}
	return result.ID, nil
}
