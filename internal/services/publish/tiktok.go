package publish

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"loom/internal/services"
)

const defaultTikTokBaseURL = "https://open.tiktokapis.com/v2"

// TikTok publishes videos through the TikTok content posting API using the
// PULL_FROM_URL source, so the platform fetches the artifact itself.
type TikTok struct {
	http *resty.Client
}

// NewTikTok builds a TikTok publisher. baseURL is overridable for tests.
func NewTikTok(baseURL string, timeout time.Duration) *TikTok {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultTikTokBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &TikTok{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
	}
}

type tiktokInitRequest struct {
	PostInfo   tiktokPostInfo   `json:"post_info"`
	SourceInfo tiktokSourceInfo `json:"source_info"`
}

type tiktokPostInfo struct {
	Title        string `json:"title"`
	PrivacyLevel string `json:"privacy_level"`
}

type tiktokSourceInfo struct {
	Source   string `json:"source"`
	VideoURL string `json:"video_url"`
}

type tiktokInitResponse struct {
	Data struct {
		PublishID string `json:"publish_id"`
		ShareURL  string `json:"share_url"`
	} `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Publish initiates a pull-from-URL video post and returns the publish
// identifier (or share URL when the platform provides one).
func (t *TikTok) Publish(ctx context.Context, artifactURL string, creds Credentials, caption string) (string, error) {
	if strings.TrimSpace(creds.AccessToken) == "" {
		return "", services.Wrap(services.ErrConfiguration, "publish", "tiktok", "missing access token", nil)
	}
	payload := tiktokInitRequest{
		PostInfo: tiktokPostInfo{
			Title:        caption,
			PrivacyLevel: "PUBLIC_TO_EVERYONE",
		},
		SourceInfo: tiktokSourceInfo{
			Source:   "PULL_FROM_URL",
			VideoURL: artifactURL,
		},
	}

	var result tiktokInitResponse
	resp, err := t.http.R().
		SetContext(ctx).
		SetAuthToken(creds.AccessToken).
		SetBody(payload).
		SetResult(&result).
		Post("/post/publish/video/init/")
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "publish", "tiktok", "transport", err)
	}
	if resp.StatusCode() >= 500 || resp.StatusCode() == 429 {
		return "", services.Wrap(services.ErrTransient, "publish", "tiktok",
			fmt.Sprintf("http %d", resp.StatusCode()), nil)
	}
	if resp.IsError() {
		return "", fmt.Errorf("tiktok publish: http %d: %s", resp.StatusCode(), result.Error.Message)
	}
	if result.Error.Code != "" && result.Error.Code != "ok" {
		return "", fmt.Errorf("tiktok publish: %s: %s", result.Error.Code, result.Error.Message)
	}
	if result.Data.ShareURL != "" {
		return result.Data.ShareURL, nil
	}
	if result.Data.PublishID == "" {
		return "", fmt.Errorf("tiktok publish: no publish id in response")
	}
	return result.Data.PublishID, nil
}
