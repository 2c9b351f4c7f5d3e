package render_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"loom/internal/config"
	"loom/internal/poller"
	"loom/internal/services"
	"loom/internal/services/render"
	"loom/internal/storyboard"
)

func testStoryboard(t *testing.T) *storyboard.Storyboard {
	t.Helper()
	long := func(n int) string {
		s := ""
		for i := 0; i < n; i++ {
			if i > 0 {
				s += " "
			}
			s += "word"
		}
		return s
	}
	sb, _, err := storyboard.Build([]string{long(20), long(22), long(18)}, 25)
	if err != nil {
		t.Fatalf("build storyboard: %v", err)
	}
	return sb
}

func newClient(baseURL string) *render.Client {
	return render.NewClient(config.Render{
		BaseURL: baseURL,
		APIKey:  "render-key",
	})
}

func TestSubmitSendsStoryboardAndReturnsHandle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jobs/createTask" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer render-key" {
			t.Errorf("authorization = %q", got)
		}
		var req struct {
			Model string `json:"model"`
			Input struct {
				NFrames string `json:"n_frames"`
				Shots   []struct {
					Scene    string `json:"Scene"`
					Duration int    `json:"duration"`
				} `json:"shots"`
			} `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Input.NFrames != "25" {
			t.Errorf("n_frames = %q, want 25", req.Input.NFrames)
		}
		if len(req.Input.Shots) != 3 {
			t.Errorf("shots = %d, want 3", len(req.Input.Shots))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 200,
			"data": map[string]string{"taskId": "task-77"},
		})
	}))
	defer server.Close()

	handle, err := newClient(server.URL).Submit(context.Background(), testStoryboard(t))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if handle != "task-77" {
		t.Errorf("handle = %q", handle)
	}
}

func TestSubmitTagsServerErrorsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newClient(server.URL).Submit(context.Background(), testStoryboard(t))
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("error = %v, want ErrTransient", err)
	}
}

func TestSubmitDoesNotRetryClientErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad shots", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	_, err := newClient(server.URL).Submit(context.Background(), testStoryboard(t))
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, services.ErrTransient) {
		t.Errorf("client error misclassified as transient: %v", err)
	}
}

func TestSubmitRequiresAPIKey(t *testing.T) {
	client := render.NewClient(config.Render{BaseURL: "http://127.0.0.1:0"})
	_, err := client.Submit(context.Background(), testStoryboard(t))
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("error = %v, want ErrConfiguration", err)
	}
}

func TestStatusMapsBackendStates(t *testing.T) {
	responses := map[string]map[string]any{
		"pending-task": {"code": 200, "data": map[string]any{"state": "waiting"}},
		"success-task": {"code": 200, "data": map[string]any{
			"state":      "success",
			"resultJson": `{"resultUrls":["https://cdn.example/v.mp4"]}`,
		}},
		"failed-task": {"code": 200, "data": map[string]any{
			"state":    "fail",
			"failMsg":  "content policy",
			"failCode": "E451",
		}},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jobs/queryTask" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(responses[r.URL.Query().Get("taskId")])
	}))
	defer server.Close()

	client := newClient(server.URL)
	ctx := context.Background()

	status, err := client.Status(ctx, "pending-task")
	if err != nil || status.State != poller.StatePending {
		t.Errorf("pending: status = %+v, err = %v", status, err)
	}

	status, err = client.Status(ctx, "success-task")
	if err != nil {
		t.Fatalf("success: %v", err)
	}
	if status.State != poller.StateSucceeded || status.ResultURL != "https://cdn.example/v.mp4" {
		t.Errorf("success: status = %+v", status)
	}

	status, err = client.Status(ctx, "failed-task")
	if err != nil {
		t.Fatalf("failed: %v", err)
	}
	if status.State != poller.StateFailed || status.Reason == "" {
		t.Errorf("failed: status = %+v", status)
	}
}

func TestStatusTagsTransportErrorsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newClient(server.URL).Status(context.Background(), "task-1")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("error = %v, want ErrTransient", err)
	}
}

func TestFetchDownloadsArtifact(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("download should not carry the API auth header")
		}
		_, _ = w.Write([]byte("video-bytes"))
	}))
	defer server.Close()

	body, err := newClient("http://127.0.0.1:0").Fetch(context.Background(), server.URL+"/v.mp4")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(body) != "video-bytes" {
		t.Errorf("body = %q", body)
	}
}
