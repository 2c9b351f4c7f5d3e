package artifacts_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"loom/internal/config"
	"loom/internal/services"
	"loom/internal/services/artifacts"
)

func TestUploadReturnsPublicURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/uploads" {
			t.Errorf("path = %q", r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		defer file.Close()
		if header.Filename != "job-9.mp4" {
			t.Errorf("filename = %q", header.Filename)
		}
		body, _ := io.ReadAll(file)
		if string(body) != "video-bytes" {
			t.Errorf("uploaded body = %q", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"url":"https://store.example/job-9.mp4"}`))
	}))
	defer server.Close()

	svc := artifacts.NewService(config.Storage{BaseURL: server.URL, APIKey: "store-key"})
	url, err := svc.Upload(context.Background(), "job-9", []byte("video-bytes"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if url != "https://store.example/job-9.mp4" {
		t.Errorf("url = %q", url)
	}
}

func TestUploadTagsServerErrorsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "storage down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	svc := artifacts.NewService(config.Storage{BaseURL: server.URL, APIKey: "store-key"})
	_, err := svc.Upload(context.Background(), "job-9", []byte("video-bytes"))
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("error = %v, want ErrTransient", err)
	}
}

func TestUploadRejectsEmptyVideo(t *testing.T) {
	svc := artifacts.NewService(config.Storage{BaseURL: "http://127.0.0.1:0", APIKey: "k"})
	_, err := svc.Upload(context.Background(), "job-9", nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}
