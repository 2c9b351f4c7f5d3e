package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Logging contains log output configuration.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Scheduler contains tick cadence and dispatch limits.
type Scheduler struct {
	TickSeconds        int `toml:"tick_seconds"`
	MaxConcurrent      int `toml:"max_concurrent"`
	ResetWindowMinutes int `toml:"reset_window_minutes"`
}

// Production contains pipeline-level knobs.
type Production struct {
	CostPerVideoCents int64  `toml:"cost_per_video_cents"`
	ScriptCandidates  int    `toml:"script_candidates"`
	Selection         string `toml:"selection"`
	SubmitAttempts    int    `toml:"submit_attempts"`
	TotalSeconds      int    `toml:"total_seconds"`
}

// LLM contains shared text-generation connection settings.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Render contains the async video generation backend settings.
type Render struct {
	BaseURL              string `toml:"base_url"`
	APIKey               string `toml:"api_key"`
	SubmitTimeoutSeconds int    `toml:"submit_timeout_seconds"`
}

// Poller contains async job polling settings.
type Poller struct {
	IntervalSeconds int     `toml:"interval_seconds"`
	BudgetMinutes   int     `toml:"budget_minutes"`
	MaxTransient    int     `toml:"max_transient"`
	RatePerSecond   float64 `toml:"rate_per_second"`
}

// Storage contains durable artifact storage settings.
type Storage struct {
	BaseURL              string `toml:"base_url"`
	APIKey               string `toml:"api_key"`
	UploadTimeoutSeconds int    `toml:"upload_timeout_seconds"`
}

// Publish contains platform publishing and captioning settings.
type Publish struct {
	Enabled          bool   `toml:"enabled"`
	AnthropicAPIKey  string `toml:"anthropic_api_key"`
	CaptionModel     string `toml:"caption_model"`
	TikTokBaseURL    string `toml:"tiktok_base_url"`
	InstagramBaseURL string `toml:"instagram_base_url"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
}

// Notifications contains ntfy push notification settings.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Production     bool   `toml:"production"`
	Budget         bool   `toml:"budget"`
	Errors         bool   `toml:"errors"`
}

// Config is the root configuration for the loom daemon and CLI.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Logging       Logging       `toml:"logging"`
	Scheduler     Scheduler     `toml:"scheduler"`
	Production    Production    `toml:"production"`
	LLM           LLM           `toml:"llm"`
	Render        Render        `toml:"render"`
	Poller        Poller        `toml:"poller"`
	Storage       Storage       `toml:"storage"`
	Publish       Publish       `toml:"publish"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the canonical config file location.
func DefaultConfigPath() string {
	return filepath.Join("~", ".config", "loom", "config.toml")
}

// Load reads configuration from path (or the default location when empty),
// applies defaults and normalization, and validates the result. The second
// return value reports the resolved path, the third whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	resolved := strings.TrimSpace(path)
	if resolved == "" {
		resolved = DefaultConfigPath()
	}
	resolved = expandPath(resolved)

	cfg := Default()
	found := false
	data, err := os.ReadFile(resolved)
	switch {
	case err == nil:
		found = true
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, resolved, true, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// Defaults apply when no file exists.
	default:
		return nil, resolved, false, fmt.Errorf("read config %s: %w", resolved, err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, resolved, found, err
	}
	return &cfg, resolved, found, nil
}

// WriteSample writes the embedded sample configuration to path.
func WriteSample(path string) error {
	path = expandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

// SocketPath returns the daemon control socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "loomd.sock")
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
