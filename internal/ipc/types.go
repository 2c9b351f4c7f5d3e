package ipc

import "time"

// PingRequest checks daemon liveness.
type PingRequest struct{}

// PingResponse reports liveness and the daemon process id.
type PingResponse struct {
	PID int `json:"pid"`
}

// StartRequest asks the daemon to begin scheduling.
type StartRequest struct{}

// StartResponse reports the outcome of a start request.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest asks the daemon to halt scheduling.
type StopRequest struct{}

// StopResponse reports the outcome of a stop request.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches the daemon runtime snapshot.
type StatusRequest struct{}

// InflightJob describes one production currently in the pipeline.
type InflightJob struct {
	ChannelID int64  `json:"channel_id"`
	Stage     string `json:"stage"`
}

// StatusResponse is the daemon runtime snapshot.
type StatusResponse struct {
	Running      bool          `json:"running"`
	PID          int           `json:"pid"`
	DBPath       string        `json:"db_path"`
	LockFilePath string        `json:"lock_file_path"`
	Inflight     []InflightJob `json:"inflight,omitempty"`
}

// TickRequest triggers one scheduling pass immediately.
type TickRequest struct{}

// TickResponse reports the outcome of a manual tick.
type TickResponse struct {
	Completed bool   `json:"completed"`
	Message   string `json:"message"`
}

// ChannelsRequest lists configured channels.
type ChannelsRequest struct{}

// Channel is the read-only per-channel status row.
type Channel struct {
	ID              int64      `json:"id"`
	CampaignID      int64      `json:"campaign_id"`
	Username        string     `json:"username"`
	Platform        string     `json:"platform"`
	Status          string     `json:"status"`
	VideosPerDay    int        `json:"videos_per_day"`
	Frequency       string     `json:"frequency"`
	LastUploadTime  *time.Time `json:"last_upload_time,omitempty"`
	DailyCostCents  int64      `json:"daily_cost_cents"`
	TotalCostCents  int64      `json:"total_cost_cents"`
	DailyLimitCents int64      `json:"daily_limit_cents"`
	LastRunAt       *time.Time `json:"last_run_at,omitempty"`
	LastRunOutcome  string     `json:"last_run_outcome,omitempty"`
	LastRunError    string     `json:"last_run_error,omitempty"`
	CurrentStage    string     `json:"current_stage,omitempty"`
}

// ChannelsResponse lists configured channels with any in-flight stage.
type ChannelsResponse struct {
	Channels []Channel `json:"channels"`
}

// RunsRequest lists recent production runs, optionally for one channel.
type RunsRequest struct {
	ChannelID int64 `json:"channel_id,omitempty"`
	Limit     int   `json:"limit,omitempty"`
}

// Run is one finished production record.
type Run struct {
	ID           int64     `json:"id"`
	ChannelID    int64     `json:"channel_id"`
	JobID        string    `json:"job_id"`
	Outcome      string    `json:"outcome"`
	Stage        string    `json:"stage"`
	CostCents    int64     `json:"cost_cents"`
	ArtifactURL  string    `json:"artifact_url,omitempty"`
	RemoteURL    string    `json:"remote_url,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// RunsResponse lists recent production runs.
type RunsResponse struct {
	Runs []Run `json:"runs"`
}

// TestNotificationRequest sends a test push notification.
type TestNotificationRequest struct{}

// TestNotificationResponse reports the test notification outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
