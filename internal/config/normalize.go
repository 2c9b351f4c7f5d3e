package config

import "strings"

// Normalize expands user paths and backfills zero values with defaults.
func (c *Config) Normalize() {
	def := Default()

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = def.Paths.DataDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = def.Paths.LogDir
	}
	c.Paths.DataDir = expandPath(c.Paths.DataDir)
	c.Paths.LogDir = expandPath(c.Paths.LogDir)

	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = def.Logging.Level
	}
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = def.Logging.Format
	}

	if c.Scheduler.TickSeconds <= 0 {
		c.Scheduler.TickSeconds = def.Scheduler.TickSeconds
	}
	if c.Scheduler.MaxConcurrent <= 0 {
		c.Scheduler.MaxConcurrent = def.Scheduler.MaxConcurrent
	}
	if c.Scheduler.ResetWindowMinutes <= 0 {
		c.Scheduler.ResetWindowMinutes = def.Scheduler.ResetWindowMinutes
	}

	if c.Production.CostPerVideoCents <= 0 {
		c.Production.CostPerVideoCents = def.Production.CostPerVideoCents
	}
	if c.Production.ScriptCandidates <= 0 {
		c.Production.ScriptCandidates = def.Production.ScriptCandidates
	}
	c.Production.Selection = strings.ToLower(strings.TrimSpace(c.Production.Selection))
	if c.Production.Selection == "" {
		c.Production.Selection = def.Production.Selection
	}
	if c.Production.SubmitAttempts <= 0 {
		c.Production.SubmitAttempts = def.Production.SubmitAttempts
	}
	if c.Production.TotalSeconds <= 0 {
		c.Production.TotalSeconds = def.Production.TotalSeconds
	}

	if strings.TrimSpace(c.LLM.BaseURL) == "" {
		c.LLM.BaseURL = def.LLM.BaseURL
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		c.LLM.Model = def.LLM.Model
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = def.LLM.TimeoutSeconds
	}

	if strings.TrimSpace(c.Render.BaseURL) == "" {
		c.Render.BaseURL = def.Render.BaseURL
	}
	if c.Render.SubmitTimeoutSeconds <= 0 {
		c.Render.SubmitTimeoutSeconds = def.Render.SubmitTimeoutSeconds
	}

	if c.Poller.IntervalSeconds <= 0 {
		c.Poller.IntervalSeconds = def.Poller.IntervalSeconds
	}
	if c.Poller.BudgetMinutes <= 0 {
		c.Poller.BudgetMinutes = def.Poller.BudgetMinutes
	}
	if c.Poller.MaxTransient <= 0 {
		c.Poller.MaxTransient = def.Poller.MaxTransient
	}
	if c.Poller.RatePerSecond <= 0 {
		c.Poller.RatePerSecond = def.Poller.RatePerSecond
	}

	if c.Storage.UploadTimeoutSeconds <= 0 {
		c.Storage.UploadTimeoutSeconds = def.Storage.UploadTimeoutSeconds
	}

	if strings.TrimSpace(c.Publish.CaptionModel) == "" {
		c.Publish.CaptionModel = def.Publish.CaptionModel
	}
	if c.Publish.TimeoutSeconds <= 0 {
		c.Publish.TimeoutSeconds = def.Publish.TimeoutSeconds
	}

	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = def.Notifications.RequestTimeout
	}
}
