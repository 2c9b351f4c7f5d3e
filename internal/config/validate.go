package config

import (
	"fmt"
	"strings"
)

var allowedTotals = map[int]struct{}{10: {}, 15: {}, 25: {}}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return fmt.Errorf("config: paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return fmt.Errorf("config: paths.log_dir must be set")
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "console", "json":
	default:
		return fmt.Errorf("config: logging.format must be console or json, got %q", c.Logging.Format)
	}

	switch c.Production.Selection {
	case "first", "shortest":
	default:
		return fmt.Errorf("config: production.selection must be first or shortest, got %q", c.Production.Selection)
	}
	if _, ok := allowedTotals[c.Production.TotalSeconds]; !ok {
		return fmt.Errorf("config: production.total_seconds must be one of 10, 15, 25, got %d", c.Production.TotalSeconds)
	}

	if c.Scheduler.MaxConcurrent < 1 {
		return fmt.Errorf("config: scheduler.max_concurrent must be at least 1")
	}
	if c.Scheduler.ResetWindowMinutes < 1 || c.Scheduler.ResetWindowMinutes > 60 {
		return fmt.Errorf("config: scheduler.reset_window_minutes must be within 1..60")
	}

	if c.Poller.IntervalSeconds < 1 {
		return fmt.Errorf("config: poller.interval_seconds must be at least 1")
	}
	if c.Poller.BudgetMinutes < 1 {
		return fmt.Errorf("config: poller.budget_minutes must be at least 1")
	}

	return nil
}
