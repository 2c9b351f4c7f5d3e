package store

import (
	"strings"
	"time"
)

// ChannelStatus represents the lifecycle of a channel.
type ChannelStatus string

const (
	ChannelTesting  ChannelStatus = "testing"
	ChannelActive   ChannelStatus = "active"
	ChannelPaused   ChannelStatus = "paused"
	ChannelDisabled ChannelStatus = "disabled"
)

var channelStatuses = map[ChannelStatus]struct{}{
	ChannelTesting:  {},
	ChannelActive:   {},
	ChannelPaused:   {},
	ChannelDisabled: {},
}

// ParseChannelStatus converts a string into a known ChannelStatus.
func ParseChannelStatus(value string) (ChannelStatus, bool) {
	normalized := ChannelStatus(strings.ToLower(strings.TrimSpace(value)))
	_, ok := channelStatuses[normalized]
	return normalized, ok
}

// Frequency is the legacy upload cadence used when VideosPerDay is unset.
type Frequency string

const (
	FreqDaily      Frequency = "daily"
	FreqEvery3Days Frequency = "every_3_days"
	FreqWeekly     Frequency = "weekly"
	FreqBiweekly   Frequency = "biweekly"
	FreqMonthly    Frequency = "monthly"
)

// Channel is a configured social-media account with its own cadence and budget.
type Channel struct {
	ID         int64
	CampaignID int64
	ProductID  int64
	Username   string
	Platform   string
	Status     ChannelStatus

	VideosPerDay int
	Frequency    Frequency

	LastUploadTime *time.Time

	DailyCostCents  int64
	TotalCostCents  int64
	DailyLimitCents int64

	PersonaJSON string

	AccessToken    string
	PlatformUserID string

	LastRunAt        *time.Time
	LastRunOutcome   string
	LastRunCostCents int64
	LastRunError     string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasCredentials reports whether the channel can publish.
func (c *Channel) HasCredentials() bool {
	return strings.TrimSpace(c.AccessToken) != ""
}

// Campaign is a budget grouping of channels. Month counters key on MonthKey
// ("2006-01", UTC) so the monthly cap resets naturally at month boundaries.
type Campaign struct {
	ID                 int64
	Name               string
	Status             string
	MonthlyBudgetCents int64
	MonthSpentCents    int64
	MonthKey           string
}

// Product describes the promoted product or offer.
type Product struct {
	ID                 int64
	Name               string
	Kind               string // physical or cpa_offer
	Description        string
	URL                string
	CachedAnalysisJSON string
}

// RunOutcome is the terminal result of one production job.
type RunOutcome string

const (
	RunPublished     RunOutcome = "published"
	RunPublishFailed RunOutcome = "publish_failed"
	RunFailed        RunOutcome = "failed"
	RunTimeout       RunOutcome = "timeout"
	RunCanceled      RunOutcome = "canceled"
)

// Run records the outcome of a finished production job. Jobs themselves are
// transient; only their results survive restarts.
type Run struct {
	ID           int64
	ChannelID    int64
	JobID        string
	Outcome      RunOutcome
	Stage        string
	CostCents    int64
	ArtifactURL  string
	RemoteURL    string
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// MonthKey formats a UTC timestamp into the campaign spend month key.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// DayKey formats a UTC timestamp into the daily reset guard key.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
