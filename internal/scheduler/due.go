package scheduler

import (
	"time"

	"loom/internal/store"
)

// frequencyHours maps the legacy cadence names to upload intervals.
var frequencyHours = map[store.Frequency]float64{
	store.FreqDaily:      24,
	store.FreqEvery3Days: 72,
	store.FreqWeekly:     168,
	store.FreqBiweekly:   336,
	store.FreqMonthly:    720,
}

// RequiredHours returns the minimum hours between uploads for the channel.
// VideosPerDay takes precedence; the frequency map is the fallback, and an
// unknown frequency degrades to daily.
func RequiredHours(channel *store.Channel) float64 {
	if channel.VideosPerDay > 0 {
		return 24 / float64(channel.VideosPerDay)
	}
	if hours, ok := frequencyHours[channel.Frequency]; ok {
		return hours
	}
	return frequencyHours[store.FreqDaily]
}

// IsDue reports whether the channel should produce a video now. Channels
// that have never uploaded are always due; non-active channels never are.
func IsDue(channel *store.Channel, now time.Time) bool {
	if channel.Status != store.ChannelActive {
		return false
	}
	if channel.LastUploadTime == nil {
		return true
	}
	required := time.Duration(RequiredHours(channel) * float64(time.Hour))
	return now.Sub(*channel.LastUploadTime) >= required
}
