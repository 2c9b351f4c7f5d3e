package main

import (
	"fmt"
	"time"
)

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatCadence(videosPerDay int, frequency string) string {
	if videosPerDay > 0 {
		return fmt.Sprintf("%d/day", videosPerDay)
	}
	if frequency != "" {
		return frequency
	}
	return "daily"
}
