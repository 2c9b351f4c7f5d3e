package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration marks missing credentials or budget configuration.
	// Fatal for the affected channel; the scheduler skips it.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransient marks network/DNS/5xx faults retried with bounded attempts.
	ErrTransient = errors.New("transient failure")
	// ErrValidation marks a generated artifact violating a structural contract.
	ErrValidation = errors.New("validation error")
	// ErrBudgetExceeded marks a spend cap rejection. Never retried; the
	// channel waits for the next period.
	ErrBudgetExceeded = errors.New("budget exceeded")
	// ErrTimeout marks a polling wall-clock budget exhaustion. Terminal with
	// zero cost committed.
	ErrTimeout = errors.New("timeout")
	// ErrNotFound marks missing store records.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetryable reports whether an error should consume retry budget.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
