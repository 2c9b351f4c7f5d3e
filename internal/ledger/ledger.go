// Package ledger enforces per-channel daily and per-campaign monthly spend
// caps. All mutations are conditional SQL updates inside a single
// transaction, so concurrent production jobs never overdraw a budget: the
// database row is the arbiter, not in-process state.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"loom/internal/logging"
	"loom/internal/services"
	"loom/internal/store"
)

const metaLastDailyReset = "last_daily_reset"

// Ledger arbitrates spend against the store's budget counters.
type Ledger struct {
	store  *store.Store
	db     *sql.DB
	logger *slog.Logger
}

// New builds a ledger over an open store.
func New(st *store.Store, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Ledger{
		store:  st,
		db:     st.DB(),
		logger: logging.NewComponentLogger(logger, "ledger"),
	}
}

// CheckDaily reports whether a channel has headroom for costCents today.
// Advisory only; Commit re-checks atomically. A zero or negative limit means
// uncapped.
func (l *Ledger) CheckDaily(ctx context.Context, channelID, costCents int64) error {
	var spent, limit int64
	err := l.db.QueryRowContext(ctx,
		`SELECT daily_cost_cents, daily_limit_cents FROM channels WHERE id = ?`,
		channelID).Scan(&spent, &limit)
	if errors.Is(err, sql.ErrNoRows) {
		return services.Wrap(services.ErrNotFound, "ledger", "check daily", fmt.Sprintf("channel %d", channelID), nil)
	}
	if err != nil {
		return fmt.Errorf("check daily budget: %w", err)
	}
	if limit > 0 && spent+costCents > limit {
		return services.Wrap(services.ErrBudgetExceeded, "ledger", "check daily",
			fmt.Sprintf("channel %d: spent %d + cost %d > limit %d cents", channelID, spent, costCents, limit), nil)
	}
	return nil
}

// CheckCampaign reports whether a campaign has monthly headroom for
// costCents. Spend recorded under a stale month key counts as zero.
func (l *Ledger) CheckCampaign(ctx context.Context, campaignID, costCents int64) error {
	return l.checkCampaignAt(ctx, campaignID, costCents, time.Now())
}

func (l *Ledger) checkCampaignAt(ctx context.Context, campaignID, costCents int64, now time.Time) error {
	var (
		budget   int64
		spent    int64
		monthKey string
	)
	err := l.db.QueryRowContext(ctx,
		`SELECT monthly_budget_cents, month_spent_cents, month_key FROM campaigns WHERE id = ?`,
		campaignID).Scan(&budget, &spent, &monthKey)
	if errors.Is(err, sql.ErrNoRows) {
		return services.Wrap(services.ErrNotFound, "ledger", "check campaign", fmt.Sprintf("campaign %d", campaignID), nil)
	}
	if err != nil {
		return fmt.Errorf("check campaign budget: %w", err)
	}
	if monthKey != store.MonthKey(now) {
		spent = 0
	}
	if budget > 0 && spent+costCents > budget {
		return services.Wrap(services.ErrBudgetExceeded, "ledger", "check campaign",
			fmt.Sprintf("campaign %d: spent %d + cost %d > budget %d cents", campaignID, spent, costCents, budget), nil)
	}
	return nil
}

// Commit charges costCents against the channel's daily counter and the
// campaign's monthly counter and stamps last_upload_time, all in one
// transaction. Either both caps admit the charge or nothing changes; a cap
// rejection rolls back and returns ErrBudgetExceeded.
func (l *Ledger) Commit(ctx context.Context, channelID, campaignID, costCents int64, uploadedAt time.Time) error {
	return l.commitAt(ctx, channelID, campaignID, costCents, uploadedAt, time.Now())
}

func (l *Ledger) commitAt(ctx context.Context, channelID, campaignID, costCents int64, uploadedAt, now time.Time) error {
	if costCents < 0 {
		return fmt.Errorf("negative cost %d cents", costCents)
	}
	return l.withRetry(ctx, func() error {
		tx, err := l.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin commit tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		stamp := uploadedAt.UTC().Format(time.RFC3339Nano)
		res, err := tx.ExecContext(ctx,
			`UPDATE channels SET
				daily_cost_cents = daily_cost_cents + ?,
				total_cost_cents = total_cost_cents + ?,
				last_upload_time = ?,
				updated_at = ?
			 WHERE id = ?
			   AND (daily_limit_cents <= 0 OR daily_cost_cents + ? <= daily_limit_cents)`,
			costCents, costCents, stamp, now.UTC().Format(time.RFC3339Nano), channelID, costCents)
		if err != nil {
			return fmt.Errorf("charge channel: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return services.Wrap(services.ErrBudgetExceeded, "ledger", "commit",
				fmt.Sprintf("channel %d daily cap rejected %d cents", channelID, costCents), nil)
		}

		monthKey := store.MonthKey(now)
		res, err = tx.ExecContext(ctx,
			`UPDATE campaigns SET
				month_spent_cents = CASE WHEN month_key = ? THEN month_spent_cents + ? ELSE ? END,
				month_key = ?
			 WHERE id = ?
			   AND (monthly_budget_cents <= 0
				OR (CASE WHEN month_key = ? THEN month_spent_cents ELSE 0 END) + ? <= monthly_budget_cents)`,
			monthKey, costCents, costCents, monthKey, campaignID, monthKey, costCents)
		if err != nil {
			return fmt.Errorf("charge campaign: %w", err)
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return services.Wrap(services.ErrBudgetExceeded, "ledger", "commit",
				fmt.Sprintf("campaign %d monthly cap rejected %d cents", campaignID, costCents), nil)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit charge: %w", err)
		}
		l.logger.Info("spend committed",
			logging.Int64(logging.FieldChannelID, channelID),
			logging.Int64(logging.FieldCampaignID, campaignID),
			logging.Int64(logging.FieldCostCents, costCents))
		return nil
	})
}

// ResetDaily zeroes every channel's daily counter for the given UTC day.
// The reset is recorded in meta so a scheduler tick that lands inside the
// reset window twice (or a daemon restart) cannot double-apply it.
func (l *Ledger) ResetDaily(ctx context.Context, day time.Time) (bool, error) {
	dayKey := store.DayKey(day)
	var applied bool
	err := l.withRetry(ctx, func() error {
		applied = false
		tx, err := l.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin reset tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var lastReset string
		err = tx.QueryRowContext(ctx,
			`SELECT value FROM meta WHERE key = ?`, metaLastDailyReset).Scan(&lastReset)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read last reset: %w", err)
		}
		if lastReset == dayKey {
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE channels SET daily_cost_cents = 0, updated_at = ?`,
			time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("zero daily counters: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO meta (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			metaLastDailyReset, dayKey); err != nil {
			return fmt.Errorf("record reset day: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit reset: %w", err)
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if applied {
		l.logger.Info("daily budgets reset", logging.String("day", dayKey))
	}
	return applied, nil
}

const (
	busyRetryAttempts = 5
	busyRetryBackoff  = 15 * time.Millisecond
)

func (l *Ledger) withRetry(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil || !isBusy(lastErr) {
			return lastErr
		}
		select {
		case <-time.After(busyRetryBackoff << attempt):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == 5 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
