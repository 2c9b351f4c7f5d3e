package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"loom/internal/services"
)

const channelColumns = `id, campaign_id, product_id, username, platform, status,
	videos_per_day, frequency, last_upload_time,
	daily_cost_cents, total_cost_cents, daily_limit_cents,
	persona_json, access_token, platform_user_id,
	last_run_at, last_run_outcome, last_run_cost_cents, last_run_error,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChannel(row rowScanner) (*Channel, error) {
	var (
		ch           Channel
		status       string
		frequency    string
		lastUpload   sql.NullString
		personaJSON  sql.NullString
		lastRunAt    sql.NullString
		createdAtRaw string
		updatedAtRaw string
	)
	err := row.Scan(
		&ch.ID, &ch.CampaignID, &ch.ProductID, &ch.Username, &ch.Platform, &status,
		&ch.VideosPerDay, &frequency, &lastUpload,
		&ch.DailyCostCents, &ch.TotalCostCents, &ch.DailyLimitCents,
		&personaJSON, &ch.AccessToken, &ch.PlatformUserID,
		&lastRunAt, &ch.LastRunOutcome, &ch.LastRunCostCents, &ch.LastRunError,
		&createdAtRaw, &updatedAtRaw,
	)
	if err != nil {
		return nil, err
	}
	ch.Status = ChannelStatus(status)
	ch.Frequency = Frequency(frequency)
	if ch.LastUploadTime, err = parseNullableTime(lastUpload); err != nil {
		return nil, fmt.Errorf("parse last_upload_time: %w", err)
	}
	if personaJSON.Valid {
		ch.PersonaJSON = personaJSON.String
	}
	if ch.LastRunAt, err = parseNullableTime(lastRunAt); err != nil {
		return nil, fmt.Errorf("parse last_run_at: %w", err)
	}
	if ch.CreatedAt, err = parseTime(createdAtRaw); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if ch.UpdatedAt, err = parseTime(updatedAtRaw); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &ch, nil
}

// CreateChannel inserts a channel and returns it with assigned ID.
func (s *Store) CreateChannel(ctx context.Context, ch *Channel) (*Channel, error) {
	if ch == nil {
		return nil, errors.New("channel is required")
	}
	if strings.TrimSpace(ch.Username) == "" {
		return nil, errors.New("channel username is required")
	}
	if _, ok := ParseChannelStatus(string(ch.Status)); !ok {
		return nil, fmt.Errorf("unknown channel status %q", ch.Status)
	}
	now := formatTime(time.Now())
	frequency := ch.Frequency
	if frequency == "" {
		frequency = FreqDaily
	}

	res, err := s.execWithRetry(ctx,
		`INSERT INTO channels (
			campaign_id, product_id, username, platform, status,
			videos_per_day, frequency, last_upload_time,
			daily_cost_cents, total_cost_cents, daily_limit_cents,
			persona_json, access_token, platform_user_id,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ch.CampaignID, ch.ProductID, ch.Username, ch.Platform, string(ch.Status),
		ch.VideosPerDay, string(frequency), formatNullableTime(ch.LastUploadTime),
		ch.DailyCostCents, ch.TotalCostCents, ch.DailyLimitCents,
		nullableString(ch.PersonaJSON), ch.AccessToken, ch.PlatformUserID,
		now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert channel: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetChannel(ctx, id)
}

// GetChannel fetches a channel by identifier.
func (s *Store) GetChannel(ctx context.Context, id int64) (*Channel, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+channelColumns+` FROM channels WHERE id = ?`, id)
	ch, err := scanChannel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get channel", fmt.Sprintf("id %d", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get channel: %w", err)
	}
	return ch, nil
}

// ListChannels returns all channels ordered by ID.
func (s *Store) ListChannels(ctx context.Context) ([]*Channel, error) {
	return s.listChannels(ctx, `SELECT `+channelColumns+` FROM channels ORDER BY id`)
}

// ListActiveChannels returns channels eligible for scheduling.
func (s *Store) ListActiveChannels(ctx context.Context) ([]*Channel, error) {
	return s.listChannels(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE status = ? ORDER BY id`,
		string(ChannelActive))
}

func (s *Store) listChannels(ctx context.Context, query string, args ...any) ([]*Channel, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	var channels []*Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

// UpdateChannelStatus transitions a channel's lifecycle state.
func (s *Store) UpdateChannelStatus(ctx context.Context, id int64, status ChannelStatus) error {
	if _, ok := ParseChannelStatus(string(status)); !ok {
		return fmt.Errorf("unknown channel status %q", status)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE channels SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update channel status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "store", "update channel status", fmt.Sprintf("id %d", id), nil)
	}
	return nil
}

// SavePersonaIfAbsent caches a persona on the channel only when none exists
// yet. The conditional write makes concurrent persona creation converge on a
// single winner; the returned JSON is whatever the channel ended up with.
func (s *Store) SavePersonaIfAbsent(ctx context.Context, channelID int64, personaJSON string) (string, error) {
	if strings.TrimSpace(personaJSON) == "" {
		return "", errors.New("persona JSON is required")
	}
	_, err := s.execWithRetry(ctx,
		`UPDATE channels SET persona_json = ?, updated_at = ?
		 WHERE id = ? AND (persona_json IS NULL OR persona_json = '')`,
		personaJSON, formatTime(time.Now()), channelID)
	if err != nil {
		return "", fmt.Errorf("save persona: %w", err)
	}

	ch, err := s.GetChannel(ctx, channelID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(ch.PersonaJSON) == "" {
		return "", fmt.Errorf("persona not persisted for channel %d", channelID)
	}
	return ch.PersonaJSON, nil
}

// UpdateChannelLastRun records per-channel status surface fields after a
// production job finishes, regardless of outcome.
func (s *Store) UpdateChannelLastRun(ctx context.Context, channelID int64, at time.Time, outcome RunOutcome, costCents int64, runErr string) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE channels SET last_run_at = ?, last_run_outcome = ?, last_run_cost_cents = ?, last_run_error = ?, updated_at = ?
		 WHERE id = ?`,
		formatTime(at), string(outcome), costCents, runErr, formatTime(time.Now()), channelID)
	if err != nil {
		return fmt.Errorf("update channel last run: %w", err)
	}
	return nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
