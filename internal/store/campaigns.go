package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// CreateCampaign inserts a campaign and returns it with assigned ID.
func (s *Store) CreateCampaign(ctx context.Context, c *Campaign) (*Campaign, error) {
	if c == nil || strings.TrimSpace(c.Name) == "" {
		return nil, errors.New("campaign name is required")
	}
	status := c.Status
	if status == "" {
		status = "active"
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO campaigns (name, status, monthly_budget_cents, month_spent_cents, month_key)
		 VALUES (?, ?, ?, ?, ?)`,
		c.Name, status, c.MonthlyBudgetCents, c.MonthSpentCents, c.MonthKey)
	if err != nil {
		return nil, fmt.Errorf("insert campaign: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetCampaign(ctx, id)
}

// GetCampaign fetches a campaign by identifier.
func (s *Store) GetCampaign(ctx context.Context, id int64) (*Campaign, error) {
	ctx = ensureContext(ctx)
	var c Campaign
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, status, monthly_budget_cents, month_spent_cents, month_key
		 FROM campaigns WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Status, &c.MonthlyBudgetCents, &c.MonthSpentCents, &c.MonthKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return &c, nil
}
