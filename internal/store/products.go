package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// CreateProduct inserts a product and returns it with assigned ID.
func (s *Store) CreateProduct(ctx context.Context, p *Product) (*Product, error) {
	if p == nil || strings.TrimSpace(p.Name) == "" {
		return nil, errors.New("product name is required")
	}
	kind := p.Kind
	if kind == "" {
		kind = "physical"
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO products (name, kind, description, url, cached_analysis_json)
		 VALUES (?, ?, ?, ?, ?)`,
		p.Name, kind, p.Description, p.URL, nullableString(p.CachedAnalysisJSON))
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetProduct(ctx, id)
}

// GetProduct fetches a product by identifier.
func (s *Store) GetProduct(ctx context.Context, id int64) (*Product, error) {
	ctx = ensureContext(ctx)
	var (
		p        Product
		analysis sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, kind, description, url, cached_analysis_json FROM products WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Kind, &p.Description, &p.URL, &analysis)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if analysis.Valid {
		p.CachedAnalysisJSON = analysis.String
	}
	return &p, nil
}

// SaveCachedAnalysis stores the computed analysis for reuse on later runs.
func (s *Store) SaveCachedAnalysis(ctx context.Context, productID int64, analysisJSON string) error {
	if strings.TrimSpace(analysisJSON) == "" {
		return errors.New("analysis JSON is required")
	}
	_, err := s.execWithRetry(ctx,
		`UPDATE products SET cached_analysis_json = ? WHERE id = ?`, analysisJSON, productID)
	if err != nil {
		return fmt.Errorf("save cached analysis: %w", err)
	}
	return nil
}

// InvalidateAnalysis clears a product's cached analysis so the next pipeline
// run recomputes it.
func (s *Store) InvalidateAnalysis(ctx context.Context, productID int64) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE products SET cached_analysis_json = NULL WHERE id = ?`, productID)
	if err != nil {
		return fmt.Errorf("invalidate analysis: %w", err)
	}
	return nil
}
