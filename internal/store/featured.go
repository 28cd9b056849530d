// internal/store/featured.go
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rkhurana000/skillstrong-pro-sub000/internal/models"
)

// ListFeatured returns the newest featured rows. Ties on created_at are
// broken by id so the order is stable across calls.
func (s *Listings) ListFeatured(ctx context.Context, limit int) ([]models.Featured, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, ref_id, category_hint, metro_hint, created_at
		FROM featured
		ORDER BY created_at DESC, id ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list featured: %w", err)
	}
	defer rows.Close()

	out := []models.Featured{}
	for rows.Next() {
		var f models.Featured
		var kind string
		if err := rows.Scan(&f.ID, &kind, &f.RefID, &f.CategoryHint, &f.MetroHint, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.Kind = models.FeaturedKind(kind)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Listings) CreateFeatured(ctx context.Context, f *models.Featured) error {
	if f.Kind != models.FeaturedJob && f.Kind != models.FeaturedProgram {
		return fmt.Errorf("create featured: invalid kind %q", f.Kind)
	}
	if _, err := uuid.Parse(f.RefID); err != nil {
		return fmt.Errorf("create featured: invalid ref id %q", f.RefID)
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	f.CategoryHint = strings.TrimSpace(f.CategoryHint)
	f.MetroHint = strings.TrimSpace(f.MetroHint)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO featured (id, kind, ref_id, category_hint, metro_hint, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		f.ID, string(f.Kind), f.RefID, f.CategoryHint, f.MetroHint, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("create featured: %w", err)
	}
	return nil
}
