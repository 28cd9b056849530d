// internal/store/programs.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/rkhurana000/skillstrong-pro-sub000/internal/models"
)

type ProgramFilter struct {
	Keyword  string
	Location string
	Delivery models.Delivery
	MaxWeeks *int
	MaxCost  *int
	Certs    []string
	Limit    int
	Offset   int
}

const programColumns = `id, school, title, location, delivery, length_weeks, cost, certs,
	start_date, url, external_url, description, featured, created_at`

func (s *Listings) SearchPrograms(ctx context.Context, f ProgramFilter) ([]models.Program, error) {
	w := &where{}
	w.keyword(f.Keyword, "title", "school", "description")
	if loc := strings.TrimSpace(f.Location); loc != "" {
		w.add("location ILIKE " + w.arg("%"+escapeLike(loc)+"%"))
	}
	if f.Delivery != "" {
		w.add("delivery = " + w.arg(string(f.Delivery)))
	}
	if f.MaxWeeks != nil {
		w.add("length_weeks <= " + w.arg(*f.MaxWeeks))
	}
	if f.MaxCost != nil {
		w.add("cost <= " + w.arg(*f.MaxCost))
	}
	if certs := cleanList(f.Certs); len(certs) > 0 {
		w.add("certs && " + w.arg(pq.Array(certs)))
	}

	query := "SELECT " + programColumns + " FROM programs" + w.String() +
		" ORDER BY featured DESC, created_at DESC" + w.page(f.Limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("search programs: %w", err)
	}
	defer rows.Close()

	programs := []models.Program{}
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		programs = append(programs, *p)
	}
	return programs, rows.Err()
}

// GetProgram returns nil, nil when no row matches.
func (s *Listings) GetProgram(ctx context.Context, id string) (*models.Program, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, "SELECT "+programColumns+" FROM programs WHERE id = $1", id)
	p, err := scanProgram(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (s *Listings) CreateProgram(ctx context.Context, p *models.Program) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Delivery == "" {
		p.Delivery = models.DeliveryInPerson
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO programs (id, school, title, location, delivery, length_weeks, cost, certs,
			start_date, url, external_url, description, featured, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		p.ID, p.School, p.Title, p.Location, string(p.Delivery), nullInt(p.LengthWeeks),
		nullInt(p.Cost), pq.Array(nonNil(p.Certs)), nullTime(p.StartDate), p.URL,
		nullString(p.ExternalURL), p.Description, p.Featured, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create program: %w", err)
	}
	return nil
}

// UpsertProgramByExternalURL inserts p or refreshes the row sharing its
// external URL. The stored id is written back to p.
func (s *Listings) UpsertProgramByExternalURL(ctx context.Context, p *models.Program) error {
	if p.ExternalURL == "" {
		return fmt.Errorf("upsert program: external url required")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Delivery == "" {
		p.Delivery = models.DeliveryInPerson
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO programs (id, school, title, location, delivery, length_weeks, cost, certs,
			url, external_url, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (external_url) DO UPDATE SET
			school = EXCLUDED.school,
			title = EXCLUDED.title,
			location = EXCLUDED.location,
			delivery = EXCLUDED.delivery,
			length_weeks = EXCLUDED.length_weeks,
			cost = EXCLUDED.cost,
			certs = EXCLUDED.certs,
			url = EXCLUDED.url,
			description = EXCLUDED.description
		RETURNING id`,
		p.ID, p.School, p.Title, p.Location, string(p.Delivery), nullInt(p.LengthWeeks),
		nullInt(p.Cost), pq.Array(nonNil(p.Certs)), p.URL, p.ExternalURL, p.Description,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("upsert program: %w", err)
	}
	return nil
}

func scanProgram(r rowScanner) (*models.Program, error) {
	var (
		p                 models.Program
		delivery          string
		lengthWeeks, cost sql.NullInt64
		startDate         sql.NullTime
		externalURL       sql.NullString
	)
	err := r.Scan(&p.ID, &p.School, &p.Title, &p.Location, &delivery, &lengthWeeks, &cost,
		pq.Array(&p.Certs), &startDate, &p.URL, &externalURL, &p.Description, &p.Featured, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Delivery = models.Delivery(delivery)
	p.LengthWeeks = intPtr(lengthWeeks)
	p.Cost = intPtr(cost)
	if startDate.Valid {
		t := startDate.Time
		p.StartDate = &t
	}
	p.ExternalURL = externalURL.String
	if p.Certs == nil {
		p.Certs = []string{}
	}
	return &p, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
