// internal/store/jobs.go
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

type JobFilter struct {
	Keyword        string
	Location       string
	Skills         []string
	PayMin         *int
	PayMax         *int
	Apprenticeship *bool
	Limit          int
	Offset         int
}

// Listings reads and writes jobs, programs and featured rows.
type Listings struct {
	db *sql.DB
}

func NewListings(db *sql.DB) *Listings {
	return &Listings{db: db}
}

const jobColumns = `id, title, company, location, description, skills, pay_min, pay_max,
	apprenticeship, external_url, apply_url, featured, created_at`

func (s *Listings) SearchJobs(ctx context.Context, f JobFilter) ([]models.Job, error) {
	w := &where{}
	w.keyword(f.Keyword, "title", "company", "description")
	if loc := strings.TrimSpace(f.Location); loc != "" {
		w.add("location ILIKE " + w.arg("%"+escapeLike(loc)+"%"))
	}
	if skills := cleanList(f.Skills); len(skills) > 0 {
		w.add("skills && " + w.arg(pq.Array(skills)))
	}
	// a job qualifies when its advertised range overlaps the requested one
	if f.PayMin != nil {
		w.add("COALESCE(pay_max, pay_min) >= " + w.arg(*f.PayMin))
	}
	if f.PayMax != nil {
		w.add("COALESCE(pay_min, pay_max) <= " + w.arg(*f.PayMax))
	}
	if f.Apprenticeship != nil {
		w.add("apprenticeship = " + w.arg(*f.Apprenticeship))
	}

	query := "SELECT " + jobColumns + " FROM jobs" + w.String() +
		" ORDER BY featured DESC, created_at DESC" + w.page(f.Limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("search jobs: %w", err)
	}
	defer rows.Close()

	jobs := []models.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// GetJob returns nil, nil when no row matches.
func (s *Listings) GetJob(ctx context.Context, id string) (*models.Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = $1", id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return j, err
}

func (s *Listings) CreateJob(ctx context.Context, j *models.Job) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, title, company, location, description, skills, pay_min, pay_max,
			apprenticeship, external_url, apply_url, featured, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		j.ID, j.Title, j.Company, j.Location, j.Description, pq.Array(nonNil(j.Skills)),
		nullInt(j.PayMin), nullInt(j.PayMax), j.Apprenticeship, nullString(j.ExternalURL),
		j.ApplyURL, j.Featured, j.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// UpsertJobByExternalURL inserts j or refreshes the row sharing its
// external URL. The stored id is written back to j.
func (s *Listings) UpsertJobByExternalURL(ctx context.Context, j *models.Job) error {
	if j.ExternalURL == "" {
		return fmt.Errorf("upsert job: external url required")
	}
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO jobs (id, title, company, location, description, skills, pay_min, pay_max,
			apprenticeship, external_url, apply_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (external_url) DO UPDATE SET
			title = EXCLUDED.title,
			company = EXCLUDED.company,
			location = EXCLUDED.location,
			description = EXCLUDED.description,
			skills = EXCLUDED.skills,
			pay_min = EXCLUDED.pay_min,
			pay_max = EXCLUDED.pay_max,
			apprenticeship = EXCLUDED.apprenticeship,
			apply_url = EXCLUDED.apply_url
		RETURNING id`,
		j.ID, j.Title, j.Company, j.Location, j.Description, pq.Array(nonNil(j.Skills)),
		nullInt(j.PayMin), nullInt(j.PayMax), j.Apprenticeship, j.ExternalURL, j.ApplyURL,
	).Scan(&j.ID)
	if err != nil {
		return fmt.Errorf("upsert job: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(r rowScanner) (*models.Job, error) {
	var (
		j              models.Job
		payMin, payMax sql.NullInt64
		externalURL    sql.NullString
	)
	err := r.Scan(&j.ID, &j.Title, &j.Company, &j.Location, &j.Description, pq.Array(&j.Skills),
		&payMin, &payMax, &j.Apprenticeship, &externalURL, &j.ApplyURL, &j.Featured, &j.CreatedAt)
	if err != nil {
		return nil, err
	}
	j.PayMin = intPtr(payMin)
	j.PayMax = intPtr(payMax)
	j.ExternalURL = externalURL.String
	if j.Skills == nil {
		j.Skills = []string{}
	}
	return &j, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
