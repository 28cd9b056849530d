// internal/ingest/ingest.go

// Package ingest pulls job and training program listings from upstream sources,
// normalizes them and upserts them by external URL.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/rkhurana000/skillstrong-pro-sub000/internal/common/errors"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/logger"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/metrics"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/models"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/search"
)

const (
	KindJobs     = "jobs"
	KindPrograms = "programs"

	// EventIngested is the SNS eventType attribute of a run summary.
	EventIngested = "listings.ingested"

	maxErrors = 20
)

type ListingWriter interface {
	UpsertJobByExternalURL(ctx context.Context, j *models.Job) error
	UpsertProgramByExternalURL(ctx context.Context, p *models.Program) error
}

type Indexer interface {
	IndexJob(ctx context.Context, j *models.Job) error
	IndexProgram(ctx context.Context, p *models.Program) error
}

type Notifier interface {
	PublishEvent(ctx context.Context, eventType, subject string, payload interface{}) (string, error)
}

// ProgramSource returns the programs offered for one CIP code in one state.
type ProgramSource interface {
	Programs(ctx context.Context, cipCode, state string) ([]models.Program, error)
}

type Config struct {
	// Delay separates consecutive upstream calls.
	Delay           time.Duration
	ResultsPerQuery int
}

// Summary reports one ingestion run.
type Summary struct {
	Kind      string    `json:"kind"`
	Inputs    []string  `json:"inputs"`
	Scope     string    `json:"scope,omitempty"`
	Fetched   int       `json:"fetched"`
	Upserted  int       `json:"upserted"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Errors    []string  `json:"errors,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
}

func (s *Summary) addError(format string, args ...interface{}) {
	if len(s.Errors) < maxErrors {
		s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
	}
}

type Service struct {
	config   *Config
	listings ListingWriter
	searcher search.Searcher
	programs ProgramSource
	index    Indexer
	notifier Notifier
	logger   logger.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
}

type Option func(*Service)

// WithIndexer also writes upserted rows to the site search index.
func WithIndexer(ix Indexer) Option {
	return func(s *Service) { s.index = ix }
}

// WithNotifier publishes every run summary.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func NewService(config *Config, listings ListingWriter, searcher search.Searcher, programs ProgramSource, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		config:   config,
		listings: listings,
		searcher: searcher,
		programs: programs,
		logger:   log.WithFields(map[string]interface{}{"component": "ingest"}),
		sleep:    sleepContext,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// IngestJobs searches the web once per query and upserts every result that
// normalizes into a job posting.
func (s *Service) IngestJobs(ctx context.Context, queries []string, location string) (*Summary, error) {
	queries = cleanInputs(queries)
	if len(queries) == 0 {
		return nil, apperrors.NewValidationError("at least one query is required")
	}
	if s.searcher == nil {
		return nil, apperrors.NewIngestionFailedError("web_search", search.ErrSearchNotConfigured)
	}

	location = strings.TrimSpace(location)
	sum := s.newSummary(KindJobs, queries, location)
	searchFailures := 0

	for i, q := range queries {
		if i > 0 {
			if err := s.sleep(ctx, s.config.Delay); err != nil {
				return s.finish(ctx, sum), err
			}
		}

		results, err := s.searcher.Search(ctx, jobQuery(q, location), s.config.ResultsPerQuery)
		if err != nil {
			searchFailures++
			sum.addError("search %q: %v", q, err)
			s.logger.Warn("job search failed", map[string]interface{}{"query": q, "error": err.Error()})
			continue
		}
		sum.Fetched += len(results)

		for _, r := range results {
			job, ok := NormalizeJob(r, location)
			if !ok {
				sum.Skipped++
				continue
			}
			if err := s.listings.UpsertJobByExternalURL(ctx, job); err != nil {
				sum.Failed++
				sum.addError("upsert %s: %v", job.ExternalURL, err)
				continue
			}
			sum.Upserted++
			metrics.IngestedListings.WithLabelValues("job").Inc()
			if s.index != nil {
				if err := s.index.IndexJob(ctx, job); err != nil {
					s.logger.Warn("indexing job failed", map[string]interface{}{"id": job.ID, "error": err.Error()})
				}
			}
		}
	}

	s.finish(ctx, sum)
	if searchFailures == len(queries) {
		return sum, apperrors.NewIngestionFailedError("web_search", fmt.Errorf("all %d searches failed", searchFailures))
	}
	return sum, nil
}

// IngestPrograms asks the program source once per CIP code.
func (s *Service) IngestPrograms(ctx context.Context, cipCodes []string, state string) (*Summary, error) {
	cipCodes = cleanInputs(cipCodes)
	if len(cipCodes) == 0 {
		return nil, apperrors.NewValidationError("at least one CIP code is required")
	}
	if s.programs == nil {
		return nil, apperrors.NewIngestionFailedError("college_scorecard", fmt.Errorf("program source not configured"))
	}

	state = strings.ToUpper(strings.TrimSpace(state))
	sum := s.newSummary(KindPrograms, cipCodes, state)
	sourceFailures := 0

	for i, code := range cipCodes {
		if i > 0 {
			if err := s.sleep(ctx, s.config.Delay); err != nil {
				return s.finish(ctx, sum), err
			}
		}

		programs, err := s.programs.Programs(ctx, code, state)
		if err != nil {
			sourceFailures++
			sum.addError("cip %s: %v", code, err)
			s.logger.Warn("program lookup failed", map[string]interface{}{"cip": code, "error": err.Error()})
			continue
		}
		sum.Fetched += len(programs)

		for j := range programs {
			p := &programs[j]
			if p.ExternalURL == "" || strings.TrimSpace(p.Title) == "" {
				sum.Skipped++
				continue
			}
			if err := s.listings.UpsertProgramByExternalURL(ctx, p); err != nil {
				sum.Failed++
				sum.addError("upsert %s: %v", p.ExternalURL, err)
				continue
			}
			sum.Upserted++
			metrics.IngestedListings.WithLabelValues("program").Inc()
			if s.index != nil {
				if err := s.index.IndexProgram(ctx, p); err != nil {
					s.logger.Warn("indexing program failed", map[string]interface{}{"id": p.ID, "error": err.Error()})
				}
			}
		}
	}

	s.finish(ctx, sum)
	if sourceFailures == len(cipCodes) {
		return sum, apperrors.NewIngestionFailedError("college_scorecard", fmt.Errorf("all %d lookups failed", sourceFailures))
	}
	return sum, nil
}

func (s *Service) newSummary(kind string, inputs []string, scope string) *Summary {
	return &Summary{Kind: kind, Inputs: inputs, Scope: scope, StartedAt: s.now()}
}

// finish stamps the duration, logs the run and publishes it when a notifier is set.
func (s *Service) finish(ctx context.Context, sum *Summary) *Summary {
	sum.Duration = s.now().Sub(sum.StartedAt).Round(time.Millisecond).String()

	s.logger.Info("ingestion run finished", map[string]interface{}{
		"kind":     sum.Kind,
		"inputs":   len(sum.Inputs),
		"fetched":  sum.Fetched,
		"upserted": sum.Upserted,
		"skipped":  sum.Skipped,
		"failed":   sum.Failed,
		"errors":   len(sum.Errors),
	})

	if s.notifier != nil {
		subject := fmt.Sprintf("Listings ingested: %d %s", sum.Upserted, sum.Kind)
		if _, err := s.notifier.PublishEvent(ctx, EventIngested, subject, sum); err != nil {
			s.logger.Warn("publishing ingestion summary failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return sum
}

func jobQuery(q, location string) string {
	if location == "" || strings.Contains(strings.ToLower(q), strings.ToLower(location)) {
		return q
	}
	return q + " " + location
}

func cleanInputs(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[strings.ToLower(v)]; dup {
			continue
		}
		seen[strings.ToLower(v)] = struct{}{}
		out = append(out, v)
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
