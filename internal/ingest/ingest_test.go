package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/rkhurana000/skillstrong-pro-sub000/internal/common/errors"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/logger"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/models"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/search"
)

// ==========================
// Mocks
// ==========================

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) UpsertJobByExternalURL(ctx context.Context, j *models.Job) error {
	args := m.Called(ctx, j)
	return args.Error(0)
}

func (m *mockWriter) UpsertProgramByExternalURL(ctx context.Context, p *models.Program) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

type fakeSearcher struct {
	mu      sync.Mutex
	results map[string][]models.SearchResult
	errs    map[string]error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ int) ([]models.SearchResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if err := f.errs[query]; err != nil {
		return nil, err
	}
	return f.results[query], nil
}

type fakePrograms struct {
	byCIP map[string][]models.Program
	err   error
	calls []string
}

func (f *fakePrograms) Programs(_ context.Context, cip, state string) ([]models.Program, error) {
	f.calls = append(f.calls, cip+"/"+state)
	if f.err != nil {
		return nil, f.err
	}
	return f.byCIP[cip], nil
}

type fakeIndexer struct {
	jobs, programs int
}

func (f *fakeIndexer) IndexJob(context.Context, *models.Job) error {
	f.jobs++
	return nil
}

func (f *fakeIndexer) IndexProgram(context.Context, *models.Program) error {
	f.programs++
	return nil
}

type fakeNotifier struct {
	events   []string
	subjects []string
	payloads []interface{}
}

func (f *fakeNotifier) PublishEvent(_ context.Context, eventType, subject string, payload interface{}) (string, error) {
	f.events = append(f.events, eventType)
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, payload)
	return "msg-1", nil
}

// ==========================
// Helpers
// ==========================

func createTestConfig() *Config {
	return &Config{Delay: 2 * time.Second, ResultsPerQuery: 10}
}

func newTestService(t *testing.T, w ListingWriter, s *fakeSearcher, p ProgramSource, opts ...Option) (*Service, *[]time.Duration) {
	t.Helper()
	var searcher search.Searcher
	if s != nil {
		searcher = s
	}
	svc := NewService(createTestConfig(), w, searcher, p, logger.NewTestLogger(t), opts...)
	slept := []time.Duration{}
	svc.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return svc, &slept
}

// ==========================
// Jobs
// ==========================

func TestIngestJobs_UpsertsNormalizedResults(t *testing.T) {
	w := new(mockWriter)
	w.On("UpsertJobByExternalURL", mock.Anything, mock.MatchedBy(func(j *models.Job) bool {
		return j.ExternalURL == "https://jobs.example.com/2"
	})).Return(errors.New("constraint violation"))
	w.On("UpsertJobByExternalURL", mock.Anything, mock.Anything).Return(nil)

	s := &fakeSearcher{results: map[string][]models.SearchResult{
		"cnc machinist Cleveland, OH": {
			{Title: "CNC Machinist at Acme | Indeed", URL: "https://jobs.example.com/1", Snippet: "$24 - $30 an hour"},
			{Title: "Machinist Apprentice", URL: "https://jobs.example.com/2"},
			{Title: "300 CNC jobs in Cleveland", URL: "https://jobs.example.com/list"},
		},
		"welder Cleveland, OH": {
			{Title: "Welder - LinkedIn", URL: "https://jobs.example.com/3"},
		},
	}}
	ix := &fakeIndexer{}
	n := &fakeNotifier{}
	svc, slept := newTestService(t, w, s, nil, WithIndexer(ix), WithNotifier(n))

	sum, err := svc.IngestJobs(context.Background(), []string{" cnc machinist ", "welder", "CNC Machinist", ""}, " Cleveland, OH ")
	require.NoError(t, err)

	assert.Equal(t, []string{"cnc machinist Cleveland, OH", "welder Cleveland, OH"}, s.queries)
	assert.Equal(t, []time.Duration{2 * time.Second}, *slept, "delay between queries only")

	assert.Equal(t, KindJobs, sum.Kind)
	assert.Equal(t, []string{"cnc machinist", "welder"}, sum.Inputs)
	assert.Equal(t, "Cleveland, OH", sum.Scope)
	assert.Equal(t, 4, sum.Fetched)
	assert.Equal(t, 2, sum.Upserted)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 1, sum.Failed)
	require.Len(t, sum.Errors, 1)
	assert.Contains(t, sum.Errors[0], "https://jobs.example.com/2")
	assert.NotEmpty(t, sum.Duration)

	assert.Equal(t, 2, ix.jobs)
	require.Len(t, n.events, 1)
	assert.Equal(t, EventIngested, n.events[0])
	assert.Equal(t, "Listings ingested: 2 jobs", n.subjects[0])
	assert.Same(t, sum, n.payloads[0])
	w.AssertNumberOfCalls(t, "UpsertJobByExternalURL", 3)
}

func TestIngestJobs_QueryAlreadyNamesLocation(t *testing.T) {
	w := new(mockWriter)
	s := &fakeSearcher{}
	svc, _ := newTestService(t, w, s, nil)

	_, err := svc.IngestJobs(context.Background(), []string{"welder jobs in Cleveland"}, "cleveland")
	require.NoError(t, err)
	assert.Equal(t, []string{"welder jobs in Cleveland"}, s.queries)
}

func TestIngestJobs_Errors(t *testing.T) {
	t.Run("no queries", func(t *testing.T) {
		svc, _ := newTestService(t, new(mockWriter), &fakeSearcher{}, nil)
		_, err := svc.IngestJobs(context.Background(), []string{" ", ""}, "")
		stdErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeValidationFailed, stdErr.Code)
	})

	t.Run("search not configured", func(t *testing.T) {
		svc, _ := newTestService(t, new(mockWriter), nil, nil)
		_, err := svc.IngestJobs(context.Background(), []string{"welder"}, "")
		stdErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeIngestionFailed, stdErr.Code)
	})

	t.Run("every search fails", func(t *testing.T) {
		s := &fakeSearcher{errs: map[string]error{
			"welder":    errors.New("quota exceeded"),
			"machinist": errors.New("quota exceeded"),
		}}
		svc, _ := newTestService(t, new(mockWriter), s, nil)
		sum, err := svc.IngestJobs(context.Background(), []string{"welder", "machinist"}, "")
		stdErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeIngestionFailed, stdErr.Code)
		require.NotNil(t, sum)
		assert.Len(t, sum.Errors, 2)
	})

	t.Run("one search fails", func(t *testing.T) {
		s := &fakeSearcher{errs: map[string]error{"welder": errors.New("timeout")}}
		svc, _ := newTestService(t, new(mockWriter), s, nil)
		sum, err := svc.IngestJobs(context.Background(), []string{"welder", "machinist"}, "")
		require.NoError(t, err)
		assert.Len(t, sum.Errors, 1)
	})

	t.Run("cancelled between queries", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		s := &fakeSearcher{}
		svc, _ := newTestService(t, new(mockWriter), s, nil)
		svc.sleep = func(context.Context, time.Duration) error {
			cancel()
			return context.Canceled
		}
		sum, err := svc.IngestJobs(ctx, []string{"welder", "machinist"}, "")
		assert.ErrorIs(t, err, context.Canceled)
		require.NotNil(t, sum)
		assert.Equal(t, []string{"welder"}, s.queries)
	})
}

// ==========================
// Programs
// ==========================

func TestIngestPrograms(t *testing.T) {
	w := new(mockWriter)
	w.On("UpsertProgramByExternalURL", mock.Anything, mock.Anything).Return(nil)

	p := &fakePrograms{byCIP: map[string][]models.Program{
		"48.0501": {
			{School: "Tri-C", Title: "Precision Metal Working: Certificate", ExternalURL: "https://collegescorecard.ed.gov/school/?1#4805-1"},
			{School: "Tri-C", Title: "", ExternalURL: "https://collegescorecard.ed.gov/school/?1#4805-2"},
		},
		"15.0613": {
			{School: "Lorain CCC", Title: "Manufacturing Engineering Technology: Associate's Degree", ExternalURL: "https://collegescorecard.ed.gov/school/?2#1506-2"},
		},
	}}
	ix := &fakeIndexer{}
	svc, slept := newTestService(t, w, nil, p, WithIndexer(ix))

	sum, err := svc.IngestPrograms(context.Background(), []string{"48.0501", "15.0613"}, " oh")
	require.NoError(t, err)

	assert.Equal(t, []string{"48.0501/OH", "15.0613/OH"}, p.calls)
	assert.Len(t, *slept, 1)
	assert.Equal(t, KindPrograms, sum.Kind)
	assert.Equal(t, "OH", sum.Scope)
	assert.Equal(t, 3, sum.Fetched)
	assert.Equal(t, 2, sum.Upserted)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 2, ix.programs)
	w.AssertNumberOfCalls(t, "UpsertProgramByExternalURL", 2)
}

func TestIngestPrograms_Errors(t *testing.T) {
	t.Run("no codes", func(t *testing.T) {
		svc, _ := newTestService(t, new(mockWriter), nil, &fakePrograms{})
		_, err := svc.IngestPrograms(context.Background(), nil, "OH")
		stdErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeValidationFailed, stdErr.Code)
	})

	t.Run("no source", func(t *testing.T) {
		svc, _ := newTestService(t, new(mockWriter), nil, nil)
		_, err := svc.IngestPrograms(context.Background(), []string{"4805"}, "OH")
		stdErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeIngestionFailed, stdErr.Code)
	})

	t.Run("every lookup fails", func(t *testing.T) {
		n := &fakeNotifier{}
		svc, _ := newTestService(t, new(mockWriter), nil, &fakePrograms{err: errors.New("403")}, WithNotifier(n))
		sum, err := svc.IngestPrograms(context.Background(), []string{"4805"}, "OH")
		require.Error(t, err)
		require.NotNil(t, sum)
		assert.Equal(t, 0, sum.Upserted)
		assert.Len(t, n.events, 1, "failed runs are still published")
	})
}

func TestSummary_ErrorsAreCapped(t *testing.T) {
	sum := &Summary{}
	for i := 0; i < maxErrors+5; i++ {
		sum.addError("failure %d", i)
	}
	assert.Len(t, sum.Errors, maxErrors)
	assert.Equal(t, "failure 0", sum.Errors[0])
}
