package queryinternallistings

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/logger"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/models"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/store"
)

// ============================================================================
// Test helpers
// ============================================================================

type fakeListings struct {
	jobs        []models.Job
	programs    []models.Program
	jobErr      error
	programErr  error
	jobCalls    []store.JobFilter
	programCall []store.ProgramFilter
}

func (f *fakeListings) SearchJobs(_ context.Context, filter store.JobFilter) ([]models.Job, error) {
	f.jobCalls = append(f.jobCalls, filter)
	return f.jobs, f.jobErr
}

func (f *fakeListings) SearchPrograms(_ context.Context, filter store.ProgramFilter) ([]models.Program, error) {
	f.programCall = append(f.programCall, filter)
	return f.programs, f.programErr
}

func createTestConfig() *Config {
	return &Config{
		Timeout:  time.Second,
		CacheTTL: 5 * time.Minute,
		PerTable: 3,
	}
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func intp(n int) *int { return &n }

func sampleJobs(n int) []models.Job {
	jobs := make([]models.Job, n)
	for i := range jobs {
		jobs[i] = models.Job{Title: "CNC Machinist", Company: "Acme", Location: "Cleveland, OH"}
	}
	return jobs
}

// ============================================================================
// Predicates
// ============================================================================

func TestTriggers(t *testing.T) {
	tests := []struct {
		q                          string
		jobs, programs, apprentice bool
	}{
		{"CNC machinist jobs in Cleveland, OH", true, false, false},
		{"Any welding openings near Akron?", true, false, false},
		{"welding certificate programs", false, true, false},
		{"Where can I get training for robotics?", false, true, false},
		{"Find me an apprenticeship in machining", true, false, true},
		{"Apprentice programs for electricians", true, true, true},
		{"Tell me about CNC Machinist", false, false, false},
		{"How much do welders make?", false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.q, func(t *testing.T) {
			assert.Equal(t, tt.jobs, WantsJobs(tt.q), "jobs")
			assert.Equal(t, tt.programs, WantsPrograms(tt.q), "programs")
			assert.Equal(t, tt.apprentice, WantsApprenticeship(tt.q), "apprenticeship")
		})
	}
}

func TestExtractLocation(t *testing.T) {
	tests := []struct{ q, want string }{
		{"CNC machinist jobs in Cleveland, OH", "Cleveland, OH"},
		{"welding programs near Akron?", "Akron"},
		{"jobs in manufacturing in New York", "New York"},
		{"welding jobs near me", ""},
		{"training in welding", ""},
		{"CNC machinist jobs", ""},
		{"welding jobs in cleveland", "cleveland"},
		{"cnc programs near akron, oh?", "akron, oh"},
		{"jobs near me", ""},
		{"cnc jobs in the area", ""},
	}
	for _, tt := range tests {
		t.Run(tt.q, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractLocation(tt.q))
		})
	}
}

func TestExtractKeyword(t *testing.T) {
	tests := []struct{ q, want string }{
		{"CNC machinist jobs in Cleveland, OH", "cnc machinist"},
		{"Are there any welding openings near Akron?", "welding"},
		{"Show me robotics training programs", "robotics"},
		{"Find an apprenticeship", ""},
		{"Tell me about CNC Machinist", "cnc machinist"},
		{"welding jobs in cleveland", "welding"},
		{"training in welding", "welding"},
		{"welding jobs near me", "welding"},
	}
	for _, tt := range tests {
		t.Run(tt.q, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractKeyword(tt.q))
		})
	}
}

func TestFormatPay(t *testing.T) {
	assert.Equal(t, "", FormatPay(nil, nil))
	assert.Equal(t, "$22–$30/hr", FormatPay(intp(22), intp(30)))
	assert.Equal(t, "$45,000–$60,000/yr", FormatPay(intp(45000), intp(60000)))
	assert.Equal(t, "$25/hr", FormatPay(intp(25), intp(25)))
	assert.Equal(t, "up to $1,200,000/yr", FormatPay(nil, intp(1200000)))
}

// ============================================================================
// Execution
// ============================================================================

func TestHandler_Execute_JobsOnly(t *testing.T) {
	fake := &fakeListings{jobs: []models.Job{{
		Title: "CNC Machinist", Company: "Acme", Location: "Cleveland, OH",
		PayMin: intp(22), PayMax: intp(30), ApplyURL: "https://acme.example/apply",
	}}}
	h := NewHandler(createTestConfig(), fake, nil, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Query: "CNC machinist jobs in Cleveland, OH"})
	require.NoError(t, err)

	require.Len(t, fake.jobCalls, 1)
	assert.Empty(t, fake.programCall)
	f := fake.jobCalls[0]
	assert.Equal(t, "cnc machinist", f.Keyword)
	assert.Equal(t, "Cleveland", f.Location)
	assert.Equal(t, 3, f.Limit)
	assert.Nil(t, f.Apprenticeship)

	assert.Equal(t, 1, out.JobCount)
	assert.True(t, strings.HasPrefix(out.Markdown, Heading))
	assert.Contains(t, out.Markdown, "- **CNC Machinist** · Acme · Cleveland, OH · $22–$30/hr · [Apply](https://acme.example/apply)")
	assert.NotContains(t, out.Markdown, "Training programs")
}

func TestHandler_Execute_LowerCasePlace(t *testing.T) {
	fake := &fakeListings{}
	h := NewHandler(createTestConfig(), fake, nil, logger.NewTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{Query: "welding jobs in cleveland"})
	require.NoError(t, err)
	require.Len(t, fake.jobCalls, 1)
	assert.Equal(t, "welding", fake.jobCalls[0].Keyword)
	assert.Equal(t, "cleveland", fake.jobCalls[0].Location)
}

func TestHandler_Execute_ExplicitLocationWins(t *testing.T) {
	fake := &fakeListings{}
	h := NewHandler(createTestConfig(), fake, nil, logger.NewTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{Query: "welding programs near Akron", Location: "Toledo, OH"})
	require.NoError(t, err)
	require.Len(t, fake.programCall, 1)
	assert.Equal(t, "Toledo", fake.programCall[0].Location)
}

func TestHandler_Execute_ApprenticeshipFilter(t *testing.T) {
	fake := &fakeListings{}
	h := NewHandler(createTestConfig(), fake, nil, logger.NewTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{Query: "machining apprenticeships"})
	require.NoError(t, err)
	require.Len(t, fake.jobCalls, 1)
	require.NotNil(t, fake.jobCalls[0].Apprenticeship)
	assert.True(t, *fake.jobCalls[0].Apprenticeship)
}

func TestHandler_Execute_NoTriggerNoQuery(t *testing.T) {
	fake := &fakeListings{jobs: sampleJobs(1)}
	h := NewHandler(createTestConfig(), fake, nil, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Query: "Tell me about CNC Machinist"})
	require.NoError(t, err)
	assert.Equal(t, "", out.Markdown)
	assert.Empty(t, fake.jobCalls)
	assert.Empty(t, fake.programCall)
}

func TestHandler_Execute_EmptyResultHasNoHeading(t *testing.T) {
	fake := &fakeListings{}
	h := NewHandler(createTestConfig(), fake, nil, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Query: "welding jobs and training programs"})
	require.NoError(t, err)
	assert.Equal(t, "", out.Markdown)
	assert.Len(t, fake.jobCalls, 1)
	assert.Len(t, fake.programCall, 1)
}

func TestHandler_Execute_StoreErrorIsNoResults(t *testing.T) {
	fake := &fakeListings{
		jobErr:   errors.New("connection refused"),
		programs: []models.Program{{Title: "Welding Certificate", School: "Tri-C", Delivery: models.DeliveryHybrid, LengthWeeks: intp(16), Cost: intp(4200)}},
	}
	h := NewHandler(createTestConfig(), fake, nil, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Query: "welding jobs and training programs"})
	require.NoError(t, err)
	assert.Equal(t, 0, out.JobCount)
	assert.Equal(t, 1, out.ProgramCount)
	assert.NotContains(t, out.Markdown, "**Jobs**")
	assert.Contains(t, out.Markdown, "- **Welding Certificate** · Tri-C · hybrid · 16 weeks · $4,200")
}

func TestHandler_Execute_CapsRowsPerTable(t *testing.T) {
	fake := &fakeListings{jobs: sampleJobs(5)}
	h := NewHandler(createTestConfig(), fake, nil, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Query: "machinist jobs"})
	require.NoError(t, err)
	assert.Equal(t, 3, out.JobCount)
	assert.Equal(t, 3, strings.Count(out.Markdown, "\n- "))
}

func TestHandler_Execute_Cache(t *testing.T) {
	mr, rdb := setupRedis(t)
	fake := &fakeListings{jobs: sampleJobs(1)}
	h := NewHandler(createTestConfig(), fake, rdb, logger.NewTestLogger(t))

	first, err := h.Execute(context.Background(), &Input{Query: "machinist jobs in Akron"})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := h.Execute(context.Background(), &Input{Query: "machinist jobs in Akron"})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Markdown, second.Markdown)
	assert.Len(t, fake.jobCalls, 1)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "chat:internal:"))
}

func TestHandler_Execute_EmptyIsNotCached(t *testing.T) {
	mr, rdb := setupRedis(t)
	h := NewHandler(createTestConfig(), &fakeListings{}, rdb, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Query: "machinist jobs"})
	require.NoError(t, err)
	assert.Equal(t, "", out.Markdown)
	assert.Empty(t, mr.Keys())
}

func TestHandler_Lookup(t *testing.T) {
	h := NewHandler(createTestConfig(), &fakeListings{jobs: sampleJobs(1)}, nil, logger.NewTestLogger(t))
	assert.Contains(t, h.Lookup(context.Background(), "machinist jobs", ""), Heading)

	_, err := h.Execute(context.Background(), nil)
	assert.Error(t, err)
}
