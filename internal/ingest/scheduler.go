// internal/ingest/scheduler.go
package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/logger"
)

// Plan is the batch a scheduled run ingests.
type Plan struct {
	Queries  []string
	Location string
	CIPCodes []string
	State    string
}

// Runner is the part of Service a schedule drives.
type Runner interface {
	IngestJobs(ctx context.Context, queries []string, location string) (*Summary, error)
	IngestPrograms(ctx context.Context, cipCodes []string, state string) (*Summary, error)
}

// Scheduler runs the plan on a cron spec such as "0 3 * * *" or "@every 12h".
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	plan   Plan
	spec   string
	logger logger.Logger
}

func NewScheduler(spec string, runner Runner, plan Plan, log logger.Logger) (*Scheduler, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("empty cron spec")
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return &Scheduler{
		cron:   cron.New(),
		runner: runner,
		plan:   plan,
		spec:   spec,
		logger: log.WithFields(map[string]interface{}{"component": "ingest-scheduler"}),
	}, nil
}

// Start registers the plan and starts the cron loop. Overlapping ticks are
// skipped while a run is still going.
func (s *Scheduler) Start(ctx context.Context) error {
	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		s.RunOnce(ctx)
	}))
	if _, err := s.cron.AddJob(s.spec, job); err != nil {
		return fmt.Errorf("schedule ingestion: %w", err)
	}
	s.cron.Start()
	s.logger.Info("ingestion scheduler started", map[string]interface{}{"spec": s.spec})
	return nil
}

// Stop waits for a running batch to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("ingestion scheduler stopped", nil)
}

// RunOnce ingests the jobs batch and then the programs batch. Empty batches
// are skipped and errors are logged.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if len(s.plan.Queries) > 0 {
		if _, err := s.runner.IngestJobs(ctx, s.plan.Queries, s.plan.Location); err != nil {
			s.logger.Error("scheduled job ingestion failed", map[string]interface{}{"error": err.Error()})
		}
	}
	if ctx.Err() != nil {
		return
	}
	if len(s.plan.CIPCodes) > 0 {
		if _, err := s.runner.IngestPrograms(ctx, s.plan.CIPCodes, s.plan.State); err != nil {
			s.logger.Error("scheduled program ingestion failed", map[string]interface{}{"error": err.Error()})
		}
	}
}
