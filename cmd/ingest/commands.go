// cmd/ingest/commands.go
package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rkhurana000/skillstrong-pro-sub000/internal/app"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/config"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/logger"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/ingest"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/search"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/store"
)

// connectFunc opens everything an ingestion run needs. The plan carries the
// configured defaults for flags left empty.
type connectFunc func(ctx context.Context, configPath string) (ingest.Runner, ingest.Plan, func(), error)

func newRootCmd(connect connectFunc) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "ingest",
		Short: "Load job and training listings into the catalog",
		Long: `Fetch manufacturing job postings and training programs from upstream
sources, normalize them and upsert them into the listings catalog.

Examples:
  ingest jobs --query "cnc machinist" --query welder --location "Ohio"
  ingest programs --cip 48.0508 --state OH
  ingest all`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file (defaults to configs/config.yaml)")

	root.AddCommand(newJobsCmd(connect, &configPath))
	root.AddCommand(newProgramsCmd(connect, &configPath))
	root.AddCommand(newAllCmd(connect, &configPath))
	return root
}

func newJobsCmd(connect connectFunc, configPath *string) *cobra.Command {
	var (
		queries  []string
		location string
	)
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Ingest job postings from web search",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, plan, closeFn, err := connect(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer closeFn()

			if len(queries) == 0 {
				queries = plan.Queries
			}
			if location == "" {
				location = plan.Location
			}
			sum, err := runner.IngestJobs(cmd.Context(), queries, location)
			return report(cmd, sum, err)
		},
	}
	cmd.Flags().StringArrayVarP(&queries, "query", "q", nil, "Search query (repeatable)")
	cmd.Flags().StringVarP(&location, "location", "l", "", "Location appended to queries")
	return cmd
}

func newProgramsCmd(connect connectFunc, configPath *string) *cobra.Command {
	var (
		cipCodes []string
		state    string
	)
	cmd := &cobra.Command{
		Use:   "programs",
		Short: "Ingest training programs from the College Scorecard",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, plan, closeFn, err := connect(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer closeFn()

			if len(cipCodes) == 0 {
				cipCodes = plan.CIPCodes
			}
			if state == "" {
				state = plan.State
			}
			sum, err := runner.IngestPrograms(cmd.Context(), cipCodes, state)
			return report(cmd, sum, err)
		},
	}
	cmd.Flags().StringSliceVar(&cipCodes, "cip", nil, "CIP codes, comma separated or repeated")
	cmd.Flags().StringVar(&state, "state", "", "Two-letter state filter")
	return cmd
}

func newAllCmd(connect connectFunc, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run the configured jobs and programs batch once",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, plan, closeFn, err := connect(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer closeFn()

			var firstErr error
			if len(plan.Queries) > 0 {
				sum, err := runner.IngestJobs(cmd.Context(), plan.Queries, plan.Location)
				if err := report(cmd, sum, err); err != nil && firstErr == nil {
					firstErr = err
				}
			}
			if len(plan.CIPCodes) > 0 {
				sum, err := runner.IngestPrograms(cmd.Context(), plan.CIPCodes, plan.State)
				if err := report(cmd, sum, err); err != nil && firstErr == nil {
					firstErr = err
				}
			}
			return firstErr
		},
	}
}

// report prints the summary as JSON even when the run failed part way.
func report(cmd *cobra.Command, sum *ingest.Summary, runErr error) error {
	if sum != nil {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(sum); err != nil {
			return fmt.Errorf("writing summary: %w", err)
		}
	}
	return runErr
}

func connect(ctx context.Context, configPath string) (ingest.Runner, ingest.Plan, func(), error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, ingest.Plan{}, nil, fmt.Errorf("loading config: %w", err)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.NewZapAdapter(zapLog)

	pg, err := app.ConnectPostgres(ctx, cfg.Database.Postgres, zapLog, 3)
	if err != nil {
		return nil, ingest.Plan{}, nil, err
	}
	closers := []func(){func() { _ = pg.Close() }, func() { _ = zapLog.Sync() }}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var index *store.ListingIndex
	es, err := app.ConnectElasticsearch(ctx, cfg.Database.Elasticsearch, zapLog)
	if err != nil {
		zapLog.Warn("elasticsearch unavailable, listings will not be indexed", zap.Error(err))
	} else if es != nil {
		index = store.NewListingIndex(es.Client, es.Index)
	}

	var searcher search.Searcher
	searcher, err = app.NewSearcher(ctx, cfg)
	if err != nil {
		closeAll()
		return nil, ingest.Plan{}, nil, err
	}

	svc, err := app.NewIngestService(ctx, cfg, store.NewListings(pg.DB), index, searcher, log)
	if err != nil {
		closeAll()
		return nil, ingest.Plan{}, nil, err
	}
	return svc, app.IngestPlan(cfg.Ingest), closeAll, nil
}
