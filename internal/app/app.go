// internal/app/app.go

// Package app builds the long-lived clients and services shared by the
// server and the ingestion CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/aws"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/config"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/database"
	commonhttp "github.com/rkhurana000/skillstrong-pro-sub000/internal/common/http"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/logger"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/ingest"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/llm"
	answergenerator "github.com/rkhurana000/skillstrong-pro-sub000/internal/pipeline/answer-generator"
	domainclassifier "github.com/rkhurana000/skillstrong-pro-sub000/internal/pipeline/domain-classifier"
	featuredmatch "github.com/rkhurana000/skillstrong-pro-sub000/internal/pipeline/featured-match"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/pipeline/followups"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/pipeline/orchestrator"
	queryinternallistings "github.com/rkhurana000/skillstrong-pro-sub000/internal/pipeline/query-internal-listings"
	webaugmentation "github.com/rkhurana000/skillstrong-pro-sub000/internal/pipeline/web-augmentation"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/search"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/store"
)

var ErrNoProviders = errors.New("no LLM provider has an API key configured")

// RetryWithBackoff attempts to execute a function with exponential backoff.
func RetryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// ConnectPostgres opens and pings Postgres, then applies the schema when
// auto_migrate is set.
func ConnectPostgres(ctx context.Context, cfg config.PostgresConfig, zapLog *zap.Logger, maxRetries int) (*database.PostgresClient, error) {
	var pg *database.PostgresClient
	err := RetryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			_ = pg.Close()
			return err
		}
		return nil
	}, maxRetries, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := pg.Bootstrap(ctx); err != nil {
			_ = pg.Close()
			return nil, fmt.Errorf("bootstrap schema: %w", err)
		}
		zapLog.Info("PostgreSQL schema applied")
	}
	return pg, nil
}

// ConnectRedis returns nil when the cache is disabled.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig, zapLog *zap.Logger) (*database.RedisClient, error) {
	rc := database.NewRedis(cfg)
	if rc == nil {
		return nil, nil
	}
	err := RetryWithBackoff(func() error {
		return rc.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		_ = rc.Close()
		return nil, err
	}
	return rc, nil
}

// ConnectElasticsearch returns nil when the listing index is disabled.
func ConnectElasticsearch(ctx context.Context, cfg config.ElasticsearchConfig, zapLog *zap.Logger) (*database.ElasticsearchClient, error) {
	es, err := database.NewElasticsearch(cfg)
	if err != nil || es == nil {
		return nil, err
	}
	err = RetryWithBackoff(func() error {
		return es.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		return nil, err
	}
	return es, nil
}

// NewLLMRegistry registers every provider that has a key. The returned
// closer releases the Gemini client and is safe to call on error.
func NewLLMRegistry(ctx context.Context, cfg config.LLMConfig) (*llm.Registry, func(), error) {
	var providers []llm.Provider
	closer := func() {}

	if cfg.OpenAI.APIKey != "" {
		providers = append(providers, llm.NewOpenAIProvider(llm.OpenAIConfig{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
		}))
	}
	if cfg.Gemini.APIKey != "" {
		gemini, err := llm.NewGeminiProvider(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			return nil, closer, fmt.Errorf("create gemini client: %w", err)
		}
		providers = append(providers, gemini)
		closer = func() { _ = gemini.Close() }
	}
	if len(providers) == 0 {
		return nil, closer, ErrNoProviders
	}

	// A default without a key falls back to the first configured provider.
	registry := llm.NewRegistry(cfg.DefaultProvider, providers...)
	if _, err := registry.Get(""); err != nil {
		registry = llm.NewRegistry(providers[0].Name(), providers...)
	}
	return registry, closer, nil
}

// NewSearcher returns nil when no search key is configured.
func NewSearcher(ctx context.Context, cfg *config.Config) (search.Searcher, error) {
	g, err := search.NewGoogleSearcher(ctx, search.GoogleConfig{
		APIKey:   cfg.APIs.WebSearch.APIKey,
		EngineID: cfg.APIs.WebSearch.EngineID,
		BaseURL:  cfg.APIs.WebSearch.BaseURL,
		Timeout:  config.GetDuration(cfg.APIs.WebSearch.Timeout),
	})
	if errors.Is(err, search.ErrSearchNotConfigured) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

// NewOrchestrator wires the chat stages from config. Web augmentation is
// left out when searcher is nil.
func NewOrchestrator(cfg *config.Config, registry *llm.Registry, listings *store.Listings, rc *database.RedisClient, searcher search.Searcher, log logger.Logger) *orchestrator.Orchestrator {
	llmTimeout := config.GetDuration(cfg.LLM.Timeout)

	classifierCfg := domainclassifier.LoadConfig()
	classifierCfg.CacheTTL = config.GetDuration(cfg.Chat.ClassifyCacheTTL)

	listingsCfg := queryinternallistings.LoadConfig()
	listingsCfg.CacheTTL = config.GetDuration(cfg.Chat.InternalCacheTTL)
	listingsCfg.PerTable = cfg.Chat.ListingsPerTable

	generatorCfg := answergenerator.LoadConfig()
	generatorCfg.Timeout = llmTimeout
	generatorCfg.Temperature = cfg.Chat.AnswerTemp

	followupsCfg := followups.LoadConfig()
	followupsCfg.Limit = cfg.Chat.MaxFollowups

	stages := orchestrator.Stages{
		Classifier: domainclassifier.NewHandler(classifierCfg, registry, rc.GetClient(), log),
		Listings:   queryinternallistings.NewHandler(listingsCfg, listings, rc.GetClient(), log),
		Generator:  answergenerator.NewHandler(generatorCfg, registry, log),
		Featured:   featuredmatch.NewHandler(featuredmatch.LoadConfig(), listings, log),
		Followups:  followups.NewHandler(followupsCfg, registry, log),
	}

	if searcher != nil {
		webCfg := webaugmentation.LoadConfig()
		webCfg.Timeout = llmTimeout
		webCfg.MaxResults = cfg.APIs.WebSearch.MaxResults
		webCfg.MaxPages = cfg.APIs.PageFetch.MaxPages
		webCfg.MaxChars = cfg.APIs.PageFetch.MaxChars

		fetcher := search.NewPageFetcher(search.FetcherConfig{
			Timeout:        config.GetDuration(cfg.APIs.PageFetch.Timeout),
			MaxChars:       cfg.APIs.PageFetch.MaxChars,
			UserAgent:      cfg.APIs.PageFetch.UserAgent,
			UseReadability: cfg.APIs.PageFetch.UseReadability,
		})
		stages.Web = webaugmentation.NewHandler(webCfg, registry, searcher, fetcher, log)
	}

	orchCfg := orchestrator.LoadConfig()
	if rt := config.GetDuration(cfg.Server.RequestTimeout); rt > 0 && rt < orchCfg.Timeout {
		orchCfg.Timeout = rt
	}
	return orchestrator.New(orchCfg, stages, log)
}

// NewIngestService wires the job and program sources, the optional search
// index and the optional SNS notifier.
func NewIngestService(ctx context.Context, cfg *config.Config, listings *store.Listings, index *store.ListingIndex, searcher search.Searcher, log logger.Logger) (*ingest.Service, error) {
	scorecard := ingest.NewScorecardClient(ingest.ScorecardConfig{
		BaseURL: cfg.APIs.Scorecard.BaseURL,
		APIKey:  cfg.APIs.Scorecard.APIKey,
	}, commonhttp.NewClient(config.GetDuration(cfg.APIs.Scorecard.Timeout)))

	var opts []ingest.Option
	if index != nil {
		opts = append(opts, ingest.WithIndexer(index))
	}
	if cfg.Ingest.SNSTopicARN != "" {
		notifier, err := aws.NewNotifier(ctx, cfg.Ingest.AWSRegion, cfg.Ingest.SNSTopicARN)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ingest.WithNotifier(notifier))
	}

	return ingest.NewService(&ingest.Config{
		Delay:           config.GetDuration(cfg.Ingest.Delay),
		ResultsPerQuery: 10,
	}, listings, searcher, scorecard, log, opts...), nil
}

// IngestPlan is the configured scheduled batch.
func IngestPlan(cfg config.IngestConfig) ingest.Plan {
	return ingest.Plan{
		Queries:  cfg.Queries,
		Location: cfg.Location,
		CIPCodes: cfg.CIPCodes,
		State:    cfg.State,
	}
}
