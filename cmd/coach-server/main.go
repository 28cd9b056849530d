// cmd/coach-server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rkhurana000/skillstrong-pro-sub000/internal/api"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/app"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/auth"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/config"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/database"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/logger"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/observability"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/ingest"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting career coach server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs, err := observability.New(cfg.App.Name, nil)
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Storage ---
	pg, err := app.ConnectPostgres(ctx, cfg.Database.Postgres, zapLog, 15)
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	redisClient, err := app.ConnectRedis(ctx, cfg.Database.Redis, zapLog)
	if err != nil {
		zapLog.Warn("redis unavailable, running without cache", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
		zapLog.Info("Redis connected successfully")
	}

	esClient, err := app.ConnectElasticsearch(ctx, cfg.Database.Elasticsearch, zapLog)
	if err != nil {
		zapLog.Warn("elasticsearch unavailable, site search uses postgres", zap.Error(err))
	}

	listings := store.NewListings(pg.DB)
	var index *store.ListingIndex
	if esClient != nil {
		index = store.NewListingIndex(esClient.Client, esClient.Index)
		zapLog.Info("Elasticsearch connected successfully", zap.String("index", esClient.Index))
	}

	// --- Providers ---
	registry, closeLLM, err := app.NewLLMRegistry(ctx, cfg.LLM)
	if err != nil {
		zapLog.Fatal("llm providers", zap.Error(err))
	}
	defer closeLLM()
	zapLog.Info("LLM providers registered",
		zap.Strings("providers", registry.Names()),
		zap.String("default", registry.Default()),
	)

	searcher, err := app.NewSearcher(ctx, cfg)
	if err != nil {
		zapLog.Fatal("web search client", zap.Error(err))
	}
	if searcher == nil {
		zapLog.Warn("web search not configured, answers will not be web-augmented")
	}

	orch := app.NewOrchestrator(cfg, registry, listings, redisClient, searcher, log)

	ingestSvc, err := app.NewIngestService(ctx, cfg, listings, index, searcher, log)
	if err != nil {
		zapLog.Fatal("ingest service", zap.Error(err))
	}

	// --- Scheduled ingestion ---
	if cfg.Ingest.Schedule != "" {
		sched, err := ingest.NewScheduler(cfg.Ingest.Schedule, ingestSvc, app.IngestPlan(cfg.Ingest), log)
		if err != nil {
			zapLog.Fatal("ingest schedule", zap.Error(err))
		}
		if err := sched.Start(ctx); err != nil {
			zapLog.Fatal("ingest schedule", zap.Error(err))
		}
		defer sched.Stop()
		zapLog.Info("Ingestion scheduled", zap.String("schedule", cfg.Ingest.Schedule))
	}

	// --- HTTP ---
	deps := api.Deps{
		Chat:          orch,
		Listings:      listings,
		Conversations: store.NewConversations(pg.DB),
		Search:        store.NewSiteSearch(listings, index, log),
		Ingest:        ingestSvc,
		Verifier: auth.NewVerifier(auth.VerifierConfig{
			Secret:      cfg.Auth.JWTSecret,
			Issuer:      cfg.Auth.Issuer,
			UserIDClaim: cfg.Auth.UserIDClaim,
			RoleClaim:   cfg.Auth.RoleClaim,
			Leeway:      config.GetDuration(cfg.Auth.ClockSkew),
		}),
		Obs:       obs,
		Metrics:   promhttp.Handler(),
		Readiness: readiness(pg, redisClient, esClient),
		Logger:    log,
	}
	if index != nil {
		deps.Index = index
	}

	srv := api.NewServer(api.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: config.GetDuration(cfg.Server.RequestTimeout),
		AdminRole:      cfg.Auth.AdminRole,
	}, deps)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, draining requests...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down metrics provider", zap.Error(err))
	}

	zapLog.Info("Career coach server stopped gracefully")
}

// readiness lists only the backends that are actually connected.
func readiness(pg *database.PostgresClient, rc *database.RedisClient, es *database.ElasticsearchClient) map[string]api.Pinger {
	checks := map[string]api.Pinger{"postgres": pg}
	if rc != nil {
		checks["redis"] = rc
	}
	if es != nil {
		checks["elasticsearch"] = es
	}
	return checks
}
