// internal/api/server.go

// Package api exposes the chat pipeline, listings, conversation history and
// admin ingestion over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/auth"
	apperrors "github.com/rkhurana000/skillstrong-pro-sub000/internal/common/errors"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/logger"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/observability"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/ingest"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/models"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/pipeline/orchestrator"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/store"
)

type ChatRunner interface {
	Run(ctx context.Context, req *orchestrator.ChatRequest) (*orchestrator.ChatResponse, error)
}

type ListingStore interface {
	SearchJobs(ctx context.Context, f store.JobFilter) ([]models.Job, error)
	GetJob(ctx context.Context, id string) (*models.Job, error)
	CreateJob(ctx context.Context, j *models.Job) error
	SearchPrograms(ctx context.Context, f store.ProgramFilter) ([]models.Program, error)
	GetProgram(ctx context.Context, id string) (*models.Program, error)
	CreateProgram(ctx context.Context, p *models.Program) error
	CreateFeatured(ctx context.Context, f *models.Featured) error
}

// ConversationStore is scoped by owner on every call.
type ConversationStore interface {
	List(ctx context.Context, userID string) ([]models.ConversationSummary, error)
	Get(ctx context.Context, userID, id string) (*models.Conversation, error)
	Create(ctx context.Context, c *models.Conversation) error
	Update(ctx context.Context, userID string, c *models.Conversation) error
	Delete(ctx context.Context, userID, id string) error
	DeleteAll(ctx context.Context, userID string) (int64, error)
}

type SiteSearcher interface {
	Search(ctx context.Context, q string, limit int) ([]models.ListingHit, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators behind the routes. Index, Ingest, Obs and
// Metrics are optional.
type Deps struct {
	Chat          ChatRunner
	Listings      ListingStore
	Conversations ConversationStore
	Search        SiteSearcher
	Ingest        ingest.Runner
	Index         ingest.Indexer
	Verifier      *auth.Verifier
	Obs           *observability.Observability
	Metrics       http.Handler
	Readiness     map[string]Pinger
	Logger        logger.Logger
}

type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	AdminRole      string
}

type Server struct {
	deps   Deps
	opts   Options
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

func NewServer(opts Options, deps Deps) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 150 * time.Second
	}
	if opts.AdminRole == "" {
		opts.AdminRole = "service_role"
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.WithFields(map[string]interface{}{"component": "api"})
	return &Server{
		deps:   deps,
		opts:   opts,
		errors: apperrors.NewErrorHandler(log),
		logger: log,
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if s.deps.Obs != nil {
		r.Use(s.deps.Obs.Middleware)
	}

	r.Get("/health", s.health)
	r.Get("/ready", s.ready)
	if s.deps.Metrics != nil {
		r.Handle("/metrics", s.deps.Metrics)
	}

	r.Route("/api", func(api chi.Router) {
		api.Group(func(public chi.Router) {
			public.Use(s.optionalAuth)
			public.Post("/chat", s.chat)

			public.Get("/jobs", s.listJobs)
			public.Post("/jobs", s.createJob)
			public.Get("/jobs/{id}", s.getJob)

			public.Get("/programs", s.listPrograms)
			public.Post("/programs", s.createProgram)
			public.Get("/programs/{id}", s.getProgram)

			public.Get("/search", s.search)
		})

		api.Group(func(private chi.Router) {
			private.Use(s.requireAuth)
			private.Get("/conversations", s.listConversations)
			private.Post("/conversations", s.createConversation)
			private.Delete("/conversations", s.clearConversations)
			private.Get("/conversations/{id}", s.getConversation)
			private.Put("/conversations/{id}", s.updateConversation)
			private.Delete("/conversations/{id}", s.deleteConversation)
		})

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(s.requireAuth)
			admin.Use(s.requireAdmin)
			admin.Post("/featured", s.createFeatured)
			admin.Post("/ingest/jobs", s.ingestJobs)
			admin.Post("/ingest/programs", s.ingestPrograms)
		})
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ready pings every backing service and reports each one.
func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.deps.Readiness))
	for name, p := range s.deps.Readiness {
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "unavailable"
		s.logger.Warn("readiness check failed", map[string]interface{}{"checks": checks})
	}
	apperrors.WriteJSON(w, status, map[string]interface{}{"status": state, "checks": checks})
}
