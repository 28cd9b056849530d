// internal/pipeline/orchestrator/handler.go

// Package orchestrator runs one chat turn through the pipeline stages in order:
// domain check, internal listings, draft, optional web augmentation, featured
// listings and follow-ups.
package orchestrator

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/rkhurana000/skillstrong-pro-sub000/internal/common/errors"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/logger"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/metrics"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/models"
	answergenerator "github.com/rkhurana000/skillstrong-pro-sub000/internal/pipeline/answer-generator"
	domainclassifier "github.com/rkhurana000/skillstrong-pro-sub000/internal/pipeline/domain-classifier"
	featuredmatch "github.com/rkhurana000/skillstrong-pro-sub000/internal/pipeline/featured-match"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/pipeline/followups"
	queryinternallistings "github.com/rkhurana000/skillstrong-pro-sub000/internal/pipeline/query-internal-listings"
	webaugmentation "github.com/rkhurana000/skillstrong-pro-sub000/internal/pipeline/web-augmentation"
)

const TaskType = "orchestrator"

// Stages holds the handlers a turn runs through. Featured is optional.
type Stages struct {
	Classifier *domainclassifier.Handler
	Listings   *queryinternallistings.Handler
	Generator  *answergenerator.Handler
	Web        *webaugmentation.Handler
	Featured   *featuredmatch.Handler
	Followups  *followups.Handler
}

type Orchestrator struct {
	config *Config
	stages Stages
	logger logger.Logger
}

func New(config *Config, stages Stages, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		config: config,
		stages: stages,
		logger: log.WithFields(map[string]interface{}{"stage": TaskType}),
	}
}

// Run answers the last user message in req. Stage failures degrade the answer;
// only a missing user message or a failed draft is returned as an error.
func (o *Orchestrator) Run(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if req == nil {
		return nil, apperrors.NewValidationError("request body is required")
	}
	last := models.LastUserMessage(req.Messages)
	if last < 0 || strings.TrimSpace(req.Messages[last].Content) == "" {
		return nil, apperrors.NewValidationError("at least one non-empty user message is required")
	}

	if o.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.Timeout)
		defer cancel()
	}

	query := strings.TrimSpace(req.Messages[last].Content)
	location := strings.TrimSpace(req.Location)
	log := o.logger.WithFields(map[string]interface{}{"provider": req.Provider})

	// domain gate
	start := time.Now()
	inDomain, err := o.stages.Classifier.Classify(ctx, query, req.Provider)
	metrics.ObserveStage(domainclassifier.TaskType, start)
	if err != nil || !inDomain {
		fields := map[string]interface{}{"inDomain": inDomain}
		if err != nil {
			fields["error"] = err.Error()
		}
		log.Info("question rejected as out of domain", fields)
		metrics.ChatTurns.WithLabelValues("rejected", req.Provider).Inc()
		return &ChatResponse{
			Answer:    domainclassifier.RedirectMessage,
			Followups: followups.Defaults(),
			Rejected:  true,
		}, nil
	}

	start = time.Now()
	internal := o.stages.Listings.Lookup(ctx, query, location)
	metrics.ObserveStage(queryinternallistings.TaskType, start)

	start = time.Now()
	draft, err := o.stages.Generator.Execute(ctx, &answergenerator.Input{
		Messages:        seedOverview(req.Messages, last),
		InternalContext: internal,
		Location:        location,
		Provider:        req.Provider,
	})
	metrics.ObserveStage(answergenerator.TaskType, start)
	if err != nil {
		metrics.ChatTurns.WithLabelValues("failed", req.Provider).Inc()
		metrics.UpstreamErrors.WithLabelValues("llm").Inc()
		return nil, apperrors.NewLLMCompletionFailedError(req.Provider, err)
	}

	resp := &ChatResponse{Answer: draft.Answer, Provider: draft.Provider}

	start = time.Now()
	if o.stages.Web != nil && o.stages.Web.ShouldAugment(ctx, &webaugmentation.DecisionInput{
		Query:           query,
		Draft:           draft.Answer,
		InternalContext: internal,
		Provider:        req.Provider,
	}) {
		aug, err := o.stages.Web.Execute(ctx, &webaugmentation.Input{
			Query:    query,
			Location: location,
			Provider: req.Provider,
		})
		if err != nil {
			log.Warn("web augmentation failed, keeping draft", map[string]interface{}{"error": err.Error()})
		}
		if aug != nil {
			resp.Answer = aug.Answer
			resp.Augmented = true
			resp.Sources = aug.Sources
		}
	}
	metrics.ObserveStage(webaugmentation.TaskType, start)

	if o.stages.Featured != nil {
		start = time.Now()
		if block := o.stages.Featured.Block(ctx, query, location); block != "" {
			resp.Answer = strings.TrimRight(resp.Answer, "\n") + "\n\n" + block
		}
		metrics.ObserveStage(featuredmatch.TaskType, start)
	}

	start = time.Now()
	resp.Followups = o.stages.Followups.Generate(ctx, query, resp.Answer, req.Provider)
	metrics.ObserveStage(followups.TaskType, start)

	log.Info("chat turn answered", map[string]interface{}{
		"internalListings": internal != "",
		"augmented":        resp.Augmented,
		"sources":          len(resp.Sources),
		"followups":        len(resp.Followups),
	})
	metrics.ChatTurns.WithLabelValues("answered", resp.Provider).Inc()

	return resp, nil
}

// seedOverview swaps a first "Tell me about X" message for the overview
// prompt. Other conversations are returned unchanged.
func seedOverview(msgs []models.Message, last int) []models.Message {
	if models.CountUserMessages(msgs) != 1 {
		return msgs
	}
	subject, ok := answergenerator.OverviewSubject(msgs[last].Content)
	if !ok {
		return msgs
	}
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	out[last].Content = answergenerator.OverviewPrompt(subject)
	return out
}
