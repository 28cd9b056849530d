// internal/pipeline/followups/handler.go
package followups

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/logger"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/textutil"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/validation"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/llm"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/models"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/search"
)

const (
	TaskType = "followups"

	MaxFollowups = 6
	// items with this many words or more are dropped
	maxWords = 12
)

var defaultFollowups = []string{
	"What does a CNC machinist do?",
	"How do I find an apprenticeship near me?",
	"Which certifications help me get hired?",
}

// Defaults returns the static follow-up list.
func Defaults() []string {
	out := make([]string, len(defaultFollowups))
	copy(out, defaultFollowups)
	return out
}

var payloadSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["followups"],
	"properties": {
		"followups": {
			"type": "array",
			"items": {"type": "string"}
		}
	}
}`)

const instruction = `You suggest what a user might ask a manufacturing career coach next.
Return a JSON object {"followups": [...]} with up to 6 short, distinct questions.
Each question must be under 12 words, written from the user's point of view, and stay on manufacturing careers, training or pay.`

// Clean trims, drops empty and overlong items, de-duplicates ignoring case
// and caps the list at MaxFollowups.
func Clean(items []string) []string {
	out := make([]string, 0, MaxFollowups)
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if len(out) == MaxFollowups {
			break
		}
		item = strings.Join(strings.Fields(item), " ")
		if item == "" || textutil.WordCount(item) >= maxWords {
			continue
		}
		key := textutil.Fold(item)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

type Handler struct {
	config *Config
	llm    *llm.Registry
	logger logger.Logger
}

func NewHandler(config *Config, registry *llm.Registry, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		llm:    registry,
		logger: log.WithFields(map[string]interface{}{"stage": TaskType}),
	}
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("input cannot be nil")
	}

	items, err := h.generate(ctx, input)
	if err != nil {
		fields := map[string]interface{}{"error": err.Error()}
		if errors.Is(err, llm.ErrUnparseable) {
			fields["unparseable"] = true
		}
		h.logger.Warn("follow-up generation failed, using defaults", fields)
		return &Output{Followups: Defaults(), Fallback: true}, nil
	}

	items = Clean(items)
	if len(items) == 0 {
		return &Output{Followups: Defaults(), Fallback: true}, nil
	}
	if h.config.Limit > 0 && len(items) > h.config.Limit {
		items = items[:h.config.Limit]
	}
	return &Output{Followups: items}, nil
}

func (h *Handler) generate(ctx context.Context, input *Input) ([]string, error) {
	provider, err := h.llm.Get(input.Provider)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	raw, err := provider.Complete(ctx, &llm.Request{
		Messages: []models.Message{
			llm.System(instruction),
			llm.User("Question: " + input.Query + "\n\nAnswer:\n" + search.Truncate(input.Answer, h.config.MaxAnswerChars)),
		},
		Temperature: h.config.Temperature,
		MaxTokens:   h.config.MaxTokens,
		JSON:        true,
	})
	if err != nil {
		return nil, err
	}

	var p payload
	if err := llm.DecodeJSON(raw, payloadSchema, &p); err != nil {
		return nil, err
	}
	return p.Followups, nil
}

// Generate always returns between one and MaxFollowups suggestions.
func (h *Handler) Generate(ctx context.Context, query, answer, provider string) []string {
	out, err := h.execute(ctx, &Input{Query: query, Answer: answer, Provider: provider})
	if err != nil {
		return Defaults()
	}
	return out.Followups
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
