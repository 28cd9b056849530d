// internal/pipeline/answer-generator/handler.go
package answergenerator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/logger"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/llm"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/models"
)

const (
	TaskType = "answer-generator"
)

var (
	ErrNoMessages = errors.New("NO_MESSAGES")
)

// Persona is the fixed system prompt for every answer.
const Persona = `You are "Coach Mach," a friendly, practical AI career coach for modern manufacturing careers.
Your audience is students, career changers and veterans exploring skilled technical jobs.

Follow these rules:
1. Prioritize internal data. When a message titled "From our listings" is present, lead with those jobs and programs before anything else.
2. Apply the vocational filter. Read broad questions (for example "robotics careers" or "engineering jobs") as questions about entry-level technician and skilled-trade roles that need a certificate, apprenticeship or associate degree, not a four-year engineering degree.
3. Answer the direct question first, then add supporting detail. Keep answers concise and use markdown headings and bullets.
4. Stay on manufacturing careers. Politely steer unrelated questions back to manufacturing jobs, training and pay.
5. Never fabricate URLs, statistics, wages or program names. If you do not know a number, say so and suggest where to check.`

// overviewSections are the fixed headings of a first-message career overview.
var overviewSections = []string{
	"Overview",
	"Day-to-Day Tasks",
	"Skills & Certifications",
	"Training Paths",
	"Pay & Outlook",
}

// OverviewSections returns the section headings an overview answer uses.
func OverviewSections() []string {
	out := make([]string, len(overviewSections))
	copy(out, overviewSections)
	return out
}

// OverviewPrompt seeds the first message of a "Tell me about X" chat.
func OverviewPrompt(career string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Give me a career overview of %s in manufacturing.\n", career)
	b.WriteString("Use exactly these markdown sections, in this order:\n")
	for _, s := range overviewSections {
		fmt.Fprintf(&b, "**%s**\n", s)
	}
	b.WriteString("Keep each section to a few short bullets and focus on entry-level paths.")
	return b.String()
}

var tellMeAbout = regexp.MustCompile(`(?i)^\s*tell me about\s+(.+?)[\s?.!]*$`)

// OverviewSubject extracts X from "Tell me about X".
func OverviewSubject(text string) (string, bool) {
	m := tellMeAbout.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	subject := strings.TrimSpace(m[1])
	if subject == "" {
		return "", false
	}
	return subject, true
}

// BuildPrompt orders the persona, optional listings and location context,
// then the conversation. Client supplied system messages are dropped.
func BuildPrompt(input *Input) []models.Message {
	msgs := []models.Message{llm.System(Persona)}
	if ctx := strings.TrimSpace(input.InternalContext); ctx != "" {
		msgs = append(msgs, llm.System(ctx))
	}
	if loc := strings.TrimSpace(input.Location); loc != "" {
		msgs = append(msgs, llm.System("The user's location is "+loc+". Prefer local employers, programs and wages when relevant."))
	}
	for _, m := range input.Messages {
		if m.Role == models.RoleSystem || strings.TrimSpace(m.Content) == "" {
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs
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
	if input == nil || models.LastUserMessage(input.Messages) < 0 {
		return nil, ErrNoMessages
	}

	provider, err := h.llm.Get(input.Provider)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	raw, err := provider.Complete(ctx, &llm.Request{
		Messages:    BuildPrompt(input),
		Temperature: h.config.Temperature,
		MaxTokens:   h.config.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	answer := strings.TrimSpace(raw)
	if answer == "" {
		h.logger.Warn("empty completion", map[string]interface{}{"provider": provider.Name()})
	}
	return &Output{Answer: answer, Provider: provider.Name()}, nil
}

// Generate returns the draft answer. Provider errors are returned as is.
func (h *Handler) Generate(ctx context.Context, input *Input) (string, error) {
	out, err := h.execute(ctx, input)
	if err != nil {
		return "", err
	}
	return out.Answer, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
