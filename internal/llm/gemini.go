// internal/llm/gemini.go
package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	apperrors "github.com/rkhurana000/skillstrong-pro-sub000/internal/common/errors"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/models"
)

type GeminiProvider struct {
	client    *genai.Client
	modelName string
}

func NewGeminiProvider(ctx context.Context, apiKey, modelName string) (*GeminiProvider, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiProvider{client: cl, modelName: modelName}, nil
}

func (g *GeminiProvider) Name() string { return ProviderGemini }

func (g *GeminiProvider) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiProvider) Complete(ctx context.Context, req *Request) (string, error) {
	system, history, last := toGeminiChat(req.Messages)
	if len(last) == 0 {
		return "", nil
	}

	m := g.client.GenerativeModel(g.modelName)
	m.SetTemperature(req.Temperature)
	if req.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.JSON {
		m.ResponseMIMEType = "application/json"
	}
	m.SystemInstruction = system

	cs := m.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, last...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return "", apperrors.NewLLMTimeoutError(ProviderGemini)
		}
		return "", apperrors.NewLLMCompletionFailedError(ProviderGemini, err)
	}
	return strings.TrimSpace(candidateText(resp)), nil
}

// toGeminiChat folds system messages into one system instruction and maps the
// remaining turns onto Gemini's user/model roles. The final turn is returned
// separately because it is sent, not replayed.
func toGeminiChat(msgs []models.Message) (*genai.Content, []*genai.Content, []genai.Part) {
	var systemParts []genai.Part
	var turns []*genai.Content

	for _, m := range msgs {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		if m.Role == models.RoleSystem {
			systemParts = append(systemParts, genai.Text(m.Content))
			continue
		}
		role := "user"
		if m.Role == models.RoleAssistant {
			role = "model"
		}
		// Gemini rejects consecutive turns with the same role.
		if n := len(turns); n > 0 && turns[n-1].Role == role {
			turns[n-1].Parts = append(turns[n-1].Parts, genai.Text(m.Content))
			continue
		}
		turns = append(turns, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}

	var system *genai.Content
	if len(systemParts) > 0 {
		system = &genai.Content{Parts: systemParts}
	}
	if len(turns) == 0 {
		return system, nil, nil
	}
	lastTurn := turns[len(turns)-1]
	return system, turns[:len(turns)-1], lastTurn.Parts
}

func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}
