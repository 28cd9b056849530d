package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/rkhurana000/skillstrong-pro-sub000/internal/common/errors"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/validation"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/models"
)

// ============================================================================
// OpenAI
// ============================================================================

func newOpenAIServer(t *testing.T, status int, content string, captured *map[string]interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		if captured != nil {
			_ = json.NewDecoder(r.Body).Decode(captured)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"upstream exploded","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"choices": []map[string]interface{}{{"index": 0, "message": map[string]string{"role": "assistant", "content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIProvider_Complete(t *testing.T) {
	var body map[string]interface{}
	srv := newOpenAIServer(t, http.StatusOK, "  IN  ", &body)

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "gpt-4o-mini"})
	out, err := p.Complete(context.Background(), &Request{
		Messages: []models.Message{
			System("classify"),
			User("Is welding a trade?"),
			{Role: models.RoleAssistant, Content: "earlier"},
		},
		MaxTokens: 5,
		JSON:      true,
	})

	require.NoError(t, err)
	assert.Equal(t, "IN", out)
	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.Equal(t, float64(5), body["max_tokens"])
	assert.NotNil(t, body["temperature"], "zero temperature must still be sent")
	assert.Equal(t, map[string]interface{}{"type": "json_object"}, body["response_format"])

	msgs := body["messages"].([]interface{})
	require.Len(t, msgs, 3)
	assert.Equal(t, "system", msgs[0].(map[string]interface{})["role"])
	assert.Equal(t, "assistant", msgs[2].(map[string]interface{})["role"])
}

func TestOpenAIProvider_UpstreamError(t *testing.T) {
	srv := newOpenAIServer(t, http.StatusInternalServerError, "", nil)
	p := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})

	_, err := p.Complete(context.Background(), &Request{Messages: []models.Message{User("hi")}})
	require.Error(t, err)
	stdErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeLLMCompletionFailed, stdErr.Code)
}

// ============================================================================
// Gemini message conversion
// ============================================================================

func TestToGeminiChat(t *testing.T) {
	system, history, last := toGeminiChat([]models.Message{
		System("persona"),
		System("listings"),
		User("hello"),
		{Role: models.RoleAssistant, Content: "hi there"},
		User("tell me about welding"),
		User("in Ohio"),
	})

	require.NotNil(t, system)
	assert.Equal(t, []genai.Part{genai.Text("persona"), genai.Text("listings")}, system.Parts)

	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "model", history[1].Role)
	assert.Equal(t, []genai.Part{genai.Text("tell me about welding"), genai.Text("in Ohio")}, last)
}

func TestToGeminiChat_OnlySystem(t *testing.T) {
	system, history, last := toGeminiChat([]models.Message{System("persona"), User("   ")})
	assert.NotNil(t, system)
	assert.Nil(t, history)
	assert.Nil(t, last)
}

func TestCandidateText(t *testing.T) {
	assert.Equal(t, "", candidateText(nil))
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Text("a"), genai.Text("b")}},
	}}}
	assert.Equal(t, "ab", candidateText(resp))
}

// ============================================================================
// Registry
// ============================================================================

type namedProvider string

func (n namedProvider) Name() string { return string(n) }
func (n namedProvider) Complete(context.Context, *Request) (string, error) {
	return string(n), nil
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry(ProviderOpenAI, namedProvider(ProviderOpenAI), namedProvider(ProviderGemini), nil)

	p, err := r.Get("")
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, p.Name())

	p, err = r.Get(" Gemini ")
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, p.Name())

	_, err = r.Get("claude")
	assert.True(t, errors.Is(err, ErrUnknownProvider))
	assert.Equal(t, []string{"gemini", "openai"}, r.Names())
}

// ============================================================================
// JSON output
// ============================================================================

var testSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["followups"],
	"properties": {"followups": {"type": "array", "items": {"type": "string"}}}
}`)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"single line fence", "```{\"a\":1}```", `{"a":1}`},
		{"whitespace", "  \n{\"a\":1}\n ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Followups []string `json:"followups"`
	}

	t.Run("fenced valid", func(t *testing.T) {
		var out payload
		err := DecodeJSON("```json\n{\"followups\": [\"a\", \"b\"]}\n```", testSchema, &out)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, out.Followups)
	})

	for name, raw := range map[string]string{
		"empty":       "   ",
		"prose":       "Here are some questions: 1. a 2. b",
		"wrong shape": `{"questions": ["a"]}`,
		"bad items":   `{"followups": [1]}`,
	} {
		t.Run(name, func(t *testing.T) {
			var out payload
			err := DecodeJSON(raw, testSchema, &out)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnparseable))
			var ue *UnparseableError
			require.True(t, errors.As(err, &ue))
			assert.Equal(t, raw, ue.Raw)
		})
	}
}
