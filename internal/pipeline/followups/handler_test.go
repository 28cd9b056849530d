package followups

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/logger"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/llm"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/llm/llmtest"
)

func createTestConfig() *Config {
	return &Config{Timeout: time.Second, Temperature: 0.7, MaxTokens: 300, MaxAnswerChars: 50}
}

func newHandler(t *testing.T, fake *llmtest.Fake) *Handler {
	return NewHandler(createTestConfig(), llm.NewRegistry(llm.ProviderOpenAI, fake), logger.NewTestLogger(t))
}

func TestClean(t *testing.T) {
	long := strings.TrimSpace(strings.Repeat("word ", 12))
	got := Clean([]string{
		"  What do welders earn?  ",
		"",
		"what do  WELDERS earn?",
		long,
		"How long is a CNC program?",
		"Is OSHA 10 required?",
		"Where can I train?",
		"Do I need a degree?",
		"What tools will I use?",
		"One too many?",
	})
	assert.Equal(t, []string{
		"What do welders earn?",
		"How long is a CNC program?",
		"Is OSHA 10 required?",
		"Where can I train?",
		"Do I need a degree?",
		"What tools will I use?",
	}, got)

	assert.Len(t, Clean([]string{strings.TrimSpace(strings.Repeat("word ", 11))}), 1, "eleven words is allowed")
	assert.Empty(t, Clean(nil))
}

func TestHandler_Execute(t *testing.T) {
	fake := &llmtest.Fake{ProviderName: llm.ProviderOpenAI, Default: llmtest.Reply{
		Text: "```json\n{\"followups\": [\"What do welders earn?\", \"Where can I train?\"]}\n```",
	}}
	h := newHandler(t, fake)

	out, err := h.Execute(context.Background(), &Input{Query: "welding", Answer: strings.Repeat("x", 200)})
	require.NoError(t, err)
	assert.False(t, out.Fallback)
	assert.Equal(t, []string{"What do welders earn?", "Where can I train?"}, out.Followups)

	req := fake.Calls()[0]
	assert.True(t, req.JSON)
	assert.NotContains(t, req.Messages[1].Content, strings.Repeat("x", 51))
}

func TestHandler_Execute_FallsBack(t *testing.T) {
	tests := []struct {
		name  string
		reply llmtest.Reply
	}{
		{"provider error", llmtest.Reply{Err: errors.New("timeout")}},
		{"not json", llmtest.Reply{Text: "Here are some ideas: ask about pay"}},
		{"wrong shape", llmtest.Reply{Text: `{"questions": ["a"]}`}},
		{"wrong item type", llmtest.Reply{Text: `{"followups": [1, 2]}`}},
		{"all filtered", llmtest.Reply{Text: `{"followups": ["", "   "]}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(t, &llmtest.Fake{ProviderName: llm.ProviderOpenAI, Default: tt.reply})
			out, err := h.Execute(context.Background(), &Input{Query: "q", Answer: "a"})
			require.NoError(t, err)
			assert.True(t, out.Fallback)
			assert.Equal(t, Defaults(), out.Followups)
		})
	}
}

func TestHandler_Generate_NeverExceedsSix(t *testing.T) {
	items := make([]string, 20)
	for i := range items {
		items[i] = `"Question number ` + string(rune('a'+i)) + `?"`
	}
	fake := &llmtest.Fake{ProviderName: llm.ProviderOpenAI, Default: llmtest.Reply{
		Text: `{"followups": [` + strings.Join(items, ",") + `]}`,
	}}
	h := newHandler(t, fake)

	got := h.Generate(context.Background(), "q", "a", "")
	assert.Len(t, got, MaxFollowups)
}

func TestDefaults_IsACopy(t *testing.T) {
	d := Defaults()
	require.Len(t, d, 3)
	d[0] = "changed"
	assert.Equal(t, "What does a CNC machinist do?", Defaults()[0])
}

func TestHandler_Generate_RespectsLimit(t *testing.T) {
	fake := &llmtest.Fake{ProviderName: llm.ProviderOpenAI, Default: llmtest.Reply{
		Text: `{"followups": ["What do welders earn?", "Where can I train?", "Is OSHA 10 required?", "Do I need a degree?"]}`,
	}}
	config := createTestConfig()
	config.Limit = 2
	h := NewHandler(config, llm.NewRegistry(llm.ProviderOpenAI, fake), logger.NewTestLogger(t))

	got := h.Generate(context.Background(), "q", "a", "")
	assert.Equal(t, []string{"What do welders earn?", "Where can I train?"}, got)
}
