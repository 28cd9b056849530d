// test/e2e/e2e_test.go
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rkhurana000/skillstrong-pro-sub000/internal/api"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/app"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/auth"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/config"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/database"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/logger"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/llm"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/llm/llmtest"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/models"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/store"
)

const e2eSecret = "e2e-secret"

var zapLog *zap.Logger

// TestMain needs a disposable Postgres in E2E_DATABASE_URL; the model is scripted.
func TestMain(m *testing.M) {
	if os.Getenv("E2E_DATABASE_URL") == "" {
		os.Exit(0)
	}
	zapLog, _ = zap.NewDevelopment()
	code := m.Run()
	_ = zapLog.Sync()
	os.Exit(code)
}

type e2eEnv struct {
	server *httptest.Server
	model  *llmtest.Fake
	pg     *database.PostgresClient
}

func scriptedModel(req *llm.Request) (string, error) {
	system := req.Messages[0].Content
	switch {
	case strings.Contains(system, "strict topic filter"):
		return "IN", nil
	case strings.Contains(system, "suggest what a user might ask"):
		return `{"followups": ["What certifications do CNC machinists need?", "Where can I train in Ohio?"]}`, nil
	default:
		return "**Overview**\nCNC machinists set up and run computer controlled machine tools.", nil
	}
}

func setup(t *testing.T) *e2eEnv {
	t.Helper()
	ctx := context.Background()

	cfg := &config.Config{}
	cfg.Database.Postgres = config.PostgresConfig{URL: os.Getenv("E2E_DATABASE_URL"), MaxConnections: 5, MaxIdle: 2, AutoMigrate: true}
	cfg.Database.Redis = config.RedisConfig{Enabled: true, Address: miniredis.RunT(t).Addr()}
	cfg.LLM.Timeout = 10000
	cfg.Chat = config.ChatConfig{InternalCacheTTL: 60000, ClassifyCacheTTL: 60000, AnswerTemp: 0.6, MaxFollowups: 6, ListingsPerTable: 3}

	pg, err := app.ConnectPostgres(ctx, cfg.Database.Postgres, zapLog, 3)
	require.NoError(t, err, "❌ PostgreSQL connection failed")
	t.Cleanup(func() { _ = pg.Close() })
	t.Log("✅ PostgreSQL connected and schema applied")

	for _, table := range []string{"featured", "conversations", "jobs", "programs"} {
		_, err := pg.DB.ExecContext(ctx, "DELETE FROM "+table)
		require.NoError(t, err)
	}

	rc, err := app.ConnectRedis(ctx, cfg.Database.Redis, zapLog)
	require.NoError(t, err, "❌ Redis connection failed")
	t.Cleanup(func() { _ = rc.Close() })

	log := logger.NewZapAdapter(zapLog)
	model := &llmtest.Fake{ProviderName: llm.ProviderOpenAI, Respond: scriptedModel}
	registry := llm.NewRegistry(llm.ProviderOpenAI, model)

	listings := store.NewListings(pg.DB)
	srv := api.NewServer(api.Options{}, api.Deps{
		Chat:          app.NewOrchestrator(cfg, registry, listings, rc, nil, log),
		Listings:      listings,
		Conversations: store.NewConversations(pg.DB),
		Search:        store.NewSiteSearch(listings, nil, log),
		Verifier:      auth.NewVerifier(auth.VerifierConfig{Secret: e2eSecret}),
		Readiness:     map[string]api.Pinger{"postgres": pg, "redis": rc},
		Logger:        log,
	})
	server := httptest.NewServer(srv.Routes())
	t.Cleanup(server.Close)

	return &e2eEnv{server: server, model: model, pg: pg}
}

func (e *e2eEnv) call(t *testing.T, method, path, tok string, body interface{}, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestFullE2E(t *testing.T) {
	env := setup(t)
	tok, err := auth.Sign(e2eSecret, auth.Principal{UserID: "e2e-user", Role: "authenticated"}, time.Hour)
	require.NoError(t, err)

	t.Log("🚀 Starting E2E flow against real Postgres...")

	// 1. Readiness
	var ready map[string]interface{}
	require.Equal(t, http.StatusOK, env.call(t, http.MethodGet, "/ready", "", nil, &ready))
	assert.Equal(t, "ready", ready["status"])

	// 2. Catalog writes and reads
	var job models.Job
	status := env.call(t, http.MethodPost, "/api/jobs", "", map[string]interface{}{
		"title":          "CNC Machinist",
		"company":        "Acme Precision",
		"location":       "Cleveland, OH",
		"skills":         []string{"CNC", "GD&T"},
		"apprenticeship": true,
	}, &job)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, job.ID)
	t.Log("✅ Job created")

	var program models.Program
	status = env.call(t, http.MethodPost, "/api/programs", "", map[string]interface{}{
		"school":   "Tri-C",
		"title":    "Precision Machining Certificate",
		"location": "Cleveland, OH",
		"delivery": "in-person",
	}, &program)
	require.Equal(t, http.StatusCreated, status)

	var jobs struct {
		Jobs []models.Job `json:"jobs"`
	}
	require.Equal(t, http.StatusOK, env.call(t, http.MethodGet, "/api/jobs?keyword=cnc&apprenticeship=true", "", nil, &jobs))
	require.Len(t, jobs.Jobs, 1)
	assert.Equal(t, job.ID, jobs.Jobs[0].ID)

	var hits struct {
		Results []models.ListingHit `json:"results"`
	}
	require.Equal(t, http.StatusOK, env.call(t, http.MethodGet, "/api/search?q=machin", "", nil, &hits))
	assert.Len(t, hits.Results, 2, "postgres fallback finds the job and the program")
	t.Log("✅ Catalog search works")

	// 3. Chat as a signed-in user
	var reply struct {
		Answer         string   `json:"answer"`
		Followups      []string `json:"followups"`
		ConversationID string   `json:"conversation_id"`
	}
	status = env.call(t, http.MethodPost, "/api/chat", tok, map[string]interface{}{
		"messages": []map[string]string{{"role": "user", "content": "Tell me about CNC Machinist"}},
		"location": "Cleveland, OH",
	}, &reply)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, reply.Answer, "CNC machinists set up")
	assert.NotEmpty(t, reply.Followups)
	require.NotEmpty(t, reply.ConversationID)
	assert.Positive(t, env.model.CallCount())
	t.Log("✅ Chat answered")

	// 4. The turn was saved for the user
	var list struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}
	require.Equal(t, http.StatusOK, env.call(t, http.MethodGet, "/api/conversations", tok, nil, &list))
	require.Len(t, list.Conversations, 1)
	assert.Equal(t, "Tell me about CNC Machinist", list.Conversations[0].Title)

	var conv models.Conversation
	require.Equal(t, http.StatusOK, env.call(t, http.MethodGet, "/api/conversations/"+reply.ConversationID, tok, nil, &conv))
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, models.RoleAssistant, conv.Messages[1].Role)

	// 5. Clear history
	var cleared map[string]int
	require.Equal(t, http.StatusOK, env.call(t, http.MethodDelete, "/api/conversations", tok, nil, &cleared))
	assert.Equal(t, 1, cleared["deleted"])

	t.Log("✅ ALL TESTS PASSED: E2E flow successful!")
}
