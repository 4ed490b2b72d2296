package ollama

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/rubric-grader/pkg/llm"
	llmopts "github.com/kart-io/rubric-grader/pkg/options/llm"
	"github.com/kart-io/rubric-grader/pkg/utils/json"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p, err := llm.NewProvider(ProviderName, map[string]any{
		"base_url":    srv.URL,
		"embed_model": "all-minilm",
		"chat_model":  "llama3",
		"timeout":     5 * time.Second,
		"max_retries": 0,
	})
	require.NoError(t, err)
	return p.(*Provider)
}

func TestGenerateSendsZeroTemperature(t *testing.T) {
	p := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req["model"])
		assert.Equal(t, false, req["stream"])
		assert.Equal(t, map[string]any{"temperature": float64(0)}, req["options"])

		_, _ = w.Write([]byte(`{"response":"The student earns 2/3 points.","prompt_eval_count":120,"eval_count":12}`))
	})

	resp, err := p.Generate(context.Background(), "grade this", "")
	require.NoError(t, err)
	assert.Equal(t, "The student earns 2/3 points.", resp.Content)
	require.NotNil(t, resp.TokenUsage)
	assert.Equal(t, 132, resp.TokenUsage.TotalTokens)
}

func TestEmbed(t *testing.T) {
	p := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		_, _ = w.Write([]byte(`{"model":"all-minilm","embeddings":[[0.1,0.2],[0.3,0.4]]}`))
	})

	vecs, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.1, 0.2}, {0.3, 0.4}}, vecs)

	empty, err := p.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestEmbedCountMismatch(t *testing.T) {
	p := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[]}`))
	})

	_, err := p.EmbedSingle(context.Background(), "a")
	assert.ErrorIs(t, err, llm.ErrEmptyResponse)
}

func TestGenerateServerError(t *testing.T) {
	p := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	})

	_, err := p.Generate(context.Background(), "x", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}

func TestChatAndPing(t *testing.T) {
	p := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[]}`))
		case "/api/chat":
			_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"ok"}}`))
		default:
			http.NotFound(w, r)
		}
	})

	require.NoError(t, p.Ping(context.Background()))
	resp, err := p.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Nil(t, resp.TokenUsage)
}

func TestGenerateFromChatOptionsSendsOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	opts := llmopts.NewChatOptions()
	opts.BaseURL = srv.URL
	opts.Timeout = 5 * time.Second
	opts.MaxRetries = 2

	p, err := llm.NewChatProvider(ProviderName, opts.ToConfigMap())
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), "grade this", "")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
