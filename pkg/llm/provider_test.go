package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	mu         sync.Mutex
	embedCalls [][]string
	embedErr   error
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.embedCalls = append(m.embedCalls, append([]string(nil), texts...))
	m.mu.Unlock()
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (m *mockProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return FirstEmbedding(m.Embed(ctx, []string{text}))
}

func (m *mockProvider) Chat(_ context.Context, messages []Message) (*GenerateResponse, error) {
	return &GenerateResponse{Content: messages[len(messages)-1].Content}, nil
}

func (m *mockProvider) Generate(_ context.Context, prompt, _ string) (*GenerateResponse, error) {
	return &GenerateResponse{Content: strings.ToUpper(prompt)}, nil
}

func TestRegistry(t *testing.T) {
	RegisterProvider("mock-registry", func(map[string]any) (Provider, error) {
		return &mockProvider{}, nil
	})

	assert.Contains(t, ListProviders(), "mock-registry")

	emb, err := NewEmbeddingProvider("mock-registry", nil)
	require.NoError(t, err)
	assert.Equal(t, "mock", emb.Name())

	chat, err := NewChatProvider("mock-registry", nil)
	require.NoError(t, err)
	resp, err := chat.Generate(context.Background(), "grade", "")
	require.NoError(t, err)
	assert.Equal(t, "GRADE", resp.Content)

	_, err = NewProvider("does-not-exist", nil)
	assert.Error(t, err)
}

func TestFirstEmbedding(t *testing.T) {
	_, err := FirstEmbedding(nil, nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)

	boom := errors.New("boom")
	_, err = FirstEmbedding(nil, boom)
	assert.ErrorIs(t, err, boom)

	v, err := FirstEmbedding([][]float32{{1, 2}}, nil)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, v)
}

type memKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	readErr error
}

func (m *memKV) MGet(_ context.Context, keys []string) ([][]byte, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = m.data[k]
	}
	return out, nil
}

func (m *memKV) MSet(_ context.Context, values map[string][]byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.data[k] = v
	}
	return nil
}

func TestCachedEmbeddingProvider(t *testing.T) {
	ctx := context.Background()
	inner := &mockProvider{}
	kv := &memKV{data: map[string][]byte{}}
	cached := NewCachedEmbeddingProvider(inner, kv, &EmbeddingCacheConfig{KeyPrefix: "emb:", Model: "all-minilm"})

	first, err := cached.Embed(ctx, []string{"a", "bb"})
	require.NoError(t, err)
	assert.Len(t, kv.data, 2)

	second, err := cached.Embed(ctx, []string{"bb", "ccc", "a"})
	require.NoError(t, err)
	assert.Equal(t, first[1], second[0])
	assert.Equal(t, first[0], second[2])
	assert.Equal(t, []float32{3, 1}, second[1])

	require.Len(t, inner.embedCalls, 2)
	assert.Equal(t, []string{"ccc"}, inner.embedCalls[1])
	assert.Equal(t, "mock-cached", cached.Name())
}

func TestCachedEmbeddingProviderReadFailure(t *testing.T) {
	inner := &mockProvider{}
	kv := &memKV{data: map[string][]byte{}, readErr: errors.New("redis down")}
	cached := NewCachedEmbeddingProvider(inner, kv, nil)

	v, err := cached.EmbedSingle(context.Background(), "rubric")
	require.NoError(t, err)
	assert.Equal(t, []float32{6, 1}, v)
}

func TestCachedEmbeddingProviderPropagatesError(t *testing.T) {
	boom := errors.New("model unavailable")
	cached := NewCachedEmbeddingProvider(&mockProvider{embedErr: boom}, &memKV{data: map[string][]byte{}}, nil)

	_, err := cached.Embed(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, boom)
}
