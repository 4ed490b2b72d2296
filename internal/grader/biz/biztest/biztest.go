// Package biztest provides deterministic model doubles for grader tests.
package biztest

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/kart-io/rubric-grader/pkg/llm"
)

// Dimension matches the production embedding model.
const Dimension = 384

// HashEmbedder hashes lower-cased words into a normalized bag-of-words vector.
// Identical text always yields an identical vector.
type HashEmbedder struct {
	Dim int
	Err error

	calls atomic.Int64
}

// NewHashEmbedder returns an embedder producing Dimension-sized vectors.
func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{Dim: Dimension}
}

// Vector computes the embedding of text.
func (h *HashEmbedder) Vector(text string) []float32 {
	v := make([]float32, h.Dim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		f := fnv.New32a()
		_, _ = f.Write([]byte(w))
		v[int(f.Sum32()%uint32(h.Dim))]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}

// Calls returns how many Embed calls were made.
func (h *HashEmbedder) Calls() int64 {
	return h.calls.Load()
}

func (h *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	h.calls.Add(1)
	if h.Err != nil {
		return nil, h.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.Vector(t)
	}
	return out, nil
}

func (h *HashEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return llm.FirstEmbedding(h.Embed(ctx, []string{text}))
}

func (h *HashEmbedder) Name() string { return "hash" }

// Chat answers every prompt with Answer, or fails with Err.
type Chat struct {
	Answer string
	Err    error

	mu      sync.Mutex
	prompts []string
}

func (c *Chat) Chat(ctx context.Context, messages []llm.Message) (*llm.GenerateResponse, error) {
	return c.Generate(ctx, messages[len(messages)-1].Content, "")
}

func (c *Chat) Generate(_ context.Context, prompt, _ string) (*llm.GenerateResponse, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, prompt)
	c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	return &llm.GenerateResponse{Content: c.Answer}, nil
}

func (c *Chat) Name() string { return "static" }

// Prompts returns every prompt received so far.
func (c *Chat) Prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.prompts...)
}

// LastPrompt returns the most recent prompt, or "".
func (c *Chat) LastPrompt() string {
	p := c.Prompts()
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

var (
	_ llm.EmbeddingProvider = (*HashEmbedder)(nil)
	_ llm.ChatProvider      = (*Chat)(nil)
)
