package biz

import (
	"context"
	"fmt"

	"github.com/kart-io/rubric-grader/pkg/infra/pool"
	"github.com/kart-io/rubric-grader/pkg/llm"
)

// EmbedderConfig 向量化配置。
type EmbedderConfig struct {
	// Dimension 期望的向量维度，0 表示不校验。
	Dimension int
	// BatchSize 单次 Embed 请求的文本数。
	BatchSize int
}

// Embedder 调用 Embedding 供应商并校验结果。
type Embedder struct {
	provider llm.EmbeddingProvider
	pool     *pool.Pool
	config   *EmbedderConfig
}

// NewEmbedder 创建向量化器。workers 为 nil 时批次串行执行。
func NewEmbedder(provider llm.EmbeddingProvider, workers *pool.Pool, config *EmbedderConfig) *Embedder {
	if config.BatchSize <= 0 {
		config.BatchSize = 32
	}
	return &Embedder{provider: provider, pool: workers, config: config}
}

// EmbedQuery 为查询文本生成向量。
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.provider.EmbedSingle(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := e.checkDimension(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// EmbedChunks 为分块生成向量，结果与输入顺序一致。
func (e *Embedder) EmbedChunks(ctx context.Context, chunks []Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	out := make([][]float32, len(texts))
	var tasks []func(ctx context.Context) error
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := min(start+e.config.BatchSize, len(texts))
		tasks = append(tasks, func(ctx context.Context) error {
			return e.embedBatch(ctx, texts[start:end], out[start:end])
		})
	}

	if e.pool == nil || len(tasks) <= 1 {
		for _, task := range tasks {
			if err := task(ctx); err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	if err := e.pool.Run(ctx, tasks...); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Embedder) embedBatch(ctx context.Context, texts []string, dst [][]float32) error {
	vecs, err := e.provider.Embed(ctx, texts)
	if err != nil {
		return err
	}
	if len(vecs) != len(texts) {
		return fmt.Errorf("provider %s returned %d vectors for %d texts", e.provider.Name(), len(vecs), len(texts))
	}
	for i, v := range vecs {
		if err := e.checkDimension(v); err != nil {
			return err
		}
		dst[i] = v
	}
	return nil
}

func (e *Embedder) checkDimension(vec []float32) error {
	if len(vec) == 0 {
		return llm.ErrEmptyResponse
	}
	if e.config.Dimension > 0 && len(vec) != e.config.Dimension {
		return fmt.Errorf("embedding dimension %d, want %d", len(vec), e.config.Dimension)
	}
	return nil
}
