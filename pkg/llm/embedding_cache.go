package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/rubric-grader/pkg/utils/json"
)

// EmbeddingCacheConfig Embedding 缓存配置。
type EmbeddingCacheConfig struct {
	// TTL 缓存过期时间，0 表示不过期。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
	// Model 参与键计算，切换模型后旧向量不会命中。
	Model string
}

// DefaultEmbeddingCacheConfig 返回默认配置。
func DefaultEmbeddingCacheConfig() *EmbeddingCacheConfig {
	return &EmbeddingCacheConfig{
		TTL:       24 * time.Hour,
		KeyPrefix: "emb:",
	}
}

// KV 是缓存后端需要的最小能力，redis 实现见 RedisKV。
type KV interface {
	// MGet 返回与 keys 对齐的值，未命中为 nil。
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	// MSet 写入多个键值。
	MSet(ctx context.Context, values map[string][]byte, ttl time.Duration) error
}

// CachedEmbeddingProvider 为 EmbeddingProvider 增加缓存。
// 缓存故障只记录日志，不影响向量生成。
type CachedEmbeddingProvider struct {
	provider EmbeddingProvider
	kv       KV
	config   *EmbeddingCacheConfig
}

// NewCachedEmbeddingProvider 创建带缓存的 Embedding 供应商。
func NewCachedEmbeddingProvider(provider EmbeddingProvider, kv KV, config *EmbeddingCacheConfig) *CachedEmbeddingProvider {
	if config == nil {
		config = DefaultEmbeddingCacheConfig()
	}
	return &CachedEmbeddingProvider{provider: provider, kv: kv, config: config}
}

func (c *CachedEmbeddingProvider) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.config.KeyPrefix + c.config.Model + ":" + hex.EncodeToString(sum[:])
}

// Name 返回底层供应商名称。
func (c *CachedEmbeddingProvider) Name() string {
	return c.provider.Name() + "-cached"
}

// EmbedSingle 生成单个文本的向量（带缓存）。
func (c *CachedEmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return FirstEmbedding(c.Embed(ctx, []string{text}))
}

// Embed 批量生成向量，只为未命中的文本调用底层供应商。
func (c *CachedEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = c.cacheKey(text)
	}

	embeddings := make([][]float32, len(texts))
	cached, err := c.kv.MGet(ctx, keys)
	if err != nil {
		logger.Warnw("embedding cache read failed, falling back to provider", "error", err.Error())
		cached = nil
	}

	var missIdx []int
	var missTexts []string
	for i := range texts {
		if i < len(cached) && cached[i] != nil {
			var vec []float32
			if err := json.Unmarshal(cached[i], &vec); err == nil && len(vec) > 0 {
				embeddings[i] = vec
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, texts[i])
	}

	if len(missTexts) == 0 {
		logger.Debugw("all embeddings from cache", "total", len(texts))
		return embeddings, nil
	}

	fresh, err := c.provider.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, ErrEmptyResponse
	}

	toCache := make(map[string][]byte, len(fresh))
	for j, idx := range missIdx {
		embeddings[idx] = fresh[j]
		if data, err := json.Marshal(fresh[j]); err == nil {
			toCache[keys[idx]] = data
		}
	}
	if err := c.kv.MSet(ctx, toCache, c.config.TTL); err != nil {
		logger.Warnw("embedding cache write failed", "error", err.Error(), "count", len(toCache))
	}

	logger.Debugw("embedding cache", "total", len(texts), "misses", len(missTexts))
	return embeddings, nil
}

var _ EmbeddingProvider = (*CachedEmbeddingProvider)(nil)
