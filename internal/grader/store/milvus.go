package store

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/rubric-grader/pkg/component/milvus"
)

// MilvusConfig Milvus 存储配置。
type MilvusConfig struct {
	Collection    string
	Dimension     int
	ReadyTimeout  time.Duration
	ReadyInterval time.Duration
}

// MilvusStore 基于 Milvus 的向量存储。
// 所有 namespace 共用一个集合，namespace 字段为 partition key。
type MilvusStore struct {
	client *milvus.Client
	config *MilvusConfig
}

// NewMilvusStore 创建 Milvus 存储。
func NewMilvusStore(client *milvus.Client, config *MilvusConfig) *MilvusStore {
	return &MilvusStore{client: client, config: config}
}

// Init 确保集合与索引存在并等待加载完成。
func (s *MilvusStore) Init(ctx context.Context) error {
	schema := &milvus.CollectionSchema{
		Name:        s.config.Collection,
		Description: "rubric chunk embeddings",
		Dimension:   s.config.Dimension,
	}
	if err := s.client.EnsureCollection(ctx, schema); err != nil {
		return err
	}

	start := time.Now()
	if err := s.client.WaitReady(ctx, s.config.Collection, s.config.ReadyTimeout, s.config.ReadyInterval); err != nil {
		return err
	}
	logger.Infow("Vector index ready",
		"collection", s.config.Collection,
		"waited_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Upsert 写入记录。
// id 是整个集合的主键而非按 namespace 隔离，记录 id 必须由服务生成（uuid4），
// 不能接受调用方传入，否则相同 id 的 upsert 会把记录移到另一个 namespace。
func (s *MilvusStore) Upsert(ctx context.Context, namespace string, records []Record) error {
	rows := make([]milvus.Row, len(records))
	for i, r := range records {
		if len(r.Values) != s.config.Dimension {
			return fmt.Errorf("record %s has dimension %d, want %d", r.ID, len(r.Values), s.config.Dimension)
		}
		rows[i] = milvus.Row{
			ID:         r.ID,
			Namespace:  namespace,
			ChunkIndex: int64(r.Metadata.ChunkIndex),
			Text:       r.Metadata.Text,
			SourceFile: r.Metadata.SourceFile,
			Embedding:  r.Values,
		}
	}
	return s.client.Upsert(ctx, s.config.Collection, rows)
}

// Query 在 namespace 内检索。
func (s *MilvusStore) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	hits, err := s.client.Search(ctx, s.config.Collection, namespace, vector, topK)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(hits))
	for _, h := range hits {
		matches = append(matches, Match{
			Record: Record{
				ID:     h.ID,
				Values: h.Embedding,
				Metadata: Metadata{
					ChunkIndex: int(h.ChunkIndex),
					Text:       h.Text,
					SourceFile: h.SourceFile,
				},
			},
			Score: h.Score,
		})
	}
	return matches, nil
}

// DeleteNamespace 删除 namespace 内全部记录。
func (s *MilvusStore) DeleteNamespace(ctx context.Context, namespace string) error {
	return s.client.DeleteNamespace(ctx, s.config.Collection, namespace)
}

// DeleteVectors 删除指定 ID。
func (s *MilvusStore) DeleteVectors(ctx context.Context, namespace string, ids []string) error {
	return s.client.DeleteByIDs(ctx, s.config.Collection, namespace, ids)
}

// Close 关闭客户端。
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

var _ VectorStore = (*MilvusStore)(nil)
