package store

import "context"

// DefaultTopK 未指定 top-k 时的检索条数。
const DefaultTopK = 5

// Metadata 向量记录的元数据。
type Metadata struct {
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
	SourceFile string `json:"source_file"`
}

// Record 向量记录，(namespace, ID) 唯一。
type Record struct {
	ID       string
	Values   []float32
	Metadata Metadata
}

// Match 检索结果，Score 为余弦相似度。
type Match struct {
	Record
	Score float32
}

// VectorStore 向量存储接口。
type VectorStore interface {
	// Init 创建索引（若不存在）并阻塞直到就绪。
	Init(ctx context.Context) error

	// Upsert 写入或替换记录，namespace 不存在时隐式创建。
	Upsert(ctx context.Context, namespace string, records []Record) error

	// Query 返回 namespace 内与 vector 最相似的至多 topK 条记录，按相似度降序。
	// namespace 不存在时返回空结果。
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error)

	// DeleteNamespace 删除 namespace 内全部记录，幂等。
	DeleteNamespace(ctx context.Context, namespace string) error

	// DeleteVectors 删除指定 ID，不存在的 ID 忽略。
	DeleteVectors(ctx context.Context, namespace string, ids []string) error

	// Close 释放连接。
	Close(ctx context.Context) error
}
