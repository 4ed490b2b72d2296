// Package rag provides rubric retrieval and ingestion options.
package rag

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/rubric-grader/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Store backends.
const (
	BackendMilvus = "milvus"
	BackendMemory = "memory"
)

// MaxTopK bounds the per-request top_k override.
const MaxTopK = 50

// MaxChunkSize bounds chunk-size so that a chunk of 4-byte runes fits the
// 8192-byte text field of the vector collection.
const MaxChunkSize = 2048

// Options contains ingestion and retrieval configuration.
type Options struct {
	// ChunkSize 每个分块的最大字符数。
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap 相邻分块的重叠字符数。
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK 默认检索条数。
	TopK int `json:"top-k" mapstructure:"top-k"`

	// Dimension 向量维度，必须与 embedding 模型一致。
	Dimension int `json:"dimension" mapstructure:"dimension"`

	// Collection 向量集合名称。
	Collection string `json:"collection" mapstructure:"collection"`

	// Backend 向量存储后端（milvus, memory）。
	Backend string `json:"backend" mapstructure:"backend"`

	// ReadyTimeout 等待集合就绪的上限。
	ReadyTimeout time.Duration `json:"ready-timeout" mapstructure:"ready-timeout"`

	// ReadyInterval 就绪轮询间隔。
	ReadyInterval time.Duration `json:"ready-interval" mapstructure:"ready-interval"`

	// UpsertBatch 单次写入的记录数。
	UpsertBatch int `json:"upsert-batch" mapstructure:"upsert-batch"`

	// EmbedBatch 单次 embedding 请求的分块数。
	EmbedBatch int `json:"embed-batch" mapstructure:"embed-batch"`
}

// NewOptions creates Options with defaults.
func NewOptions() *Options {
	return &Options{
		ChunkSize:     700,
		ChunkOverlap:  50,
		TopK:          5,
		Dimension:     384,
		Collection:    "rubric_embeddings",
		Backend:       BackendMilvus,
		ReadyTimeout:  60 * time.Second,
		ReadyInterval: time.Second,
		UpsertBatch:   100,
		EmbedBatch:    32,
	}
}

// AddFlags registers the rag.* flags.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "rag."
	fs.IntVar(&o.ChunkSize, p+"chunk-size", o.ChunkSize, "Maximum characters per rubric chunk.")
	fs.IntVar(&o.ChunkOverlap, p+"chunk-overlap", o.ChunkOverlap, "Characters shared by consecutive chunks.")
	fs.IntVar(&o.TopK, p+"top-k", o.TopK, "Default number of rubric chunks retrieved per question.")
	fs.IntVar(&o.Dimension, p+"dimension", o.Dimension, "Embedding dimension.")
	fs.StringVar(&o.Collection, p+"collection", o.Collection, "Vector collection name.")
	fs.StringVar(&o.Backend, p+"backend", o.Backend, "Vector store backend (milvus, memory).")
	fs.DurationVar(&o.ReadyTimeout, p+"ready-timeout", o.ReadyTimeout, "How long to wait for the vector index to become ready.")
	fs.DurationVar(&o.ReadyInterval, p+"ready-interval", o.ReadyInterval, "Poll interval while waiting for the vector index.")
	fs.IntVar(&o.UpsertBatch, p+"upsert-batch", o.UpsertBatch, "Records per vector store write.")
	fs.IntVar(&o.EmbedBatch, p+"embed-batch", o.EmbedBatch, "Chunks per embedding request.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.ChunkSize <= 0 || o.ChunkSize > MaxChunkSize {
		errs = append(errs, fmt.Errorf("rag.chunk-size must be in [1, %d]", MaxChunkSize))
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("rag.chunk-overlap must be in [0, chunk-size)"))
	}
	if o.TopK < 1 || o.TopK > MaxTopK {
		errs = append(errs, fmt.Errorf("rag.top-k must be in [1, %d]", MaxTopK))
	}
	if o.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("rag.dimension must be positive"))
	}
	if o.Collection == "" {
		errs = append(errs, fmt.Errorf("rag.collection is required"))
	}
	switch o.Backend {
	case BackendMilvus, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("rag.backend %q is not one of milvus, memory", o.Backend))
	}
	if o.ReadyTimeout <= 0 || o.ReadyInterval <= 0 {
		errs = append(errs, fmt.Errorf("rag.ready-timeout and rag.ready-interval must be positive"))
	}
	if o.UpsertBatch <= 0 || o.EmbedBatch <= 0 {
		errs = append(errs, fmt.Errorf("rag.upsert-batch and rag.embed-batch must be positive"))
	}
	return errs
}
