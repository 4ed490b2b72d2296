package biz

import (
	"context"

	"github.com/kart-io/logger"

	"github.com/kart-io/rubric-grader/internal/grader/store"
	"github.com/kart-io/rubric-grader/pkg/infra/pool"
	"github.com/kart-io/rubric-grader/pkg/llm"
)

// Service 定义评分服务接口。
type Service interface {
	// Init 初始化向量存储，阻塞直到就绪。
	Init(ctx context.Context) error
	// UploadPDF 解析 PDF 评分标准并入库。
	UploadPDF(ctx context.Context, namespace, filename string, data []byte) (*IngestResult, error)
	// UploadText 将文本评分标准入库。
	UploadText(ctx context.Context, namespace, filename, text string) (*IngestResult, error)
	// GradeAnswer 检索评分标准并对学生回答评分。
	GradeAnswer(ctx context.Context, namespace, question, response string, topK int) (*GradeResult, error)
	// Retrieve 仅检索。
	Retrieve(ctx context.Context, namespace, question string, topK int) ([]store.Match, error)
	// DeleteNamespace 删除用户的全部向量。
	DeleteNamespace(ctx context.Context, namespace string) error
	// DeleteVectors 删除指定向量。
	DeleteVectors(ctx context.Context, namespace string, ids []string) error
}

// ServiceConfig 评分服务配置。
type ServiceConfig struct {
	ChunkSize    int
	ChunkOverlap int
	Dimension    int
	EmbedBatch   int
	UpsertBatch  int
	TopK         int
}

// GraderService 组合 Ingestor 与 Querier 提供完整的评分服务。
type GraderService struct {
	store    store.VectorStore
	ingestor *Ingestor
	querier  *Querier
	runner   stageRunner
}

// NewGraderService 创建评分服务实例。分块配置无效时返回 ErrChunking。
func NewGraderService(
	vectorStore store.VectorStore,
	embedProvider llm.EmbeddingProvider,
	chatProvider llm.ChatProvider,
	embedPool *pool.Pool,
	observer StageObserver,
	config *ServiceConfig,
) (*GraderService, error) {
	chunker, err := NewChunker(config.ChunkSize, config.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	if observer == nil {
		observer = NopObserver{}
	}

	embedder := NewEmbedder(embedProvider, embedPool, &EmbedderConfig{
		Dimension: config.Dimension,
		BatchSize: config.EmbedBatch,
	})

	return &GraderService{
		store:    vectorStore,
		ingestor: NewIngestor(NewPDFExtractor(), chunker, embedder, vectorStore, observer, &IngestorConfig{UpsertBatch: config.UpsertBatch}),
		querier:  NewQuerier(embedder, vectorStore, NewGrader(chatProvider), observer, &QuerierConfig{TopK: config.TopK}),
		runner:   stageRunner{observer: observer},
	}, nil
}

// Init 初始化向量存储，失败时返回 ErrStoreInit。
func (s *GraderService) Init(ctx context.Context) error {
	if err := s.store.Init(ctx); err != nil {
		logger.Errorw("Vector store init failed", "stage", StageInit, "error", err.Error())
		return newStageError(StageInit, ErrStoreInit, err)
	}
	return nil
}

// UploadPDF 解析 PDF 评分标准并入库。
func (s *GraderService) UploadPDF(ctx context.Context, namespace, filename string, data []byte) (*IngestResult, error) {
	return s.ingestor.IngestPDF(ctx, namespace, filename, data)
}

// UploadText 将文本评分标准入库。
func (s *GraderService) UploadText(ctx context.Context, namespace, filename, text string) (*IngestResult, error) {
	return s.ingestor.IngestText(ctx, namespace, filename, text)
}

// GradeAnswer 检索评分标准并评分。
func (s *GraderService) GradeAnswer(ctx context.Context, namespace, question, response string, topK int) (*GradeResult, error) {
	return s.querier.Grade(ctx, namespace, question, response, topK)
}

// Retrieve 仅检索。
func (s *GraderService) Retrieve(ctx context.Context, namespace, question string, topK int) ([]store.Match, error) {
	return s.querier.Retrieve(ctx, namespace, question, topK)
}

// DeleteNamespace 删除用户的全部向量，幂等。
func (s *GraderService) DeleteNamespace(ctx context.Context, namespace string) error {
	return s.runner.run(ctx, StageDelete, ErrStoreWrite, []any{"namespace", namespace}, func(ctx context.Context) error {
		return s.store.DeleteNamespace(ctx, namespace)
	})
}

// DeleteVectors 删除指定向量，不存在的 ID 忽略。
func (s *GraderService) DeleteVectors(ctx context.Context, namespace string, ids []string) error {
	return s.runner.run(ctx, StageDelete, ErrStoreWrite, []any{"namespace", namespace, "ids", len(ids)}, func(ctx context.Context) error {
		return s.store.DeleteVectors(ctx, namespace, ids)
	})
}

var _ Service = (*GraderService)(nil)
