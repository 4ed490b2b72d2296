package biz

import (
	"context"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kart-io/rubric-grader/internal/grader/store"
	"github.com/kart-io/rubric-grader/pkg/id"
	"github.com/kart-io/rubric-grader/pkg/infra/tracing"
)

// IngestState 入库状态。
type IngestState string

const (
	StateReceived  IngestState = "received"
	StateExtracted IngestState = "extracted"
	StateChunked   IngestState = "chunked"
	StateEmbedded  IngestState = "embedded"
	StateUpserted  IngestState = "upserted"
	StateComplete  IngestState = "complete"
	StateFailed    IngestState = "failed"
)

// IngestResult 入库结果。
type IngestResult struct {
	// SourceFile 源文档名称。
	SourceFile string
	// Chunks 分块数量。
	Chunks int
	// IDs 已写入的记录 ID，失败时为已写入的部分。
	IDs []string
	// State 终态。
	State IngestState
	// FailedStage 失败时所在阶段。
	FailedStage Stage
	// Trail 经历的状态序列。
	Trail []IngestState
}

func (r *IngestResult) advance(state IngestState) {
	r.State = state
	r.Trail = append(r.Trail, state)
}

// IngestorConfig 入库配置。
type IngestorConfig struct {
	// UpsertBatch 单次写入的记录数。
	UpsertBatch int
}

// Ingestor 负责文档入库。
// 某一阶段失败后中止，已写入的批次不回滚。
type Ingestor struct {
	extractor Extractor
	chunker   *Chunker
	embedder  *Embedder
	store     store.VectorStore
	observer  StageObserver
	runner    stageRunner
	config    *IngestorConfig
}

// NewIngestor 创建入库器。
func NewIngestor(
	extractor Extractor,
	chunker *Chunker,
	embedder *Embedder,
	vectorStore store.VectorStore,
	observer StageObserver,
	config *IngestorConfig,
) *Ingestor {
	if observer == nil {
		observer = NopObserver{}
	}
	if config.UpsertBatch <= 0 {
		config.UpsertBatch = 100
	}
	return &Ingestor{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     vectorStore,
		observer:  observer,
		runner:    stageRunner{observer: observer},
		config:    config,
	}
}

// IngestPDF 提取 PDF 文本后入库。
func (i *Ingestor) IngestPDF(ctx context.Context, namespace, filename string, data []byte) (*IngestResult, error) {
	ctx, span := i.startSpan(ctx, namespace, filename)
	defer span.End()

	result := &IngestResult{SourceFile: filename}
	result.advance(StateReceived)

	var text string
	err := i.runner.run(ctx, StageExtract, ErrExtraction, fields(namespace, filename, 0), func(ctx context.Context) error {
		var err error
		text, err = i.extractor.Extract(ctx, data)
		return err
	})
	if err != nil {
		return i.finish(namespace, result, StageExtract, err)
	}
	result.advance(StateExtracted)

	return i.ingest(ctx, namespace, result, text)
}

// IngestText 直接对文本入库，从 Extracted 状态开始。空文本视为无内容可入库。
func (i *Ingestor) IngestText(ctx context.Context, namespace, filename, text string) (*IngestResult, error) {
	ctx, span := i.startSpan(ctx, namespace, filename)
	defer span.End()

	result := &IngestResult{SourceFile: filename}
	result.advance(StateReceived)
	if text == "" {
		return i.finish(namespace, result, StageExtract, newStageError(StageExtract, ErrExtraction, errNoText))
	}
	result.advance(StateExtracted)

	return i.ingest(ctx, namespace, result, text)
}

func (i *Ingestor) ingest(ctx context.Context, namespace string, result *IngestResult, text string) (*IngestResult, error) {
	filename := result.SourceFile

	// 1. 分块
	var chunks []Chunk
	err := i.runner.run(ctx, StageChunk, ErrChunking, fields(namespace, filename, 0), func(context.Context) error {
		chunks = i.chunker.Split(text, filename)
		return nil
	})
	if err != nil {
		return i.finish(namespace, result, StageChunk, err)
	}
	result.Chunks = len(chunks)
	result.advance(StateChunked)
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int(tracing.AttrChunks, len(chunks)))
	logFields := fields(namespace, filename, len(chunks))

	// 2. 向量化
	var vectors [][]float32
	err = i.runner.run(ctx, StageEmbed, ErrEmbedding, logFields, func(ctx context.Context) error {
		var err error
		vectors, err = i.embedder.EmbedChunks(ctx, chunks)
		return err
	})
	if err != nil {
		return i.finish(namespace, result, StageEmbed, err)
	}
	result.advance(StateEmbedded)

	// 3. 分批写入
	records := make([]store.Record, len(chunks))
	for idx, c := range chunks {
		records[idx] = store.Record{
			ID:     id.NewRecordID(),
			Values: vectors[idx],
			Metadata: store.Metadata{
				ChunkIndex: c.Index,
				Text:       c.Text,
				SourceFile: c.Source,
			},
		}
	}
	err = i.runner.run(ctx, StageUpsert, ErrStoreWrite, logFields, func(ctx context.Context) error {
		for start := 0; start < len(records); start += i.config.UpsertBatch {
			batch := records[start:min(start+i.config.UpsertBatch, len(records))]
			if err := i.store.Upsert(ctx, namespace, batch); err != nil {
				return err
			}
			for _, r := range batch {
				result.IDs = append(result.IDs, r.ID)
			}
		}
		return nil
	})
	if err != nil {
		return i.finish(namespace, result, StageUpsert, err)
	}
	result.advance(StateUpserted)

	result.advance(StateComplete)
	return i.finish(namespace, result, "", nil)
}

func (i *Ingestor) startSpan(ctx context.Context, namespace, filename string) (context.Context, trace.Span) {
	return tracing.StartSpan(ctx, tracerName, "grader.ingest",
		attribute.String(tracing.AttrNamespace, namespace),
		attribute.String(tracing.AttrSourceFile, filename),
	)
}

func (i *Ingestor) finish(namespace string, result *IngestResult, stage Stage, err error) (*IngestResult, error) {
	if err != nil {
		result.FailedStage = stage
		result.advance(StateFailed)
	}
	i.observer.ObserveIngest(result.State, result.Chunks)

	logger.Infow("Ingestion finished",
		"namespace", namespace,
		"source_file", result.SourceFile,
		"chunks", result.Chunks,
		"upserted", len(result.IDs),
		"state", result.State,
		"trail", result.Trail,
	)
	return result, err
}

func fields(namespace, filename string, chunks int) []any {
	return []any{"namespace", namespace, "source_file", filename, "chunks", chunks}
}
