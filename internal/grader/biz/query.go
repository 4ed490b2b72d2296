package biz

import (
	"context"
	"strings"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kart-io/rubric-grader/internal/grader/store"
	"github.com/kart-io/rubric-grader/pkg/infra/tracing"
)

// QuerierConfig 查询配置。
type QuerierConfig struct {
	// TopK 默认检索条数。
	TopK int
}

// GradeResult 评分结果。
type GradeResult struct {
	// Response 模型原始输出。
	Response string
	// Matches 用于评分的检索结果。
	Matches []store.Match
	// Context 拼接后的评分上下文。
	Context string
}

// Querier 负责检索与评分。
type Querier struct {
	embedder *Embedder
	store    store.VectorStore
	grader   *Grader
	observer StageObserver
	runner   stageRunner
	config   *QuerierConfig
}

// NewQuerier 创建查询器。
func NewQuerier(embedder *Embedder, vectorStore store.VectorStore, grader *Grader, observer StageObserver, config *QuerierConfig) *Querier {
	if observer == nil {
		observer = NopObserver{}
	}
	if config.TopK <= 0 {
		config.TopK = store.DefaultTopK
	}
	return &Querier{
		embedder: embedder,
		store:    vectorStore,
		grader:   grader,
		observer: observer,
		runner:   stageRunner{observer: observer},
		config:   config,
	}
}

// Retrieve 在 namespace 内检索与 question 最相关的分块。topK <= 0 时使用默认值。
func (q *Querier) Retrieve(ctx context.Context, namespace, question string, topK int) ([]store.Match, error) {
	if topK <= 0 {
		topK = q.config.TopK
	}
	logFields := []any{"namespace", namespace, "top_k", topK}

	var vec []float32
	err := q.runner.run(ctx, StageEmbed, ErrEmbedding, logFields, func(ctx context.Context) error {
		var err error
		vec, err = q.embedder.EmbedQuery(ctx, question)
		return err
	})
	if err != nil {
		return nil, err
	}

	var matches []store.Match
	err = q.runner.run(ctx, StageQuery, ErrStoreRead, logFields, func(ctx context.Context) error {
		var err error
		matches, err = q.store.Query(ctx, namespace, vec, topK)
		return err
	})
	if err != nil {
		return nil, err
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.Int(tracing.AttrMatches, len(matches)))
	return matches, nil
}

// Grade 检索后评分。检索为空时上下文为空字符串，仍然调用模型。
func (q *Querier) Grade(ctx context.Context, namespace, question, response string, topK int) (*GradeResult, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "grader.grade",
		attribute.String(tracing.AttrNamespace, namespace),
		attribute.Int(tracing.AttrTopK, topK),
	)
	defer span.End()

	matches, err := q.Retrieve(ctx, namespace, question, topK)
	if err != nil {
		q.observer.ObserveGrade(0, err)
		return nil, err
	}

	rubric := JoinContext(matches)
	if len(matches) == 0 {
		logger.Warnw("No rubric context retrieved, grading without it", "namespace", namespace, "question", preview(question, 80))
	}

	var answer string
	err = q.runner.run(ctx, StageGrade, ErrGrading, []any{"namespace", namespace, "matches", len(matches)}, func(ctx context.Context) error {
		var err error
		answer, err = q.grader.Grade(ctx, question, response, rubric)
		return err
	})
	q.observer.ObserveGrade(len(matches), err)
	if err != nil {
		return nil, err
	}

	return &GradeResult{Response: answer, Matches: matches, Context: rubric}, nil
}

// JoinContext 按排名顺序以换行拼接分块文本。
func JoinContext(matches []store.Match) string {
	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Metadata.Text
	}
	return strings.Join(texts, "\n")
}
