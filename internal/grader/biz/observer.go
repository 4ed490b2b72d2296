package biz

import (
	"context"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/rubric-grader/pkg/infra/tracing"
)

const tracerName = "rubric-grader/biz"

// StageObserver 接收流水线事件，用于指标采集。
type StageObserver interface {
	// ObserveStage 记录单个阶段的耗时与结果。
	ObserveStage(stage Stage, elapsed time.Duration, err error)
	// ObserveIngest 记录一次入库的终态。
	ObserveIngest(state IngestState, chunks int)
	// ObserveGrade 记录一次评分请求。
	ObserveGrade(matches int, err error)
}

// NopObserver 不做任何记录。
type NopObserver struct{}

func (NopObserver) ObserveStage(Stage, time.Duration, error) {}
func (NopObserver) ObserveIngest(IngestState, int)           {}
func (NopObserver) ObserveGrade(int, error)                  {}

// stageRunner 为每个阶段统一创建 span、计时、记录日志并包装错误。
type stageRunner struct {
	observer StageObserver
}

func (r stageRunner) run(ctx context.Context, stage Stage, kind error, fields []any, fn func(ctx context.Context) error) error {
	ctx, span := tracing.StartSpan(ctx, tracerName, "grader."+string(stage), attribute.String("grader.stage", string(stage)))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	r.observer.ObserveStage(stage, elapsed, err)

	if err != nil {
		err = newStageError(stage, kind, err)
		tracing.RecordError(ctx, err)
		logger.Errorw("Pipeline stage failed", append([]any{"stage", stage, "error", err.Error()}, fields...)...)
		return err
	}

	logger.Debugw("Pipeline stage done", append([]any{"stage", stage, "elapsed_ms", elapsed.Milliseconds()}, fields...)...)
	return nil
}

// preview 截断文本用于日志。
func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
