package biz

import (
	"context"
	"errors"
	"fmt"

	apierrors "github.com/kart-io/rubric-grader/pkg/utils/errors"
)

// Stage 流水线阶段。
type Stage string

const (
	StageInit    Stage = "init"
	StageExtract Stage = "extract"
	StageChunk   Stage = "chunk"
	StageEmbed   Stage = "embed"
	StageUpsert  Stage = "upsert"
	StageQuery   Stage = "query"
	StageGrade   Stage = "grade"
	StageDelete  Stage = "delete"
)

// 阶段错误类别。
var (
	ErrExtraction = errors.New("extraction error")
	ErrChunking   = errors.New("chunking error")
	ErrEmbedding  = errors.New("embedding error")
	ErrStoreWrite = errors.New("store write error")
	ErrStoreRead  = errors.New("store read error")
	ErrGrading    = errors.New("grading error")
	ErrStoreInit  = errors.New("store init error")
)

// StageError 记录失败的阶段、类别和原因。
type StageError struct {
	Stage Stage
	Kind  error
	Cause error
}

func newStageError(stage Stage, kind, cause error) error {
	var se *StageError
	if errors.As(cause, &se) {
		return cause
	}
	return &StageError{Stage: stage, Kind: kind, Cause: cause}
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v: %v", e.Stage, e.Kind, e.Cause)
}

// Unwrap 同时暴露类别与原因。
func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Cause}
}

// ToErrno 将业务错误映射为对外错误码。
func ToErrno(err error) *apierrors.Errno {
	if err == nil {
		return nil
	}

	var errno *apierrors.Errno
	if errors.As(err, &errno) {
		return errno
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apierrors.ErrRequestTimeout.WithCause(err)
	case errors.Is(err, ErrExtraction):
		return apierrors.ErrDocumentUnreadable.WithCause(err)
	case errors.Is(err, ErrChunking):
		return apierrors.ErrInvalidChunking.WithCause(err)
	case errors.Is(err, ErrEmbedding):
		return apierrors.ErrEmbeddingFailed.WithCause(err)
	case errors.Is(err, ErrStoreWrite):
		return apierrors.ErrVectorStoreWrite.WithCause(err)
	case errors.Is(err, ErrStoreRead):
		return apierrors.ErrVectorStoreRead.WithCause(err)
	case errors.Is(err, ErrStoreInit):
		return apierrors.ErrVectorStoreUnavailable.WithCause(err)
	case errors.Is(err, ErrGrading):
		return apierrors.ErrGradingFailed.WithCause(err)
	default:
		return apierrors.ErrInternal.WithCause(err)
	}
}
