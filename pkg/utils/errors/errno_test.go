package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestMakeCode(t *testing.T) {
	code := MakeCode(ServiceGrader, CategoryDatabase, 1)
	assert.Equal(t, 2008001, code)

	svc, cat, seq := ParseCode(code)
	assert.Equal(t, ServiceGrader, svc)
	assert.Equal(t, CategoryDatabase, cat)
	assert.Equal(t, 1, seq)

	assert.True(t, IsClientError(ErrInvalidParam.Code))
	assert.False(t, IsClientError(ErrGradingFailed.Code))
}

func TestWithCauseKeepsIdentity(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := ErrVectorStoreWrite.WithCause(cause)

	assert.ErrorIs(t, err, ErrVectorStoreWrite)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrVectorStoreRead)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, http.StatusServiceUnavailable, err.HTTPStatus())
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	wrapped := fmt.Errorf("grade: %w", ErrGradingFailed.WithMessage("llm down"))
	e := FromError(wrapped)
	assert.Equal(t, ErrGradingFailed.Code, e.Code)
	assert.Equal(t, "llm down", e.MessageEN)

	plain := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, plain.Code)
	assert.Equal(t, -1, GetCode(fmt.Errorf("boom")))
}

func TestGRPCStatus(t *testing.T) {
	st, ok := status.FromError(ErrInvalidParam.WithMessage("question is required"))
	assert.True(t, ok)
	assert.Equal(t, codes.InvalidArgument, st.Code())
	assert.Equal(t, "question is required", st.Message())
}

func TestMessageLanguage(t *testing.T) {
	assert.Equal(t, "评分模型调用失败", ErrGradingFailed.Message("zh-CN"))
	assert.Equal(t, "Grading model call failed", ErrGradingFailed.Message("en"))
}

func TestRegisterDuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		Register(New(ErrNotFound.Code, http.StatusNotFound, codes.NotFound, "dup", ""))
	})
	got, ok := Lookup(ErrNotFound.Code)
	assert.True(t, ok)
	assert.Equal(t, "Resource not found", got.MessageEN)
}
