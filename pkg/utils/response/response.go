// Package response writes HTTP responses for the grader API.
//
// Success bodies are written as-is so each route keeps its own shape
// (for example {"message": ...} or {"response": ...}). Failures always use
// ErrorBody.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/rubric-grader/pkg/utils/errors"
)

// ContextKeyRequestID is the gin context key the request id middleware writes.
const ContextKeyRequestID = "request_id"

// ErrorBody is the JSON body of every failed request.
type ErrorBody struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// OK writes body with status 200.
func OK(c *gin.Context, body any) {
	c.JSON(http.StatusOK, body)
}

// Fail converts err to an Errno and writes it with the mapped HTTP status.
func Fail(c *gin.Context, err error) {
	e := errors.FromError(err)
	c.AbortWithStatusJSON(e.HTTPStatus(), NewErrorBody(c, e))
}

// NewErrorBody builds the error body for e, tagging it with the request id.
func NewErrorBody(c *gin.Context, e *errors.Errno) ErrorBody {
	return ErrorBody{
		Code:      e.Code,
		Message:   e.Message(c.GetHeader("Accept-Language")),
		RequestID: c.GetString(ContextKeyRequestID),
	}
}
