// Package handler provides HTTP handlers for the grader service.
package handler

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/rubric-grader/internal/grader/biz"
	"github.com/kart-io/rubric-grader/internal/grader/store"
	"github.com/kart-io/rubric-grader/pkg/utils/errors"
	"github.com/kart-io/rubric-grader/pkg/utils/response"
)

// UploadSuccessMessage is returned by both upload routes.
const UploadSuccessMessage = "Rubric uploaded successfully"

// Config holds handler limits.
type Config struct {
	// MaxUploadBytes caps multipart rubric uploads.
	MaxUploadBytes int64
	// RequestTimeout bounds grading and retrieval, 0 disables it.
	RequestTimeout time.Duration
}

// GraderHandler handles grader HTTP requests.
type GraderHandler struct {
	service biz.Service
	config  *Config
}

// NewGraderHandler creates a new GraderHandler.
func NewGraderHandler(service biz.Service, config *Config) *GraderHandler {
	if config == nil {
		config = &Config{MaxUploadBytes: 32 << 20}
	}
	registerTagNames()
	return &GraderHandler{service: service, config: config}
}

// MessageResponse is the body of upload and delete routes.
type MessageResponse struct {
	Message string `json:"message"`
}

// UploadTextRequest represents a raw text upload.
type UploadTextRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Filename string `json:"filename" binding:"required"`
	Text     string `json:"text" binding:"required"`
}

// GradeRequest represents a grading request. StudentResponse may be empty.
type GradeRequest struct {
	UserID          string `json:"user_id" binding:"required"`
	Question        string `json:"question" binding:"required"`
	StudentResponse string `json:"student_response"`
	TopK            int    `json:"top_k" binding:"omitempty,min=1,max=50"`
}

// GradeResponse is the body of /grade-answer.
type GradeResponse struct {
	Response string `json:"response"`
}

// RetrieveRequest represents a retrieval request.
type RetrieveRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Question string `json:"question" binding:"required"`
	TopK     int    `json:"top_k" binding:"omitempty,min=1,max=50"`
}

// QueryResult is one retrieved rubric chunk.
type QueryResult struct {
	DocumentID      string  `json:"document_id"`
	Content         string  `json:"content"`
	SimilarityScore float32 `json:"similarity_score"`
	ChunkIndex      int     `json:"chunk_index"`
	SourceFile      string  `json:"source_file"`
}

// RetrieveResponse is the body of /retrieve.
type RetrieveResponse struct {
	Matches []QueryResult `json:"matches"`
}

// DeleteVectorsRequest represents a partial namespace prune.
type DeleteVectorsRequest struct {
	UserID string   `json:"user_id" binding:"required"`
	IDs    []string `json:"ids" binding:"required,min=1,dive,required"`
}

// Root answers GET /.
func (h *GraderHandler) Root(c *gin.Context) {
	response.OK(c, gin.H{"Hello": "World"})
}

// Healthz answers GET /healthz.
func (h *GraderHandler) Healthz(c *gin.Context) {
	response.OK(c, gin.H{"status": "ok"})
}

// UploadRubric ingests a multipart PDF upload.
func (h *GraderHandler) UploadRubric(c *gin.Context) {
	userID := c.PostForm("user_id")
	if userID == "" {
		response.Fail(c, errors.ErrInvalidParam.WithMessage("user_id is required"))
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		response.Fail(c, errors.ErrInvalidParam.WithMessage("file is required"))
		return
	}
	if fh.Size > h.config.MaxUploadBytes {
		response.Fail(c, errors.ErrInvalidParam.WithMessagef("file exceeds %d bytes", h.config.MaxUploadBytes))
		return
	}

	f, err := fh.Open()
	if err != nil {
		response.Fail(c, errors.ErrBadRequest.WithCause(err))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.config.MaxUploadBytes+1))
	if err != nil {
		response.Fail(c, errors.ErrBadRequest.WithCause(err))
		return
	}
	if int64(len(data)) > h.config.MaxUploadBytes {
		response.Fail(c, errors.ErrInvalidParam.WithMessagef("file exceeds %d bytes", h.config.MaxUploadBytes))
		return
	}

	if _, err := h.service.UploadPDF(c.Request.Context(), userID, fh.Filename, data); err != nil {
		response.Fail(c, biz.ToErrno(err))
		return
	}
	response.OK(c, MessageResponse{Message: UploadSuccessMessage})
}

// UploadText ingests raw rubric text.
func (h *GraderHandler) UploadText(c *gin.Context) {
	var req UploadTextRequest
	if !bind(c, &req) {
		return
	}

	if _, err := h.service.UploadText(c.Request.Context(), req.UserID, req.Filename, req.Text); err != nil {
		response.Fail(c, biz.ToErrno(err))
		return
	}
	response.OK(c, MessageResponse{Message: UploadSuccessMessage})
}

// GradeAnswer grades a student response against the caller's rubrics.
func (h *GraderHandler) GradeAnswer(c *gin.Context) {
	var req GradeRequest
	if !bind(c, &req) {
		return
	}

	ctx, cancel := h.withTimeout(c)
	defer cancel()

	result, err := h.service.GradeAnswer(ctx, req.UserID, req.Question, req.StudentResponse, req.TopK)
	if err != nil {
		response.Fail(c, biz.ToErrno(err))
		return
	}
	response.OK(c, GradeResponse{Response: result.Response})
}

// Retrieve returns the rubric chunks that would ground a grading call.
func (h *GraderHandler) Retrieve(c *gin.Context) {
	var req RetrieveRequest
	if !bind(c, &req) {
		return
	}

	ctx, cancel := h.withTimeout(c)
	defer cancel()

	matches, err := h.service.Retrieve(ctx, req.UserID, req.Question, req.TopK)
	if err != nil {
		response.Fail(c, biz.ToErrno(err))
		return
	}
	response.OK(c, RetrieveResponse{Matches: ToQueryResults(matches)})
}

// DeleteNamespace removes every vector of a user.
func (h *GraderHandler) DeleteNamespace(c *gin.Context) {
	userID := c.Param("user_id")
	if err := h.service.DeleteNamespace(c.Request.Context(), userID); err != nil {
		response.Fail(c, biz.ToErrno(err))
		return
	}
	response.OK(c, MessageResponse{Message: fmt.Sprintf("Namespace %s deleted", userID)})
}

// DeleteVectors removes the given vector ids of a user.
func (h *GraderHandler) DeleteVectors(c *gin.Context) {
	var req DeleteVectorsRequest
	if !bind(c, &req) {
		return
	}

	if err := h.service.DeleteVectors(c.Request.Context(), req.UserID, req.IDs); err != nil {
		response.Fail(c, biz.ToErrno(err))
		return
	}
	response.OK(c, MessageResponse{Message: fmt.Sprintf("%d vectors deleted", len(req.IDs))})
}

// ToQueryResults converts store matches to the API shape.
func ToQueryResults(matches []store.Match) []QueryResult {
	out := make([]QueryResult, len(matches))
	for i, m := range matches {
		out[i] = QueryResult{
			DocumentID:      m.ID,
			Content:         m.Metadata.Text,
			SimilarityScore: m.Score,
			ChunkIndex:      m.Metadata.ChunkIndex,
			SourceFile:      m.Metadata.SourceFile,
		}
	}
	return out
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Fail(c, errors.ErrInvalidParam.WithMessage(validationMessage(err)))
		return false
	}
	return true
}

func (h *GraderHandler) withTimeout(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.config.RequestTimeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), h.config.RequestTimeout)
}
