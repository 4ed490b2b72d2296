package grpc

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/kart-io/rubric-grader/internal/grader/biz"
	"github.com/kart-io/rubric-grader/internal/grader/handler"
	ragopts "github.com/kart-io/rubric-grader/pkg/options/rag"
	"github.com/kart-io/rubric-grader/pkg/utils/errors"
)

// Handler implements GraderServer on top of biz.Service.
type Handler struct {
	service biz.Service
}

// NewHandler creates a gRPC handler.
func NewHandler(service biz.Service) *Handler {
	return &Handler{service: service}
}

// UploadText ingests raw rubric text.
func (h *Handler) UploadText(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, filename, text := str(in, "user_id"), str(in, "filename"), str(in, "text")
	if userID == "" || filename == "" || text == "" {
		return nil, invalid("user_id, filename and text are required")
	}

	if _, err := h.service.UploadText(ctx, userID, filename, text); err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{"message": handler.UploadSuccessMessage})
}

// GradeAnswer grades a student response.
func (h *Handler) GradeAnswer(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, question := str(in, "user_id"), str(in, "question")
	if userID == "" || question == "" {
		return nil, invalid("user_id and question are required")
	}
	topK, err := parseTopK(in)
	if err != nil {
		return nil, err
	}

	result, err := h.service.GradeAnswer(ctx, userID, question, str(in, "student_response"), topK)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{"response": result.Response})
}

// Retrieve returns ranked rubric chunks.
func (h *Handler) Retrieve(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, question := str(in, "user_id"), str(in, "question")
	if userID == "" || question == "" {
		return nil, invalid("user_id and question are required")
	}
	topK, err := parseTopK(in)
	if err != nil {
		return nil, err
	}

	matches, err := h.service.Retrieve(ctx, userID, question, topK)
	if err != nil {
		return nil, toStatus(err)
	}

	list := make([]any, 0, len(matches))
	for _, m := range handler.ToQueryResults(matches) {
		list = append(list, map[string]any{
			"document_id":      m.DocumentID,
			"content":          m.Content,
			"similarity_score": float64(m.SimilarityScore),
			"chunk_index":      m.ChunkIndex,
			"source_file":      m.SourceFile,
		})
	}
	return structpb.NewStruct(map[string]any{"matches": list})
}

// DeleteNamespace removes every vector of a user.
func (h *Handler) DeleteNamespace(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID := str(in, "user_id")
	if userID == "" {
		return nil, invalid("user_id is required")
	}

	if err := h.service.DeleteNamespace(ctx, userID); err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{"message": fmt.Sprintf("Namespace %s deleted", userID)})
}

// Register registers the handler on s.
func (h *Handler) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&ServiceDesc, h)
}

func str(in *structpb.Struct, key string) string {
	return in.GetFields()[key].GetStringValue()
}

func parseTopK(in *structpb.Struct) (int, error) {
	v, ok := in.GetFields()["top_k"]
	if !ok {
		return 0, nil
	}
	n := int(v.GetNumberValue())
	if float64(n) != v.GetNumberValue() || n < 1 || n > ragopts.MaxTopK {
		return 0, invalid(fmt.Sprintf("top_k must be an integer in [1, %d]", ragopts.MaxTopK))
	}
	return n, nil
}

func invalid(msg string) error {
	return errors.ErrInvalidParam.WithMessage(msg).GRPCStatus().Err()
}

func toStatus(err error) error {
	e := biz.ToErrno(err)
	logger.Warnw("gRPC request failed", "code", e.Code, "error", err.Error())
	return e.GRPCStatus().Err()
}

var _ GraderServer = (*Handler)(nil)
