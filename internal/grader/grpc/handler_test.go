package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/kart-io/rubric-grader/internal/grader/biz"
	"github.com/kart-io/rubric-grader/internal/grader/biz/biztest"
	"github.com/kart-io/rubric-grader/internal/grader/store"
	grpcserver "github.com/kart-io/rubric-grader/pkg/infra/server/transport/grpc"
)

type harness struct {
	conn *grpc.ClientConn
	chat *biztest.Chat
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	chat := &biztest.Chat{Answer: "The student should receive full credit."}
	svc, err := biz.NewGraderService(store.NewMemoryStore(biztest.Dimension), biztest.NewHashEmbedder(), chat, nil, nil, &biz.ServiceConfig{
		ChunkSize:    700,
		ChunkOverlap: 50,
		Dimension:    biztest.Dimension,
		TopK:         5,
	})
	require.NoError(t, err)

	s := grpcserver.NewServer(nil)
	NewHandler(svc).Register(s.Server())
	s.SetServing(ServiceName)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &harness{conn: conn, chat: chat}
}

func (h *harness) invoke(t *testing.T, method string, in map[string]any) (*structpb.Struct, error) {
	t.Helper()
	req, err := structpb.NewStruct(in)
	require.NoError(t, err)
	out := new(structpb.Struct)
	err = h.conn.Invoke(context.Background(), FullMethod(method), req, out)
	return out, err
}

func TestUploadTextThenGradeAnswer(t *testing.T) {
	h := newHarness(t)

	out, err := h.invoke(t, "UploadText", map[string]any{
		"user_id":  "test_user",
		"filename": "bst.txt",
		"text":     "A binary search tree stores values in sorted order.",
	})
	require.NoError(t, err)
	assert.Equal(t, "Rubric uploaded successfully", out.GetFields()["message"].GetStringValue())

	out, err = h.invoke(t, "GradeAnswer", map[string]any{
		"user_id":          "test_user",
		"question":         "What is a BST?",
		"student_response": "A sorted binary tree.",
	})
	require.NoError(t, err)
	assert.Equal(t, "The student should receive full credit.", out.GetFields()["response"].GetStringValue())

	out, err = h.invoke(t, "Retrieve", map[string]any{
		"user_id":  "test_user",
		"question": "A binary search tree stores values in sorted order.",
		"top_k":    3,
	})
	require.NoError(t, err)
	matches := out.GetFields()["matches"].GetListValue().GetValues()
	require.Len(t, matches, 1)
	match := matches[0].GetStructValue().GetFields()
	assert.Equal(t, "bst.txt", match["source_file"].GetStringValue())
	assert.InDelta(t, 1.0, match["similarity_score"].GetNumberValue(), 1e-5)
	assert.Equal(t, 0.0, match["chunk_index"].GetNumberValue())

	_, err = h.invoke(t, "DeleteNamespace", map[string]any{"user_id": "test_user"})
	require.NoError(t, err)

	out, err = h.invoke(t, "Retrieve", map[string]any{"user_id": "test_user", "question": "BST"})
	require.NoError(t, err)
	assert.Empty(t, out.GetFields()["matches"].GetListValue().GetValues())
}

func TestValidationErrors(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		method string
		in     map[string]any
	}{
		{"UploadText", map[string]any{"user_id": "u", "filename": "f.txt"}},
		{"GradeAnswer", map[string]any{"user_id": "u"}},
		{"GradeAnswer", map[string]any{"user_id": "u", "question": "q", "top_k": 0}},
		{"Retrieve", map[string]any{"question": "q"}},
		{"Retrieve", map[string]any{"user_id": "u", "question": "q", "top_k": 2.5}},
		{"DeleteNamespace", map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			_, err := h.invoke(t, tt.method, tt.in)
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
		})
	}
}

func TestGradingFailureMapsToUnavailable(t *testing.T) {
	h := newHarness(t)
	h.chat.Err = errors.New("model down")

	_, err := h.invoke(t, "GradeAnswer", map[string]any{"user_id": "u", "question": "q"})
	assert.Equal(t, codes.Unavailable, status.Code(err))
}
