package router

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/rubric-grader/internal/grader/biz"
	"github.com/kart-io/rubric-grader/internal/grader/biz/biztest"
	"github.com/kart-io/rubric-grader/internal/grader/handler"
	"github.com/kart-io/rubric-grader/internal/grader/metrics"
	"github.com/kart-io/rubric-grader/internal/grader/store"
	apierrors "github.com/kart-io/rubric-grader/pkg/utils/errors"
	"github.com/kart-io/rubric-grader/pkg/utils/json"
	"github.com/kart-io/rubric-grader/pkg/utils/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	engine *gin.Engine
	store  *store.MemoryStore
	chat   *biztest.Chat
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{
		store: store.NewMemoryStore(biztest.Dimension),
		chat:  &biztest.Chat{Answer: "The student should receive 2 out of 3 points."},
	}
	svc, err := biz.NewGraderService(ts.store, biztest.NewHashEmbedder(), ts.chat, nil, nil, &biz.ServiceConfig{
		ChunkSize:    700,
		ChunkOverlap: 50,
		Dimension:    biztest.Dimension,
		EmbedBatch:   32,
		UpsertBatch:  100,
		TopK:         5,
	})
	require.NoError(t, err)

	h := handler.NewGraderHandler(svc, &handler.Config{MaxUploadBytes: 1 << 20, RequestTimeout: 30 * time.Second})
	ts.engine = NewEngine("grader-test", h, metrics.New())
	return ts
}

func (ts *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		data, _ := json.Marshal(body)
		buf.Write(data)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestRoot(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"Hello": "World"}, decode[map[string]string](t, w))

	w = ts.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, w)["status"])
}

func TestUploadTextThenGradeAnswer(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/upload-text", handler.UploadTextRequest{
		UserID:   "test_user",
		Filename: "bst.txt",
		Text:     "A binary search tree stores values in sorted order.",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, handler.UploadSuccessMessage, decode[handler.MessageResponse](t, w).Message)
	assert.Equal(t, 1, ts.store.Count("test_user"))

	w = ts.do(http.MethodPost, "/grade-answer", map[string]any{
		"user_id":          "test_user",
		"question":         "What is a BST?",
		"student_response": "A tree whose in-order traversal is sorted.",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "The student should receive 2 out of 3 points.", decode[handler.GradeResponse](t, w).Response)
	assert.Contains(t, ts.chat.LastPrompt(), "Rubric Information: A binary search tree stores values in sorted order.")
}

func TestGradeAnswerWithoutRubricStillGrades(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/grade-answer", map[string]any{
		"user_id":          "fresh_user",
		"question":         "What is a BST?",
		"student_response": "",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, decode[handler.GradeResponse](t, w).Response)
}

func TestGradeAnswerValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body any
	}{
		{"missing user", map[string]any{"question": "q"}},
		{"missing question", map[string]any{"user_id": "u"}},
		{"top_k too large", map[string]any{"user_id": "u", "question": "q", "top_k": 51}},
		{"top_k negative", map[string]any{"user_id": "u", "question": "q", "top_k": -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(http.MethodPost, "/grade-answer", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			body := decode[response.ErrorBody](t, w)
			assert.Equal(t, apierrors.ErrInvalidParam.Code, body.Code)
			assert.NotEmpty(t, body.RequestID)
		})
	}
	assert.Empty(t, ts.chat.Prompts())
}

func TestGradeAnswerRejectsMalformedJSON(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/grade-answer", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGradeAnswerModelFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.chat.Err = errors.New("ollama: connection refused")

	w := ts.do(http.MethodPost, "/grade-answer", map[string]any{"user_id": "u", "question": "q", "student_response": "r"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, apierrors.ErrGradingFailed.Code, decode[response.ErrorBody](t, w).Code)
}

func TestUploadTextRejectsEmptyText(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/upload-text", map[string]any{"user_id": "u", "filename": "f.txt", "text": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apierrors.ErrInvalidParam.Code, decode[response.ErrorBody](t, w).Code)
	assert.Equal(t, 0, ts.store.Count("u"))
}

func multipartUpload(t *testing.T, userID, filename string, content []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if userID != "" {
		require.NoError(t, mw.WriteField("user_id", userID))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload-rubric", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadRubric(t *testing.T) {
	ts := newTestServer(t)

	t.Run("pdf", func(t *testing.T) {
		data := biztest.PDF("Award one point for naming the base case.", "Award two points for a correct recurrence.")
		w := httptest.NewRecorder()
		ts.engine.ServeHTTP(w, multipartUpload(t, "carol", "rubric.pdf", data))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, handler.UploadSuccessMessage, decode[handler.MessageResponse](t, w).Message)
		assert.Equal(t, 1, ts.store.Count("carol"))

		w = ts.do(http.MethodPost, "/retrieve", handler.RetrieveRequest{UserID: "carol", Question: "correct recurrence", TopK: 1})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		res := decode[handler.RetrieveResponse](t, w)
		require.Len(t, res.Matches, 1)
		assert.Equal(t, "rubric.pdf", res.Matches[0].SourceFile)
		assert.Contains(t, res.Matches[0].Content, "Award one point for naming the base case.\n\nAward two points for a correct recurrence.")
	})

	t.Run("missing user id", func(t *testing.T) {
		w := httptest.NewRecorder()
		ts.engine.ServeHTTP(w, multipartUpload(t, "", "rubric.pdf", []byte("%PDF-1.4")))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		w := httptest.NewRecorder()
		ts.engine.ServeHTTP(w, multipartUpload(t, "u", "", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unreadable pdf", func(t *testing.T) {
		w := httptest.NewRecorder()
		ts.engine.ServeHTTP(w, multipartUpload(t, "u", "rubric.pdf", []byte("definitely not a pdf")))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apierrors.ErrDocumentUnreadable.Code, decode[response.ErrorBody](t, w).Code)
	})

	t.Run("too large", func(t *testing.T) {
		w := httptest.NewRecorder()
		ts.engine.ServeHTTP(w, multipartUpload(t, "u", "rubric.pdf", bytes.Repeat([]byte("x"), 2<<20)))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apierrors.ErrInvalidParam.Code, decode[response.ErrorBody](t, w).Code)
	})
}

func TestRetrieveAndDelete(t *testing.T) {
	ts := newTestServer(t)

	for _, text := range []string{"Award one point for naming the base case.", "Award two points for a correct recurrence."} {
		w := ts.do(http.MethodPost, "/upload-text", handler.UploadTextRequest{UserID: "alice", Filename: "recursion.txt", Text: text})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := ts.do(http.MethodPost, "/retrieve", handler.RetrieveRequest{UserID: "alice", Question: "Award two points for a correct recurrence.", TopK: 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[handler.RetrieveResponse](t, w)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "Award two points for a correct recurrence.", res.Matches[0].Content)
	assert.Equal(t, "recursion.txt", res.Matches[0].SourceFile)
	assert.InDelta(t, 1.0, res.Matches[0].SimilarityScore, 1e-5)
	assert.NotEmpty(t, res.Matches[0].DocumentID)

	w = ts.do(http.MethodPost, "/delete-vectors", handler.DeleteVectorsRequest{UserID: "alice", IDs: []string{res.Matches[0].DocumentID, "unknown"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, ts.store.Count("alice"))

	w = ts.do(http.MethodPost, "/delete-vectors", map[string]any{"user_id": "alice", "ids": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodDelete, "/namespaces/alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, ts.store.Count("alice"))

	w = ts.do(http.MethodDelete, "/namespaces/alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodPost, "/retrieve", handler.RetrieveRequest{UserID: "alice", Question: "recurrence"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[handler.RetrieveResponse](t, w).Matches)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/grade-answer", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestMetricsAndNotFound(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apierrors.ErrNotFound.Code, decode[response.ErrorBody](t, w).Code)

	ts.do(http.MethodGet, "/", nil)
	w = ts.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `grader_http_requests_total{method="GET",route="/",status="200"} 1`)
}
