package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSONRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"q":"x"}`, string(b))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"answer":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient(time.Second, 1)
	c.backoff = time.Millisecond

	var out struct {
		Answer string `json:"answer"`
	}
	require.NoError(t, c.PostJSON(context.Background(), srv.URL, nil, map[string]string{"q": "x"}, &out))
	assert.Equal(t, "ok", out.Answer)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPostJSONNoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("model loading"))
	}))
	defer srv.Close()

	c := NewClient(time.Second, 0)
	err := c.PostJSON(context.Background(), srv.URL, map[string]string{"Authorization": "Bearer k"}, struct{}{}, nil)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Equal(t, "model loading", se.Body)
	assert.Equal(t, int32(1), calls.Load())
}
