package milvus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamespaceFilter(t *testing.T) {
	assert.Equal(t, `namespace == "user-1"`, NamespaceFilter("user-1"))
	assert.Equal(t, `namespace == "a\"b\\c"`, NamespaceFilter(`a"b\c`))
}

func TestIDsFilter(t *testing.T) {
	assert.Equal(t, `id in ["a", "b"]`, IDsFilter([]string{"a", "b"}))
}

func TestPollUntil(t *testing.T) {
	t.Run("ready after a few polls", func(t *testing.T) {
		calls := 0
		err := pollUntil(context.Background(), time.Second, time.Millisecond, func(context.Context) (bool, error) {
			calls++
			return calls >= 3, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("times out", func(t *testing.T) {
		err := pollUntil(context.Background(), 20*time.Millisecond, 5*time.Millisecond, func(context.Context) (bool, error) {
			return false, errors.New("still loading")
		})
		require.ErrorIs(t, err, ErrNotReady)
		assert.Contains(t, err.Error(), "still loading")
	})

	t.Run("nil options", func(t *testing.T) {
		_, err := New(nil)
		assert.Error(t, err)
	})
}
