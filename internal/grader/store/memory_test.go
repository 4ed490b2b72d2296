package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(id string, values ...float32) Record {
	return Record{ID: id, Values: values, Metadata: Metadata{Text: "text " + id, SourceFile: "rubric.pdf"}}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(3)
	require.NoError(t, s.Init(ctx))

	require.NoError(t, s.Upsert(ctx, "alice", []Record{
		rec("a", 1, 0, 0),
		rec("b", 0, 1, 0),
		rec("c", 0.9, 0.1, 0),
	}))

	matches, err := s.Query(ctx, "alice", []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].ID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	assert.Equal(t, "c", matches[1].ID)
	assert.Equal(t, []float32{1, 0, 0}, matches[0].Values)
	assert.Equal(t, "text a", matches[0].Metadata.Text)
}

func TestMemoryStoreNamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)
	require.NoError(t, s.Upsert(ctx, "a", []Record{rec("x", 1, 0)}))

	matches, err := s.Query(ctx, "b", []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMemoryStoreDefaultTopK(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)
	records := make([]Record, 8)
	for i := range records {
		records[i] = rec(fmt.Sprintf("r%d", i), 1, float32(i))
	}
	require.NoError(t, s.Upsert(ctx, "ns", records))

	matches, err := s.Query(ctx, "ns", []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Len(t, matches, DefaultTopK)
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score)
	}
}

func TestMemoryStoreUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)
	require.NoError(t, s.Upsert(ctx, "ns", []Record{rec("x", 1, 0)}))
	require.NoError(t, s.Upsert(ctx, "ns", []Record{rec("x", 0, 1)}))

	assert.Equal(t, 1, s.Count("ns"))
	matches, err := s.Query(ctx, "ns", []float32{0, 1}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
}

func TestMemoryStoreDeletes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)

	require.NoError(t, s.DeleteNamespace(ctx, "missing"))
	require.NoError(t, s.DeleteVectors(ctx, "missing", []string{"x"}))

	require.NoError(t, s.Upsert(ctx, "ns", []Record{rec("x", 1, 0), rec("y", 0, 1)}))
	require.NoError(t, s.DeleteVectors(ctx, "ns", []string{"x", "unknown"}))
	assert.Equal(t, 1, s.Count("ns"))

	require.NoError(t, s.DeleteNamespace(ctx, "ns"))
	require.NoError(t, s.DeleteNamespace(ctx, "ns"))
	assert.Equal(t, 0, s.Count("ns"))
}

func TestMemoryStoreRejectsWrongDimension(t *testing.T) {
	s := NewMemoryStore(384)
	err := s.Upsert(context.Background(), "ns", []Record{rec("x", 1, 0)})
	assert.Error(t, err)
	assert.Equal(t, 0, s.Count("ns"))
}
