package id

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRecordIDs(t *testing.T) {
	ids := NewRecordIDs(50)
	assert.Len(t, ids, 50)

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		assert.True(t, IsValidUUID(id), id)
		assert.Len(t, id, 36)
		_, dup := seen[id]
		assert.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestIsValidUUID(t *testing.T) {
	assert.True(t, IsValidUUID("550e8400-e29b-41d4-a716-446655440000"))
	assert.False(t, IsValidUUID(""))
	assert.False(t, IsValidUUID("550e8400-e29b-41d4-a716"))
}

func TestNewRequestIDMonotonic(t *testing.T) {
	ids := make([]string, 100)
	for i := range ids {
		ids[i] = NewRequestID()
	}
	assert.Len(t, ids[0], 26)
	assert.True(t, sort.StringsAreSorted(ids))
}
