package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore 进程内向量存储，暴力余弦检索。
type MemoryStore struct {
	dimension int

	mu         sync.RWMutex
	namespaces map[string]map[string]Record
}

// NewMemoryStore 创建内存存储，dimension 为 0 时不校验维度。
func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{
		dimension:  dimension,
		namespaces: make(map[string]map[string]Record),
	}
}

// Init 内存存储无需初始化。
func (s *MemoryStore) Init(context.Context) error {
	return nil
}

// Upsert 写入或替换记录。
func (s *MemoryStore) Upsert(_ context.Context, namespace string, records []Record) error {
	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("record id is required")
		}
		if s.dimension > 0 && len(r.Values) != s.dimension {
			return fmt.Errorf("record %s has dimension %d, want %d", r.ID, len(r.Values), s.dimension)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[namespace]
	if !ok {
		ns = make(map[string]Record)
		s.namespaces[namespace] = ns
	}
	for _, r := range records {
		r.Values = append([]float32(nil), r.Values...)
		ns[r.ID] = r
	}
	return nil
}

// Query 余弦相似度检索，分数相同时按 ID 排序保证稳定。
func (s *MemoryStore) Query(_ context.Context, namespace string, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ns := s.namespaces[namespace]
	matches := make([]Match, 0, len(ns))
	for _, r := range ns {
		if len(r.Values) != len(vector) {
			continue
		}
		matches = append(matches, Match{Record: r, Score: cosine(vector, r.Values)})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// DeleteNamespace 删除整个 namespace。
func (s *MemoryStore) DeleteNamespace(_ context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.namespaces, namespace)
	return nil
}

// DeleteVectors 删除指定 ID。
func (s *MemoryStore) DeleteVectors(_ context.Context, namespace string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[namespace]
	if !ok {
		return nil
	}
	for _, id := range ids {
		delete(ns, id)
	}
	if len(ns) == 0 {
		delete(s.namespaces, namespace)
	}
	return nil
}

// Count 返回 namespace 内的记录数。
func (s *MemoryStore) Count(namespace string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.namespaces[namespace])
}

// Close 无操作。
func (s *MemoryStore) Close(context.Context) error {
	return nil
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

var _ VectorStore = (*MemoryStore)(nil)
