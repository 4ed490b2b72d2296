package biz

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kart-io/rubric-grader/internal/grader/biz/biztest"
	"github.com/kart-io/rubric-grader/internal/grader/store"
)

const testDim = biztest.Dimension

// flakyStore 在第 failAt 次 Upsert 时失败。
type flakyStore struct {
	*store.MemoryStore
	initErr  error
	queryErr error
	failAt   int
	upserts  int
}

var errStoreDown = errors.New("store unavailable")

func (s *flakyStore) Init(ctx context.Context) error {
	if s.initErr != nil {
		return s.initErr
	}
	return s.MemoryStore.Init(ctx)
}

func (s *flakyStore) Upsert(ctx context.Context, namespace string, records []store.Record) error {
	s.upserts++
	if s.failAt > 0 && s.upserts >= s.failAt {
		return errStoreDown
	}
	return s.MemoryStore.Upsert(ctx, namespace, records)
}

func (s *flakyStore) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]store.Match, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.MemoryStore.Query(ctx, namespace, vector, topK)
}

// recordingObserver 记录阶段事件。
type recordingObserver struct {
	mu      sync.Mutex
	stages  map[Stage]int
	failed  map[Stage]int
	ingests []IngestState
	grades  int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{stages: map[Stage]int{}, failed: map[Stage]int{}}
}

func (o *recordingObserver) ObserveStage(stage Stage, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stages[stage]++
	if err != nil {
		o.failed[stage]++
	}
}

func (o *recordingObserver) ObserveIngest(state IngestState, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ingests = append(o.ingests, state)
}

func (o *recordingObserver) ObserveGrade(int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.grades++
}
