// Package metrics 提供评分服务的业务指标收集，以 Prometheus 格式暴露。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kart-io/rubric-grader/internal/grader/biz"
	"github.com/kart-io/rubric-grader/pkg/infra/middleware"
	"github.com/kart-io/rubric-grader/pkg/infra/pool"
)

const namespace = "grader"

// GraderMetrics 评分服务指标。
type GraderMetrics struct {
	registry *prometheus.Registry

	stageDuration   *prometheus.HistogramVec
	stageErrors     *prometheus.CounterVec
	ingestsTotal    *prometheus.CounterVec
	chunksIndexed   prometheus.Counter
	gradesTotal     *prometheus.CounterVec
	matchesReturned prometheus.Histogram

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New 创建指标集合并注册到独立的 registry。
func New() *GraderMetrics {
	m := &GraderMetrics{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage latency.",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		stageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_errors_total",
			Help:      "Pipeline stage failures.",
		}, []string{"stage"}),
		ingestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestions_total",
			Help:      "Rubric ingestions by final state.",
		}, []string{"state"}),
		chunksIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_indexed_total",
			Help:      "Chunks written by completed ingestions.",
		}),
		gradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grades_total",
			Help:      "Grading requests by result.",
		}, []string{"result"}),
		matchesReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieved_chunks",
			Help:      "Rubric chunks used as grading context.",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20, 50},
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.stageDuration,
		m.stageErrors,
		m.ingestsTotal,
		m.chunksIndexed,
		m.gradesTotal,
		m.matchesReturned,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// ObserveStage 记录阶段耗时。
func (m *GraderMetrics) ObserveStage(stage biz.Stage, elapsed time.Duration, err error) {
	m.stageDuration.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
	if err != nil {
		m.stageErrors.WithLabelValues(string(stage)).Inc()
	}
}

// ObserveIngest 记录入库终态。
func (m *GraderMetrics) ObserveIngest(state biz.IngestState, chunks int) {
	m.ingestsTotal.WithLabelValues(string(state)).Inc()
	if state == biz.StateComplete {
		m.chunksIndexed.Add(float64(chunks))
	}
}

// ObserveGrade 记录评分请求。
func (m *GraderMetrics) ObserveGrade(matches int, err error) {
	if err != nil {
		m.gradesTotal.WithLabelValues("error").Inc()
		return
	}
	m.gradesTotal.WithLabelValues("ok").Inc()
	m.matchesReturned.Observe(float64(matches))
}

// ObserveRequest 记录 HTTP 请求。
func (m *GraderMetrics) ObserveRequest(method, route, status string, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// PoolSource 是可导出统计信息的协程池。
type PoolSource interface {
	Name() string
	Running() int
	Stats() pool.Stats
}

// RegisterPool 以 GaugeFunc/CounterFunc 形式导出协程池状态，抓取时读取。
func (m *GraderMetrics) RegisterPool(p PoolSource) {
	labels := prometheus.Labels{"pool": p.Name()}
	counter := func(name, help string, read func(pool.Stats) int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "pool",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return float64(read(p.Stats())) })
	}

	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "pool",
			Name:        "running_workers",
			Help:        "Workers currently running a task.",
			ConstLabels: labels,
		}, func() float64 { return float64(p.Running()) }),
		counter("tasks_completed_total", "Tasks finished without panic.", func(s pool.Stats) int64 { return s.CompletedTasks }),
		counter("tasks_failed_total", "Tasks that panicked or failed to submit.", func(s pool.Stats) int64 { return s.FailedTasks }),
		counter("tasks_rejected_total", "Tasks rejected by a full pool.", func(s pool.Stats) int64 { return s.RejectedTasks }),
	)
}

// Registry 返回底层 registry。
func (m *GraderMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回 /metrics 处理器。
func (m *GraderMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

var (
	_ biz.StageObserver          = (*GraderMetrics)(nil)
	_ middleware.RequestObserver = (*GraderMetrics)(nil)
)
