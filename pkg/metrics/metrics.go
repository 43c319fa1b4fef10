package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "edumax"

// Metrics Prometheus 指标集合
// 所有方法对 nil 接收者安全，未启用指标时直接传 nil
type Metrics struct {
	registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	patchBatches   *prometheus.CounterVec
	patchOps       *prometheus.CounterVec
	patchDuration  prometheus.Histogram
	notifications  *prometheus.CounterVec
	archiveEntries prometheus.Counter
}

// New 创建独立 registry 并注册全部指标
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP 请求数",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP 请求耗时",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		patchBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "schedule",
			Name:      "patch_batches_total",
			Help:      "补丁批次数，按结果分类 (applied | rejected | error)",
		}, []string{"scope_type", "result"}),
		patchOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "schedule",
			Name:      "patch_ops_total",
			Help:      "单条补丁数，按操作与结果分类",
		}, []string{"op", "result"}),
		patchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "schedule",
			Name:      "patch_batch_duration_seconds",
			Help:      "补丁批次耗时（含等待作用域锁）",
			Buckets:   prometheus.DefBuckets,
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "pushes_total",
			Help:      "通知推送次数，按结果分类 (ok | retry | failed | dropped)",
		}, []string{"result"}),
		archiveEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "entries_total",
			Help:      "已归档的变更日志条数",
		}),
	}

	reg.MustRegister(
		m.httpRequests, m.httpDuration,
		m.patchBatches, m.patchOps, m.patchDuration,
		m.notifications, m.archiveEntries,
	)
	return m
}

// Handler /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry 暴露 registry（测试用）
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTP 记录一次 HTTP 请求
func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObservePatchBatch 记录一个补丁批次
func (m *Metrics) ObservePatchBatch(scopeType, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.patchBatches.WithLabelValues(scopeType, result).Inc()
	m.patchDuration.Observe(d.Seconds())
}

// IncPatchOp 记录单条补丁结果
func (m *Metrics) IncPatchOp(op string, ok bool) {
	if m == nil {
		return
	}
	result := "failed"
	if ok {
		result = "applied"
	}
	m.patchOps.WithLabelValues(op, result).Inc()
}

// IncNotification 记录一次推送结果
func (m *Metrics) IncNotification(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}

// AddArchived 累加已归档条数
func (m *Metrics) AddArchived(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.archiveEntries.Add(float64(n))
}
