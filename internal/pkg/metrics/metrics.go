package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector 业务与 HTTP 指标，每个实例使用独立的 registry。
// nil Collector 的所有方法都是空操作。
type Collector struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	creditsDeducted *prometheus.CounterVec
	creditsRefunded prometheus.Counter
	deductRejected  prometheus.Counter
	conflictRetries prometheus.Counter
	generations     *prometheus.CounterVec
	driftRepaired   prometheus.Counter
	imagesPersisted *prometheus.CounterVec
}

// New 创建指标收集器
func New(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		creditsDeducted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "credits_deducted_total",
				Help:      "Credits deducted from account balances",
			},
			[]string{"reason"},
		),
		creditsRefunded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "credits_refunded_total",
				Help:      "Credits returned after failed generations",
			},
		),
		deductRejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deductions_rejected_total",
				Help:      "Deductions rejected for insufficient credits",
			},
		),
		conflictRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_conflict_retries_total",
				Help:      "Ledger writes retried after a transient store conflict",
			},
		),
		generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generations_total",
				Help:      "Content generations by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		driftRepaired: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "project_count_drift_repaired_total",
				Help:      "Projects whose stored content count was repaired",
			},
		),
		imagesPersisted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "images_persisted_total",
				Help:      "Generated images copied to object storage",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.creditsDeducted,
		c.creditsRefunded,
		c.deductRejected,
		c.conflictRetries,
		c.generations,
		c.driftRepaired,
		c.imagesPersisted,
	)

	return c
}

// Registry 返回底层 registry
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler 返回 /metrics 处理器
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (c *Collector) RecordDeduct(reason string, amount int) {
	if c == nil {
		return
	}
	c.creditsDeducted.WithLabelValues(reason).Add(float64(amount))
}

func (c *Collector) RecordRefund(amount int) {
	if c == nil {
		return
	}
	c.creditsRefunded.Add(float64(amount))
}

func (c *Collector) RecordDeductRejected() {
	if c == nil {
		return
	}
	c.deductRejected.Inc()
}

func (c *Collector) RecordConflictRetry() {
	if c == nil {
		return
	}
	c.conflictRetries.Inc()
}

// RecordGeneration outcome: success, placeholder, insufficient, provider_error, error
func (c *Collector) RecordGeneration(contentType, outcome string) {
	if c == nil {
		return
	}
	c.generations.WithLabelValues(contentType, outcome).Inc()
}

func (c *Collector) RecordDriftRepaired(n int) {
	if c == nil {
		return
	}
	c.driftRepaired.Add(float64(n))
}

func (c *Collector) RecordImagePersist(status string) {
	if c == nil {
		return
	}
	c.imagesPersisted.WithLabelValues(status).Inc()
}
