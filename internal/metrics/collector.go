// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector 编排器指标收集器
type Collector struct {
	generationsTotal   *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	retriesTotal       *prometheus.CounterVec
	failoversTotal     prometheus.Counter
	crossValWinsTotal  *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.generationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Total number of generation dispatches",
		},
		[]string{"provider", "mode", "status"},
	)

	c.generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Wall-clock duration of a logical generation request",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"mode"},
	)

	c.retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Total number of retry attempts after the first",
		},
		[]string{"provider"},
	)

	c.failoversTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failovers_total",
			Help:      "Total number of requests served by the surviving provider",
		},
	)

	c.crossValWinsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crossval_wins_total",
			Help:      "Cross-validation wins per provider",
		},
		[]string{"provider"},
	)

	return c
}

// RecordGeneration 记录一次派发结果
func (c *Collector) RecordGeneration(provider, mode, status string) {
	c.generationsTotal.WithLabelValues(provider, mode, status).Inc()
}

// RecordDuration 记录一次逻辑请求的墙钟耗时
func (c *Collector) RecordDuration(mode string, seconds float64) {
	c.generationDuration.WithLabelValues(mode).Observe(seconds)
}

// RecordRetry 记录一次重试（首次尝试之外）
func (c *Collector) RecordRetry(provider string) {
	c.retriesTotal.WithLabelValues(provider).Inc()
}

// RecordFailover 记录一次 failover
func (c *Collector) RecordFailover() {
	c.failoversTotal.Inc()
}

// RecordCrossValWin 记录一次交叉验证胜出
func (c *Collector) RecordCrossValWin(provider string) {
	c.crossValWinsTotal.WithLabelValues(provider).Inc()
}
