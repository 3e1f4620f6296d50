// Package metrics provides the Prometheus instrumentation shared by
// storage entities, the transfer engine, and queue channels. A nil
// *Collector is valid everywhere and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the registry and the instrument families.
type Collector struct {
	registry *prometheus.Registry

	backendOps    *prometheus.CounterVec
	backendErrors *prometheus.CounterVec
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter

	transferFiles *prometheus.CounterVec
	transferBytes prometheus.Counter

	queuePushed   *prometheus.CounterVec
	queueReceived prometheus.Counter
	queueDeleted  prometheus.Counter
}

// NewCollector creates a collector with its own registry.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "driftfs"
	}
	c := &Collector{registry: prometheus.NewRegistry()}

	c.backendOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backend_operations_total",
		Help:      "Backend capability calls by backend and operation.",
	}, []string{"backend", "operation"})

	c.backendErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backend_errors_total",
		Help:      "Failed backend capability calls by backend and operation.",
	}, []string{"backend", "operation"})

	c.cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_hits_total",
		Help:      "Read-like operations answered from the cache.",
	})

	c.cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_misses_total",
		Help:      "Read-like operations that fell through to the backend.",
	})

	c.transferFiles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transfer_files_total",
		Help:      "Transferred files by per-item outcome.",
	}, []string{"status"})

	c.transferBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transfer_bytes_total",
		Help:      "Payload bytes moved by the transfer engine.",
	})

	c.queuePushed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queue_pushed_total",
		Help:      "Push attempts by outcome.",
	}, []string{"outcome"})

	c.queueReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queue_received_total",
		Help:      "Messages received from queue backends.",
	})

	c.queueDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queue_deleted_total",
		Help:      "Messages deleted from queue backends.",
	})

	c.registry.MustRegister(
		c.backendOps, c.backendErrors,
		c.cacheHits, c.cacheMisses,
		c.transferFiles, c.transferBytes,
		c.queuePushed, c.queueReceived, c.queueDeleted,
	)
	return c
}

// Handler exposes the registry for scraping.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordBackendOp counts one capability call and, if err is non-nil, one
// failure.
func (c *Collector) RecordBackendOp(backend, operation string, err error) {
	if c == nil {
		return
	}
	c.backendOps.WithLabelValues(backend, operation).Inc()
	if err != nil {
		c.backendErrors.WithLabelValues(backend, operation).Inc()
	}
}

// RecordCacheHit counts a cache-served read.
func (c *Collector) RecordCacheHit() {
	if c == nil {
		return
	}
	c.cacheHits.Inc()
}

// RecordCacheMiss counts a read that fell through to the backend.
func (c *Collector) RecordCacheMiss() {
	if c == nil {
		return
	}
	c.cacheMisses.Inc()
}

// RecordTransfer counts one per-item transfer outcome and its bytes.
func (c *Collector) RecordTransfer(status string, bytes int64) {
	if c == nil {
		return
	}
	c.transferFiles.WithLabelValues(status).Inc()
	if bytes > 0 {
		c.transferBytes.Add(float64(bytes))
	}
}

// RecordPush counts one push attempt.
func (c *Collector) RecordPush(ok bool) {
	if c == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	c.queuePushed.WithLabelValues(outcome).Inc()
}

// RecordReceived counts messages handed out by a queue backend.
func (c *Collector) RecordReceived(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.queueReceived.Add(float64(n))
}

// RecordDeleted counts messages deleted from a queue backend.
func (c *Collector) RecordDeleted(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.queueDeleted.Add(float64(n))
}
