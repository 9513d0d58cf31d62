// Package metrics exposes the engine's Prometheus instrumentation. A nil
// *Registry disables collection, so the engine can record unconditionally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/niuchangsheng/kv/status"
)

// Registry holds the engine's metric families, registered on a private
// prometheus registry so multiple engines in one process do not collide.
type Registry struct {
	registry *prometheus.Registry

	OperationsTotal   *prometheus.CounterVec
	WALAppendedBytes  prometheus.Counter
	FlushesTotal      prometheus.Counter
	FlushDuration     prometheus.Histogram
	MemtableSizeBytes prometheus.Gauge
	SSTablesTotal     prometheus.Gauge
}

// NewRegistry creates and registers the engine metric families.
func NewRegistry() *Registry {
	registry := prometheus.NewRegistry()
	return &Registry{
		registry: registry,
		OperationsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kv_operations_total",
				Help: "Total number of engine operations",
			},
			[]string{"op", "status"},
		),
		WALAppendedBytes: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "kv_wal_appended_bytes_total",
				Help: "Bytes appended to the write-ahead log",
			},
		),
		FlushesTotal: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "kv_flushes_total",
				Help: "Total number of memtable flushes",
			},
		),
		FlushDuration: promauto.With(registry).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kv_flush_duration_seconds",
				Help:    "Memtable flush duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
		),
		MemtableSizeBytes: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "kv_memtable_size_bytes",
				Help: "Approximate size of the live memtable",
			},
		),
		SSTablesTotal: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "kv_sstables_total",
				Help: "Number of live sstable files",
			},
		),
	}
}

// Gatherer exposes the underlying registry for scraping.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.registry }

// RecordOperation counts one engine operation with its outcome.
func (r *Registry) RecordOperation(op string, err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil && !status.IsNotFound(err) {
		outcome = "error"
	} else if status.IsNotFound(err) {
		outcome = "not_found"
	}
	r.OperationsTotal.WithLabelValues(op, outcome).Inc()
}

// RecordWALAppend counts bytes appended to the log.
func (r *Registry) RecordWALAppend(bytes int) {
	if r == nil {
		return
	}
	r.WALAppendedBytes.Add(float64(bytes))
}

// RecordFlush observes one completed flush.
func (r *Registry) RecordFlush(d time.Duration) {
	if r == nil {
		return
	}
	r.FlushesTotal.Inc()
	r.FlushDuration.Observe(d.Seconds())
}

// SetMemtableSize tracks the live memtable's approximate size.
func (r *Registry) SetMemtableSize(bytes int) {
	if r == nil {
		return
	}
	r.MemtableSizeBytes.Set(float64(bytes))
}

// SetSSTableCount tracks the catalog size.
func (r *Registry) SetSSTableCount(n int) {
	if r == nil {
		return
	}
	r.SSTablesTotal.Set(float64(n))
}
