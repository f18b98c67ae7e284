// Package prom implements metrics.Collector on top of Prometheus.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/geodex/metrics"
)

// Collector is a Prometheus-backed metrics.Collector.
type Collector struct {
	ops         *prometheus.CounterVec
	opDurations *prometheus.HistogramVec
	staleSkips  prometheus.Counter
	escalations prometheus.Counter

	reconcileRuns     prometheus.Counter
	reconcileDocs     *prometheus.CounterVec
	reconcileDuration prometheus.Histogram
}

var _ metrics.Collector = (*Collector)(nil)

// New creates a Collector and registers its metrics with reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geodex",
			Name:      "index_operations_total",
			Help:      "Index operations by kind and result.",
		}, []string{"op", "result"}),
		opDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "geodex",
			Name:      "index_operation_duration_seconds",
			Help:      "Index operation latency by kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		staleSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geodex",
			Name:      "stale_writes_skipped_total",
			Help:      "Writes skipped because the index held an equal or newer version.",
		}),
		escalations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geodex",
			Name:      "escalations_total",
			Help:      "Per-entry failure escalations raised to the operator.",
		}),
		reconcileRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geodex",
			Name:      "reconcile_runs_total",
			Help:      "Completed reconciliation passes.",
		}),
		reconcileDocs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geodex",
			Name:      "reconcile_documents_total",
			Help:      "Documents touched by reconciliation, by outcome.",
		}, []string{"outcome"}),
		reconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "geodex",
			Name:      "reconcile_duration_seconds",
			Help:      "Reconciliation pass duration.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
	}

	reg.MustRegister(
		c.ops, c.opDurations, c.staleSkips, c.escalations,
		c.reconcileRuns, c.reconcileDocs, c.reconcileDuration,
	)
	return c
}

func (c *Collector) record(op string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.ops.WithLabelValues(op, result).Inc()
	c.opDurations.WithLabelValues(op).Observe(d.Seconds())
}

func (c *Collector) RecordUpsert(d time.Duration, err error) { c.record("upsert", d, err) }
func (c *Collector) RecordRemove(d time.Duration, err error) { c.record("remove", d, err) }
func (c *Collector) RecordCommit(d time.Duration, err error) { c.record("commit", d, err) }
func (c *Collector) RecordSearch(d time.Duration, err error) { c.record("search", d, err) }

func (c *Collector) RecordStaleSkip()  { c.staleSkips.Inc() }
func (c *Collector) RecordEscalation() { c.escalations.Inc() }

func (c *Collector) RecordReconcile(inserted, updated, removed, failed int, d time.Duration) {
	c.reconcileRuns.Inc()
	c.reconcileDocs.WithLabelValues("inserted").Add(float64(inserted))
	c.reconcileDocs.WithLabelValues("updated").Add(float64(updated))
	c.reconcileDocs.WithLabelValues("removed").Add(float64(removed))
	c.reconcileDocs.WithLabelValues("failed").Add(float64(failed))
	c.reconcileDuration.Observe(d.Seconds())
}
