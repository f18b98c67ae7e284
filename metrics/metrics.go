// Package metrics defines the collector interface the engine reports
// its operational metrics through. The zero-cost Noop collector is used
// when monitoring is not wired up; the prom subpackage provides a
// Prometheus-backed implementation.
package metrics

import "time"

// Collector receives operational metrics. Implementations must be safe
// for concurrent use.
type Collector interface {
	// RecordUpsert is called after each index upsert driven by the
	// coordinator. err is nil on success.
	RecordUpsert(duration time.Duration, err error)

	// RecordRemove is called after each index remove.
	RecordRemove(duration time.Duration, err error)

	// RecordCommit is called after each index commit.
	RecordCommit(duration time.Duration, err error)

	// RecordSearch is called after each search.
	RecordSearch(duration time.Duration, err error)

	// RecordStaleSkip is called when a write is skipped because the
	// index already holds an equal or newer version.
	RecordStaleSkip()

	// RecordEscalation is called when repeated failures for one entry
	// id are escalated to the operator.
	RecordEscalation()

	// RecordReconcile is called after a reconciliation pass with the
	// pass totals.
	RecordReconcile(inserted, updated, removed, failed int, duration time.Duration)
}

// Noop is a Collector that discards everything.
type Noop struct{}

func (Noop) RecordUpsert(time.Duration, error)              {}
func (Noop) RecordRemove(time.Duration, error)              {}
func (Noop) RecordCommit(time.Duration, error)              {}
func (Noop) RecordSearch(time.Duration, error)              {}
func (Noop) RecordStaleSkip()                               {}
func (Noop) RecordEscalation()                              {}
func (Noop) RecordReconcile(int, int, int, int, time.Duration) {}

// OrNoop returns c, or Noop when c is nil.
func OrNoop(c Collector) Collector {
	if c == nil {
		return Noop{}
	}
	return c
}
