package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/geodex/model"
	"github.com/hupe1980/geodex/store"
)

// Report summarizes one reconciliation pass.
type Report struct {
	// Inserted counts entries that were missing from the index.
	Inserted int
	// Updated counts entries indexed at a stale version.
	Updated int
	// Removed counts index documents whose entry no longer exists.
	Removed int
	// Unchanged counts entries already indexed at the current version.
	Unchanged int
	// Failed counts entries whose index write failed; failures are
	// logged and skipped, they never abort the pass.
	Failed int

	Duration time.Duration
}

func (r *Report) String() string {
	return fmt.Sprintf("reconciled in %s: %d inserted, %d updated, %d removed, %d unchanged, %d failed",
		r.Duration.Round(time.Millisecond), r.Inserted, r.Updated, r.Removed, r.Unchanged, r.Failed)
}

// reconcileCounters accumulates the report under its own lock; the
// per-record workers run concurrently.
type reconcileCounters struct {
	mu sync.Mutex
	Report
	seen map[model.ID]struct{}
}

func (rc *reconcileCounters) markSeen(id model.ID) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.seen[id] = struct{}{}
}

func (rc *reconcileCounters) wasSeen(id model.ID) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	_, ok := rc.seen[id]
	return ok
}

func (rc *reconcileCounters) add(f func(*Report)) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	f(&rc.Report)
}

// Reconcile scans the entry store and brings the index to the store's
// current state: entries missing from the index or indexed at a stale
// version are re-upserted, documents without a backing entry are
// removed, and everything already current is left untouched.
//
// The pass is idempotent and safe to run concurrently with live
// traffic: it takes no global lock, serializes against live writes per
// id, and re-checks the ledger version immediately before every write
// so it can only move the index toward the store, never away from it.
// At most one pass runs at a time. Cancelling ctx stops the pass; the
// partial report is returned together with the context error.
func (c *Coordinator) Reconcile(ctx context.Context) (*Report, error) {
	c.reconcileMu.Lock()
	if c.reconciling {
		c.reconcileMu.Unlock()
		return nil, ErrReconcileRunning
	}
	c.reconciling = true
	c.reconcileMu.Unlock()
	defer func() {
		c.reconcileMu.Lock()
		c.reconciling = false
		c.reconcileMu.Unlock()
	}()

	start := time.Now()
	rc := &reconcileCounters{seen: make(map[model.ID]struct{})}

	sem := semaphore.NewWeighted(int64(c.parallelism))
	g, gctx := errgroup.WithContext(ctx)

	var scanErr error
	for rec, err := range c.entries.ScanAll(ctx) {
		if err != nil {
			scanErr = err
			break
		}
		if err := sem.Acquire(gctx, 1); err != nil {
			scanErr = err
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			c.reconcileRecord(gctx, rec, rc)
			return nil
		})
	}
	_ = g.Wait()

	if scanErr == nil {
		scanErr = ctx.Err()
	}
	if scanErr == nil {
		c.removeOrphans(ctx, rc)
	}

	commitStart := time.Now()
	commitErr := c.writer.Commit()
	c.collector.RecordCommit(time.Since(commitStart), commitErr)
	if commitErr != nil && scanErr == nil {
		scanErr = commitErr
	}

	rep := &Report{}
	rc.mu.Lock()
	*rep = rc.Report
	rc.mu.Unlock()
	rep.Duration = time.Since(start)

	c.collector.RecordReconcile(rep.Inserted, rep.Updated, rep.Removed, rep.Failed, rep.Duration)
	if scanErr != nil {
		c.logger.Warn("reconciliation aborted", "error", scanErr, "report", rep.String())
		return rep, scanErr
	}
	c.logger.Info("reconciliation finished",
		"inserted", rep.Inserted, "updated", rep.Updated, "removed", rep.Removed,
		"unchanged", rep.Unchanged, "failed", rep.Failed, "duration", rep.Duration)
	return rep, nil
}

// reconcileRecord compares one scanned record against the ledger and
// re-upserts it when missing or stale. It holds the record's shard lock
// for the whole compare-and-write so a concurrent live update for the
// same id cannot be lost.
func (c *Coordinator) reconcileRecord(ctx context.Context, rec *model.EntryRecord, rc *reconcileCounters) {
	sh := c.shard(rec.ID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rc.markSeen(rec.ID)

	// Seed the transient ledger from the index when this id has not
	// been tracked yet (fresh process over a loaded snapshot).
	cur, tracked := c.ledger.get(rec.ID)
	if !tracked {
		if v, inIndex := c.state.Version(rec.ID); inIndex {
			c.ledger.set(rec.ID, v)
			cur, tracked = v, true
		}
	}

	// CAS gate right before the write: skip if a live update got here
	// first with an equal or newer version.
	if tracked && cur >= rec.Version {
		rc.add(func(r *Report) { r.Unchanged++ })
		return
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return
	}

	opStart := time.Now()
	err := c.runOp(ctx, func() error { return c.writer.Upsert(rec) })
	c.collector.RecordUpsert(time.Since(opStart), err)
	if err != nil {
		rc.add(func(r *Report) { r.Failed++ })
		_ = c.recordFailure(sh, rec.ID, fmt.Errorf("reconcile upsert %s@%d: %w", rec.ID, rec.Version, err))
		return
	}

	c.ledger.set(rec.ID, rec.Version)
	c.clearFailures(sh, rec.ID)
	if tracked {
		rc.add(func(r *Report) { r.Updated++ })
	} else {
		rc.add(func(r *Report) { r.Inserted++ })
	}
}

// removeOrphans deletes index documents and ledger entries whose id the
// scan did not produce. Before removing, the store is re-read so an
// entry created mid-pass is not mistaken for an orphan.
func (c *Coordinator) removeOrphans(ctx context.Context, rc *reconcileCounters) {
	candidates := c.state.IDs()
	for _, id := range c.ledger.ids() {
		candidates = append(candidates, id)
	}

	for _, id := range candidates {
		if rc.wasSeen(id) {
			continue
		}

		sh := c.shard(id)
		sh.mu.Lock()

		if _, err := c.entries.Get(ctx, id); !errors.Is(err, store.ErrNotFound) {
			// Still (or again) in the store, or unreadable: not ours
			// to remove. A created-mid-pass entry reaches the index
			// through its own change notification.
			sh.mu.Unlock()
			rc.markSeen(id)
			continue
		}

		if err := c.limiter.Wait(ctx); err != nil {
			sh.mu.Unlock()
			return
		}

		opStart := time.Now()
		err := c.runOp(ctx, func() error { return c.writer.Remove(id) })
		c.collector.RecordRemove(time.Since(opStart), err)
		if err != nil {
			rc.add(func(r *Report) { r.Failed++ })
			_ = c.recordFailure(sh, id, fmt.Errorf("reconcile remove %s: %w", id, err))
			sh.mu.Unlock()
			continue
		}

		c.ledger.remove(id)
		c.clearFailures(sh, id)
		rc.markSeen(id)
		rc.add(func(r *Report) { r.Removed++ })
		sh.mu.Unlock()
	}
}
