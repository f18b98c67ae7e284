// Package coordinator glues the relational entry store to the search
// index. It consumes the store's change feed, drives exactly one index
// mutation per committed store mutation, and reconciles the index
// against the store to heal drift after crashes.
//
// Conflicts are resolved by entry version, never by arrival order:
// the coordinator keeps a transient ledger of the last version indexed
// per id and skips writes the ledger already covers. Mutations for the
// same id are serialized (hash-sharded locks); mutations for distinct
// ids proceed concurrently up to a configurable bound.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/geodex/metrics"
	"github.com/hupe1980/geodex/model"
	"github.com/hupe1980/geodex/store"
)

const (
	// DefaultShards is the number of per-id serialization shards.
	DefaultShards = 16

	// DefaultOpTimeout bounds each individual index upsert or remove.
	DefaultOpTimeout = 5 * time.Second

	// DefaultMaxRetries bounds retries of a failed index write before
	// the failure counts against the entry.
	DefaultMaxRetries = 3

	// DefaultRetryBackoff is the initial retry delay; it doubles per
	// attempt.
	DefaultRetryBackoff = 50 * time.Millisecond

	// escalationThreshold is the number of consecutive failures for
	// one id after which the coordinator stops retrying and raises an
	// operator-visible escalation.
	escalationThreshold = 3
)

// ErrReconcileRunning is returned when a reconciliation pass is already
// in flight; at most one runs at a time.
var ErrReconcileRunning = errors.New("reconciliation already running")

// IndexWriter is the write surface of the index the coordinator drives.
// *index.Writer satisfies it.
type IndexWriter interface {
	Upsert(rec *model.EntryRecord) error
	Remove(id model.ID) error
	Commit() error
}

// IndexState is the read surface reconciliation compares against.
// *index.Index satisfies it.
type IndexState interface {
	IDs() []model.ID
	Version(id model.ID) (model.Version, bool)
}

// EscalateFunc is invoked when consecutive failures for one id exceed
// the escalation threshold. id and the last error are passed.
type EscalateFunc func(id model.ID, err error)

// Option configures a Coordinator.
type Option func(*options)

type options struct {
	shards         int
	opTimeout      time.Duration
	maxRetries     int
	retryBackoff   time.Duration
	reconcileLimit rate.Limit
	parallelism    int
	logger         *slog.Logger
	collector      metrics.Collector
	escalate       EscalateFunc
}

// WithShards sets the number of per-id serialization shards.
func WithShards(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.shards = n
		}
	}
}

// WithOpTimeout bounds each individual index upsert/remove. Timeouts
// are treated as retryable failures.
func WithOpTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.opTimeout = d
		}
	}
}

// WithMaxRetries bounds the write retries per operation.
func WithMaxRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// WithRetryBackoff sets the initial retry delay (doubled per attempt).
func WithRetryBackoff(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.retryBackoff = d
		}
	}
}

// WithReconcileRate throttles reconciliation index writes so a rebuild
// cannot starve live traffic. Default is unlimited.
func WithReconcileRate(limit rate.Limit) Option {
	return func(o *options) { o.reconcileLimit = limit }
}

// WithReconcileParallelism bounds concurrent per-record reconciliation
// work.
func WithReconcileParallelism(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.parallelism = n
		}
	}
}

// WithLogger sets the structured logger. Nil keeps logging off.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(c metrics.Collector) Option {
	return func(o *options) { o.collector = c }
}

// WithEscalateFunc sets the callback invoked on per-id failure
// escalation, in addition to the error log.
func WithEscalateFunc(fn EscalateFunc) Option {
	return func(o *options) { o.escalate = fn }
}

// shard carries the per-id serialization lock and the consecutive
// failure counters of the ids hashing onto it.
type shard struct {
	mu       sync.Mutex
	failures map[model.ID]int
}

// Coordinator keeps the index consistent with the entry store.
type Coordinator struct {
	entries store.EntryStore
	writer  IndexWriter
	state   IndexState

	ledger *ledger
	shards []*shard

	opTimeout    time.Duration
	maxRetries   int
	retryBackoff time.Duration
	parallelism  int
	limiter      *rate.Limiter

	logger    *slog.Logger
	collector metrics.Collector
	escalate  EscalateFunc

	reconcileMu sync.Mutex
	reconciling bool
}

// New creates a coordinator over the given store and index. The ledger
// is seeded lazily from the index during reconciliation; call Reconcile
// at startup to heal drift before serving traffic.
func New(entries store.EntryStore, writer IndexWriter, state IndexState, opts ...Option) *Coordinator {
	o := options{
		shards:         DefaultShards,
		opTimeout:      DefaultOpTimeout,
		maxRetries:     DefaultMaxRetries,
		retryBackoff:   DefaultRetryBackoff,
		reconcileLimit: rate.Inf,
		parallelism:    4,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	shards := make([]*shard, o.shards)
	for i := range shards {
		shards[i] = &shard{failures: make(map[model.ID]int)}
	}

	return &Coordinator{
		entries:      entries,
		writer:       writer,
		state:        state,
		ledger:       newLedger(),
		shards:       shards,
		opTimeout:    o.opTimeout,
		maxRetries:   o.maxRetries,
		retryBackoff: o.retryBackoff,
		parallelism:  o.parallelism,
		limiter:      rate.NewLimiter(o.reconcileLimit, 1),
		logger:       o.logger,
		collector:    metrics.OrNoop(o.collector),
		escalate:     o.escalate,
	}
}

func (c *Coordinator) shard(id model.ID) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return c.shards[h.Sum32()%uint32(len(c.shards))]
}

// Apply processes one committed store mutation. Mutations for the same
// id are serialized; concurrent calls for distinct ids proceed in
// parallel. A version older than the ledger's recorded version is
// skipped (last writer wins by version).
func (c *Coordinator) Apply(ctx context.Context, ch store.Change) error {
	sh := c.shard(ch.ID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return c.applyLocked(ctx, sh, ch)
}

func (c *Coordinator) applyLocked(ctx context.Context, sh *shard, ch store.Change) error {
	if ch.Op == store.OpDelete {
		start := time.Now()
		err := c.runOp(ctx, func() error { return c.writer.Remove(ch.ID) })
		c.collector.RecordRemove(time.Since(start), err)
		if err != nil {
			return c.recordFailure(sh, ch.ID, fmt.Errorf("remove %s: %w", ch.ID, err))
		}
		c.ledger.remove(ch.ID)
		c.clearFailures(sh, ch.ID)
		c.logger.Debug("removed entry from index", "id", ch.ID)
		return nil
	}

	if v, ok := c.ledger.get(ch.ID); ok && v >= ch.Version {
		c.collector.RecordStaleSkip()
		c.logger.Debug("skipping stale change",
			"id", ch.ID, "version", ch.Version, "indexed_version", v)
		return nil
	}

	rec, err := c.entries.Get(ctx, ch.ID)
	if errors.Is(err, store.ErrNotFound) {
		// Deleted between notification and read; the delete
		// notification will follow or already did.
		start := time.Now()
		err := c.runOp(ctx, func() error { return c.writer.Remove(ch.ID) })
		c.collector.RecordRemove(time.Since(start), err)
		if err != nil {
			return c.recordFailure(sh, ch.ID, fmt.Errorf("remove vanished %s: %w", ch.ID, err))
		}
		c.ledger.remove(ch.ID)
		c.clearFailures(sh, ch.ID)
		return nil
	}
	if err != nil {
		return c.recordFailure(sh, ch.ID, fmt.Errorf("read %s: %w", ch.ID, err))
	}

	// The store may already hold a newer version than the one
	// notified; index what was actually read.
	if v, ok := c.ledger.get(ch.ID); ok && v >= rec.Version {
		c.collector.RecordStaleSkip()
		return nil
	}

	start := time.Now()
	err = c.runOp(ctx, func() error { return c.writer.Upsert(rec) })
	c.collector.RecordUpsert(time.Since(start), err)
	if err != nil {
		return c.recordFailure(sh, ch.ID, fmt.Errorf("upsert %s@%d: %w", rec.ID, rec.Version, err))
	}

	c.ledger.set(rec.ID, rec.Version)
	c.clearFailures(sh, ch.ID)
	c.logger.Debug("indexed entry", "id", rec.ID, "version", rec.Version)
	return nil
}

// Run consumes the change feed until ctx is cancelled or the channel is
// closed. Changes are dispatched to per-shard workers, preserving
// per-id ordering while distinct ids proceed concurrently. Outstanding
// index writes are committed before Run returns.
func (c *Coordinator) Run(ctx context.Context, changes <-chan store.Change) error {
	lanes := make([]chan store.Change, len(c.shards))
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan store.Change, 64)
		wg.Add(1)
		go func(lane <-chan store.Change) {
			defer wg.Done()
			for ch := range lane {
				if err := c.Apply(ctx, ch); err != nil {
					c.logger.Error("failed to apply change",
						"id", ch.ID, "op", ch.Op, "error", err)
				}
			}
		}(lanes[i])
	}

	laneFor := func(id model.ID) chan<- store.Change {
		h := fnv.New32a()
		_, _ = h.Write([]byte(id))
		return lanes[h.Sum32()%uint32(len(lanes))]
	}

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
			break loop
		case ch, ok := <-changes:
			if !ok {
				break loop
			}
			laneFor(ch.ID) <- ch
		}
	}

	for _, lane := range lanes {
		close(lane)
	}
	wg.Wait()

	start := time.Now()
	err := c.writer.Commit()
	c.collector.RecordCommit(time.Since(start), err)
	if err != nil {
		c.logger.Error("final commit failed", "error", err)
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}

// runOp executes one index write bounded by the configured timeout,
// retrying with exponential backoff up to the retry budget. A timeout
// counts as a retryable failure, but the timed-out attempt is always
// waited out before the next one starts: at most one write per id is
// ever in flight, and an abandoned remove can never race a newer
// upsert.
func (c *Coordinator) runOp(ctx context.Context, op func() error) error {
	backoff := c.retryBackoff
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
		done := make(chan error, 1)
		go func() { done <- op() }()
		select {
		case err := <-done:
			cancel()
			if err == nil {
				return nil
			}
			lastErr = err
		case <-opCtx.Done():
			timeoutErr := opCtx.Err()
			cancel()
			// The attempt is still running; a late completion still
			// counts, and retrying before it finished would put two
			// writes for the same id in flight.
			if err := <-done; err == nil {
				return nil
			}
			lastErr = fmt.Errorf("index write: %w", timeoutErr)
			if ctx.Err() != nil {
				return lastErr
			}
		}
	}
	return lastErr
}

// recordFailure tracks consecutive failures per id and escalates once
// the threshold is reached instead of retrying indefinitely. Caller
// must hold the shard lock.
func (c *Coordinator) recordFailure(sh *shard, id model.ID, err error) error {
	sh.failures[id]++
	n := sh.failures[id]
	if n >= escalationThreshold {
		c.collector.RecordEscalation()
		c.logger.Error("escalating entry after consecutive failures",
			"id", id, "failures", n, "error", err)
		if c.escalate != nil {
			c.escalate(id, err)
		}
		sh.failures[id] = 0
	} else {
		c.logger.Warn("index write failed", "id", id, "failures", n, "error", err)
	}
	return err
}

func (c *Coordinator) clearFailures(sh *shard, id model.ID) {
	delete(sh.failures, id)
}

// ledger tracks the last version successfully handed to the index per
// entry id. It is transient: reconciliation rebuilds it from the store
// and the index.
type ledger struct {
	mu sync.RWMutex
	m  map[model.ID]model.Version
}

func newLedger() *ledger {
	return &ledger{m: make(map[model.ID]model.Version)}
}

func (l *ledger) get(id model.ID) (model.Version, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.m[id]
	return v, ok
}

func (l *ledger) set(id model.ID, v model.Version) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.m[id] = v
}

func (l *ledger) remove(id model.ID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.m, id)
}

func (l *ledger) ids() []model.ID {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]model.ID, 0, len(l.m))
	for id := range l.m {
		ids = append(ids, id)
	}
	return ids
}
