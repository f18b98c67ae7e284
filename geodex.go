package geodex

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hupe1980/geodex/blobstore"
	"github.com/hupe1980/geodex/coordinator"
	"github.com/hupe1980/geodex/index"
	"github.com/hupe1980/geodex/index/snapshot"
	"github.com/hupe1980/geodex/metrics"
	"github.com/hupe1980/geodex/store"
)

// ErrNoSnapshotStore is returned by snapshot operations when no blob
// store was configured via WithSnapshotStore.
var ErrNoSnapshotStore = errors.New("no snapshot store configured")

// ErrNoChangeFeed is returned by Run when the entry store does not
// publish change notifications.
var ErrNoChangeFeed = errors.New("entry store does not provide a change feed")

// Engine ties an entry store, the search index, its batching writer
// and the change coordinator together behind a single handle.
type Engine struct {
	entries store.EntryStore
	idx     *index.Index
	writer  *index.Writer
	coord   *coordinator.Coordinator
	logger  *Logger
	metrics metrics.Collector
	opts    options

	closeOnce sync.Once
	closeErr  error
}

// New creates an engine over an empty index. The index is populated
// by following the store's change feed (Run) or by a reconciliation
// pass (Reconcile).
func New(entries store.EntryStore, optFns ...Option) (*Engine, error) {
	o := applyOptions(optFns)
	return newEngine(entries, index.New(), o), nil
}

// Open creates an engine, restoring the index from the configured
// snapshot blob when one exists. A missing snapshot is not an error;
// the engine starts empty. Callers should follow Open with Reconcile
// to heal drift accumulated after the snapshot was taken.
func Open(ctx context.Context, entries store.EntryStore, optFns ...Option) (*Engine, error) {
	o := applyOptions(optFns)

	idx := index.New()
	if o.snapshotStore != nil {
		restored, err := snapshot.Load(ctx, o.snapshotStore, o.snapshotName)
		switch {
		case err == nil:
			idx = restored
			o.logger.LogSnapshotLoad(ctx, o.snapshotName, idx.Len(), nil)
		case errors.Is(err, blobstore.ErrNotFound):
			// No snapshot yet, start empty.
		default:
			o.logger.LogSnapshotLoad(ctx, o.snapshotName, 0, err)
			return nil, translateError(err)
		}
	}

	return newEngine(entries, idx, o), nil
}

func newEngine(entries store.EntryStore, idx *index.Index, o options) *Engine {
	writer := index.NewWriter(idx,
		index.WithBatchSize(o.batchSize),
		index.WithCommitInterval(o.commitInterval),
		index.WithWriterLogger(o.logger.Logger),
	)

	coordOpts := append([]coordinator.Option{
		coordinator.WithLogger(o.logger.Logger),
		coordinator.WithMetrics(o.metrics),
	}, o.coordinatorOpts...)

	return &Engine{
		entries: entries,
		idx:     idx,
		writer:  writer,
		coord:   coordinator.New(entries, writer, idx, coordOpts...),
		logger:  o.logger,
		metrics: o.metrics,
		opts:    o,
	}
}

// Search runs a query against the committed index state.
func (e *Engine) Search(ctx context.Context, q index.Query) (*index.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	page, err := e.idx.Search(q)
	took := time.Since(start)

	e.metrics.RecordSearch(took, err)
	if err != nil {
		e.logger.LogSearch(ctx, q.Text, 0, 0, took, err)
		return nil, translateError(err)
	}
	e.logger.LogSearch(ctx, q.Text, len(page.Hits), page.Total, took, nil)
	return page, nil
}

// Apply indexes a single change notification. Notifications may
// arrive out of order or duplicated; version gating makes them
// idempotent.
func (e *Engine) Apply(ctx context.Context, ch store.Change) error {
	return translateError(e.coord.Apply(ctx, ch))
}

// Run subscribes to the store's change feed and applies notifications
// until ctx is cancelled. It returns ErrNoChangeFeed when the entry
// store cannot publish changes.
func (e *Engine) Run(ctx context.Context) error {
	feed, ok := e.entries.(store.ChangeFeed)
	if !ok {
		return ErrNoChangeFeed
	}

	changes, cancel := feed.Subscribe()
	defer cancel()

	return translateError(e.coord.Run(ctx, changes))
}

// Reconcile scans the entry store and repairs any drift between store
// and index. Only one pass runs at a time.
func (e *Engine) Reconcile(ctx context.Context) (*coordinator.Report, error) {
	report, err := e.coord.Reconcile(ctx)
	if report != nil {
		e.logger.LogReconcile(ctx, report.String(), err)
	}
	return report, translateError(err)
}

// Flush commits all buffered index operations, making them visible to
// searches immediately.
func (e *Engine) Flush() error {
	return translateError(e.writer.Commit())
}

// SaveSnapshot persists the committed index state to the configured
// snapshot blob. Buffered operations are committed first.
func (e *Engine) SaveSnapshot(ctx context.Context) error {
	if e.opts.snapshotStore == nil {
		return ErrNoSnapshotStore
	}
	if err := e.writer.Commit(); err != nil {
		return translateError(err)
	}

	err := snapshot.Save(ctx, e.opts.snapshotStore, e.opts.snapshotName, e.idx,
		snapshot.WithCompression(e.opts.snapshotCompression))
	e.logger.LogSnapshotSave(ctx, e.opts.snapshotName, e.idx.Len(), err)
	return translateError(err)
}

// Len returns the number of committed documents in the index.
func (e *Engine) Len() int {
	return e.idx.Len()
}

// Close commits buffered operations and releases the index. The
// engine must not be used afterwards.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		if err := e.writer.Close(); err != nil {
			e.closeErr = translateError(err)
		}
		if err := e.idx.Close(); err != nil && e.closeErr == nil {
			e.closeErr = translateError(err)
		}
	})
	return e.closeErr
}
