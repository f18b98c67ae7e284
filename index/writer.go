package index

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hupe1980/geodex/model"
)

const (
	// DefaultBatchSize is the number of buffered mutations that
	// triggers an automatic commit.
	DefaultBatchSize = 256

	// DefaultCommitInterval bounds how long a buffered mutation stays
	// invisible to readers.
	DefaultCommitInterval = 2 * time.Second
)

// WriterOption configures a Writer.
type WriterOption func(*writerOptions)

type writerOptions struct {
	batchSize      int
	commitInterval time.Duration
	logger         *slog.Logger
}

// WithBatchSize sets the buffered-mutation count that triggers an
// automatic commit. Values < 1 disable size-based auto-commit.
func WithBatchSize(n int) WriterOption {
	return func(o *writerOptions) { o.batchSize = n }
}

// WithCommitInterval sets the interval of the background commit loop.
// A non-positive value disables interval-based auto-commit.
func WithCommitInterval(d time.Duration) WriterOption {
	return func(o *writerOptions) { o.commitInterval = d }
}

// WithWriterLogger sets the structured logger. Nil keeps logging off.
func WithWriterLogger(l *slog.Logger) WriterOption {
	return func(o *writerOptions) { o.logger = l }
}

type pendingOp struct {
	doc    *Document // nil for removes
	remove bool
}

// Writer converts entry records into index documents and applies
// insert, update and delete mutations against the index. Mutations are
// buffered and become visible to readers on Commit; the writer commits
// automatically once the buffer reaches the configured batch size or
// the commit interval elapses, so a crash loses at most one uncommitted
// batch, which reconciliation heals.
//
// A Writer is safe for concurrent use, though callers are expected to
// serialize mutations per entry id (the coordinator guarantees this).
type Writer struct {
	idx    *Index
	logger *slog.Logger

	mu      sync.Mutex
	pending map[model.ID]pendingOp
	closed  bool

	batchSize      int
	commitInterval time.Duration
	stop           chan struct{}
	done           chan struct{}
}

// NewWriter creates a writer over idx and starts its background commit
// loop (unless the interval is disabled).
func NewWriter(idx *Index, opts ...WriterOption) *Writer {
	o := writerOptions{
		batchSize:      DefaultBatchSize,
		commitInterval: DefaultCommitInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	w := &Writer{
		idx:            idx,
		logger:         o.logger,
		pending:        make(map[model.ID]pendingOp),
		batchSize:      o.batchSize,
		commitInterval: o.commitInterval,
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}

	if w.commitInterval > 0 {
		go w.commitLoop()
	} else {
		close(w.done)
	}

	return w
}

// Upsert buffers a replace of the document for rec.ID. It is
// idempotent per (id, version): when the committed or buffered document
// already carries an equal or newer version the call is a no-op.
func (w *Writer) Upsert(rec *model.EntryRecord) error {
	if err := rec.Validate(); err != nil {
		return &WriteError{Op: "upsert", ID: string(rec.ID), cause: err}
	}
	doc := NewDocument(rec)

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return &WriteError{Op: "upsert", ID: string(rec.ID), cause: ErrClosed}
	}

	// Stale-write gate against both the committed state and the buffer.
	if v, ok := w.idx.Version(rec.ID); ok && v >= rec.Version {
		w.mu.Unlock()
		w.logger.Debug("skipping stale upsert",
			"id", rec.ID, "version", rec.Version, "indexed_version", v)
		return nil
	}
	if prev, ok := w.pending[rec.ID]; ok && !prev.remove && prev.doc.Version >= rec.Version {
		w.mu.Unlock()
		w.logger.Debug("skipping stale upsert",
			"id", rec.ID, "version", rec.Version, "buffered_version", prev.doc.Version)
		return nil
	}

	w.pending[rec.ID] = pendingOp{doc: doc}
	flush := w.batchSize > 0 && len(w.pending) >= w.batchSize
	w.mu.Unlock()

	if flush {
		return w.Commit()
	}
	return nil
}

// Remove buffers a delete of the document for id. Removing an unknown
// id is not an error.
func (w *Writer) Remove(id model.ID) error {
	if id == "" {
		return &WriteError{Op: "remove", cause: fmt.Errorf("empty id")}
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return &WriteError{Op: "remove", ID: string(id), cause: ErrClosed}
	}
	w.pending[id] = pendingOp{remove: true}
	flush := w.batchSize > 0 && len(w.pending) >= w.batchSize
	w.mu.Unlock()

	if flush {
		return w.Commit()
	}
	return nil
}

// Commit makes all buffered mutations visible to subsequent reads.
// Committing an empty buffer is a no-op.
func (w *Writer) Commit() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return &WriteError{Op: "commit", cause: ErrClosed}
	}
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return nil
	}
	batch := w.pending
	w.pending = make(map[model.ID]pendingOp)
	w.mu.Unlock()

	return w.applyBatch(batch)
}

func (w *Writer) applyBatch(batch map[model.ID]pendingOp) error {
	if len(batch) == 0 {
		return nil
	}

	w.idx.mu.Lock()
	if w.idx.closed {
		w.idx.mu.Unlock()
		return &WriteError{Op: "commit", cause: ErrClosed}
	}
	var applied, skipped, removed int
	for id, op := range batch {
		if op.remove {
			if w.idx.removeLocked(id) {
				removed++
			}
			continue
		}
		// Re-check the version gate at apply time: a concurrent
		// reconciliation batch may have committed a newer document
		// in between.
		if w.idx.upsertLocked(op.doc) {
			applied++
		} else {
			skipped++
		}
	}
	w.idx.mu.Unlock()

	w.logger.Debug("committed batch",
		"upserts", applied, "removes", removed, "stale_skipped", skipped)
	return nil
}

// Pending returns the number of buffered, not yet visible mutations.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Close commits outstanding mutations and stops the commit loop. The
// buffer is sealed before the final commit, so every mutation accepted
// before Close is either committed here or rejected with ErrClosed,
// never dropped.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	batch := w.pending
	w.pending = nil
	w.mu.Unlock()

	if w.commitInterval > 0 {
		close(w.stop)
		<-w.done
	}
	return w.applyBatch(batch)
}

func (w *Writer) commitLoop() {
	defer close(w.done)
	ticker := time.NewTicker(w.commitInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			// Close seals the buffer before stopping the loop; a tick
			// racing it sees ErrClosed, which is not a failure.
			if err := w.Commit(); err != nil && !errors.Is(err, ErrClosed) {
				w.logger.Error("periodic commit failed", "error", err)
			}
		case <-w.stop:
			return
		}
	}
}
