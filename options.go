package geodex

import (
	"log/slog"
	"time"

	"github.com/hupe1980/geodex/blobstore"
	"github.com/hupe1980/geodex/coordinator"
	"github.com/hupe1980/geodex/index"
	"github.com/hupe1980/geodex/index/snapshot"
	"github.com/hupe1980/geodex/metrics"
)

type options struct {
	logger          *Logger
	metrics         metrics.Collector
	batchSize       int
	commitInterval  time.Duration
	coordinatorOpts []coordinator.Option

	snapshotStore       blobstore.Store
	snapshotName        string
	snapshotCompression snapshot.Compression
}

// Option configures engine constructor behavior.
type Option func(*options)

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := geodex.NewJSONLogger(slog.LevelInfo)
//	eng, _ := geodex.Open(ctx, entries, geodex.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetrics configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
func WithMetrics(c metrics.Collector) Option {
	return func(o *options) {
		o.metrics = metrics.OrNoop(c)
	}
}

// WithBatchSize sets the number of buffered index operations that
// forces a commit.
func WithBatchSize(n int) Option {
	return func(o *options) {
		o.batchSize = n
	}
}

// WithCommitInterval sets the maximum time a buffered index operation
// waits before it becomes visible to searches. Zero disables the
// time-based commit trigger.
func WithCommitInterval(d time.Duration) Option {
	return func(o *options) {
		o.commitInterval = d
	}
}

// WithCoordinatorOptions forwards options to the change coordinator,
// such as coordinator.WithOpTimeout or coordinator.WithEscalateFunc.
func WithCoordinatorOptions(opts ...coordinator.Option) Option {
	return func(o *options) {
		o.coordinatorOpts = append(o.coordinatorOpts, opts...)
	}
}

// WithSnapshotStore configures where index snapshots are persisted
// and the blob name they are stored under.
func WithSnapshotStore(bs blobstore.Store, name string) Option {
	return func(o *options) {
		o.snapshotStore = bs
		o.snapshotName = name
	}
}

// WithSnapshotCompression selects the snapshot payload codec.
// The default is LZ4.
func WithSnapshotCompression(c snapshot.Compression) Option {
	return func(o *options) {
		o.snapshotCompression = c
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:              NoopLogger(),
		metrics:             metrics.Noop{},
		batchSize:           index.DefaultBatchSize,
		commitInterval:      index.DefaultCommitInterval,
		snapshotCompression: snapshot.CompressionLZ4,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
