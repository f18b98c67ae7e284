package coordinator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/geodex/index"
	"github.com/hupe1980/geodex/model"
	"github.com/hupe1980/geodex/store"
	"golang.org/x/time/rate"
)

func TestReconcile_HealsCrashDrift(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Store holds ten entries.
	for i := 0; i < 10; i++ {
		require.NoError(t, f.store.Put(ctx, rec(fmt.Sprintf("e-%d", i), 2)))
	}

	// Simulated crash state: three entries never reached the index,
	// one is indexed at a stale version, six are current.
	for i := 3; i < 10; i++ {
		version := model.Version(2)
		if i == 3 {
			version = 1 // stale
		}
		require.NoError(t, f.w.Upsert(rec(fmt.Sprintf("e-%d", i), version)))
	}
	require.NoError(t, f.w.Commit())
	require.Equal(t, 7, f.idx.Len())

	rep, err := f.coord.Reconcile(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, rep.Inserted)
	assert.Equal(t, 1, rep.Updated)
	assert.Equal(t, 6, rep.Unchanged)
	assert.Zero(t, rep.Removed)
	assert.Zero(t, rep.Failed)

	// Index now matches the store exactly.
	assert.Equal(t, 10, f.idx.Len())
	for i := 0; i < 10; i++ {
		v, ok := f.idx.Version(model.ID(fmt.Sprintf("e-%d", i)))
		require.True(t, ok)
		assert.Equal(t, model.Version(2), v)
	}
}

func TestReconcile_RemovesOrphans(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.store.Put(ctx, rec("kept", 1)))
	require.NoError(t, f.w.Upsert(rec("kept", 1)))
	require.NoError(t, f.w.Upsert(rec("orphan", 1)))
	require.NoError(t, f.w.Commit())

	rep, err := f.coord.Reconcile(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Removed)
	assert.Equal(t, 1, rep.Unchanged)
	_, ok := f.idx.Version("orphan")
	assert.False(t, ok)
	_, ok = f.idx.Version("kept")
	assert.True(t, ok)
}

func TestReconcile_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, f.store.Put(ctx, rec(fmt.Sprintf("e-%d", i), 1)))
	}

	rep, err := f.coord.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, rep.Inserted)

	rep, err = f.coord.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Inserted)
	assert.Zero(t, rep.Updated)
	assert.Equal(t, 5, rep.Unchanged)
}

func TestReconcile_EmptyStoreEmptiesIndex(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.w.Upsert(rec("stray-1", 1)))
	require.NoError(t, f.w.Upsert(rec("stray-2", 1)))
	require.NoError(t, f.w.Commit())

	rep, err := f.coord.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Removed)
	assert.Zero(t, f.idx.Len())
}

func TestReconcile_SkipsFailedRecordsWithoutAborting(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	idx := index.New()
	w := index.NewWriter(idx, index.WithBatchSize(1), index.WithCommitInterval(0))
	defer w.Close()

	// First write fails once; retries are disabled, so exactly one
	// record is reported failed while the rest go through.
	fw := &failingWriter{failures: 1, fallback: w}
	coord := New(st, fw, idx,
		WithMaxRetries(0),
		WithRetryBackoff(time.Millisecond),
		WithOpTimeout(time.Second),
		WithReconcileParallelism(1),
	)

	for i := 0; i < 4; i++ {
		require.NoError(t, st.Put(ctx, rec(fmt.Sprintf("e-%d", i), 1)))
	}

	rep, err := coord.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 3, rep.Inserted)
	assert.Equal(t, 3, idx.Len())
}

func TestReconcile_SeedsLedgerFromLoadedIndex(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.store.Put(ctx, rec("a", 4)))

	// The index already holds the document (e.g. restored from a
	// snapshot) but this coordinator never saw it: no rewrite.
	require.NoError(t, f.w.Upsert(rec("a", 4)))
	require.NoError(t, f.w.Commit())

	rep, err := f.coord.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Unchanged)
	assert.Zero(t, rep.Inserted)
	assert.Zero(t, rep.Updated)
}

func TestReconcile_ThrottledStillCompletes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithReconcileRate(rate.Limit(1000)))

	for i := 0; i < 5; i++ {
		require.NoError(t, f.store.Put(ctx, rec(fmt.Sprintf("e-%d", i), 1)))
	}

	rep, err := f.coord.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, rep.Inserted)
}
