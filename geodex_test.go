package geodex

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hupe1980/geodex/blobstore"
	"github.com/hupe1980/geodex/geo"
	"github.com/hupe1980/geodex/index"
	"github.com/hupe1980/geodex/model"
	"github.com/hupe1980/geodex/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine(t *testing.T, entries store.EntryStore, opts ...Option) *Engine {
	t.Helper()

	opts = append([]Option{
		WithBatchSize(1),
		WithCommitInterval(0),
	}, opts...)
	eng, err := New(entries, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func putEntry(t *testing.T, entries *store.MemoryStore, id string, version uint64, title string, tags []string, lat, lng float64) *model.EntryRecord {
	t.Helper()

	rec := &model.EntryRecord{
		ID:          model.ID(id),
		Version:     model.Version(version),
		Title:       title,
		Description: "a local initiative",
		Tags:        tags,
		Category:    model.CategoryNonProfit,
		Position:    geo.Point{Lat: lat, Lng: lng},
	}
	require.NoError(t, entries.Put(context.Background(), rec))
	return rec
}

func TestEngine_ApplyAndSearch(t *testing.T) {
	ctx := context.Background()
	entries := store.NewMemoryStore()
	eng := testEngine(t, entries)

	putEntry(t, entries, "e-1", 1, "organic farm shop", []string{"organic"}, 48.13, 11.58)
	putEntry(t, entries, "e-2", 1, "bike repair cafe", []string{"repair"}, 48.14, 11.56)

	for _, id := range []string{"e-1", "e-2"} {
		require.NoError(t, eng.Apply(ctx, store.Change{ID: model.ID(id), Version: 1, Op: store.OpCreate}))
	}
	require.NoError(t, eng.Flush())

	page, err := eng.Search(ctx, index.Query{Text: "organic", Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Hits, 1)
	assert.Equal(t, model.ID("e-1"), page.Hits[0].ID)

	page, err = eng.Search(ctx, index.Query{Tags: []string{"repair"}, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Hits, 1)
	assert.Equal(t, model.ID("e-2"), page.Hits[0].ID)

	assert.Equal(t, 2, eng.Len())
}

func TestEngine_SearchInvalidQuery(t *testing.T) {
	eng := testEngine(t, store.NewMemoryStore())

	_, err := eng.Search(context.Background(), index.Query{Limit: 0})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestEngine_RunFollowsChangeFeed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	entries := store.NewMemoryStore()
	eng := testEngine(t, entries)

	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	// Give the subscription a moment to attach.
	time.Sleep(20 * time.Millisecond)

	putEntry(t, entries, "e-1", 1, "community garden", []string{"garden"}, 52.52, 13.40)

	require.Eventually(t, func() bool {
		page, err := eng.Search(ctx, index.Query{Text: "garden", Limit: 10})
		return err == nil && page.Total == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestEngine_ReconcilePopulatesEmptyIndex(t *testing.T) {
	ctx := context.Background()
	entries := store.NewMemoryStore()
	for i := 0; i < 5; i++ {
		putEntry(t, entries, fmt.Sprintf("e-%d", i), 1, "repair cafe", []string{"repair"}, 48.0, 11.0)
	}

	eng := testEngine(t, entries)

	report, err := eng.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Inserted)
	assert.Equal(t, 5, eng.Len())
}

func TestEngine_SnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewMemoryStore()
	entries := store.NewMemoryStore()
	putEntry(t, entries, "e-1", 3, "zero waste store", []string{"zero-waste"}, 50.94, 6.96)

	eng := testEngine(t, entries, WithSnapshotStore(bs, "snapshots/index"))
	_, err := eng.Reconcile(ctx)
	require.NoError(t, err)
	require.NoError(t, eng.SaveSnapshot(ctx))
	require.NoError(t, eng.Close())

	restored, err := Open(ctx, entries,
		WithBatchSize(1),
		WithCommitInterval(0),
		WithSnapshotStore(bs, "snapshots/index"),
	)
	require.NoError(t, err)
	defer func() { _ = restored.Close() }()

	assert.Equal(t, 1, restored.Len())

	// Snapshot-restored versions must gate reconciliation writes.
	report, err := restored.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Unchanged)

	page, err := restored.Search(ctx, index.Query{Text: "waste", Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Hits, 1)
	assert.Equal(t, model.ID("e-1"), page.Hits[0].ID)
}

func TestEngine_SaveSnapshotWithoutStore(t *testing.T) {
	eng := testEngine(t, store.NewMemoryStore())

	err := eng.SaveSnapshot(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshotStore)
}

func TestOpen_MissingSnapshotStartsEmpty(t *testing.T) {
	ctx := context.Background()
	eng, err := Open(ctx, store.NewMemoryStore(),
		WithSnapshotStore(blobstore.NewMemoryStore(), "snapshots/index"),
	)
	require.NoError(t, err)
	defer func() { _ = eng.Close() }()

	assert.Equal(t, 0, eng.Len())
}

func TestEngine_CloseIsIdempotent(t *testing.T) {
	eng := testEngine(t, store.NewMemoryStore())

	require.NoError(t, eng.Close())
	require.NoError(t, eng.Close())

	_, err := eng.Search(context.Background(), index.Query{Text: "x", Limit: 1})
	assert.ErrorIs(t, err, ErrClosed)
}
