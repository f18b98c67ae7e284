package snapshot

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/hupe1980/geodex/blobstore"
	"github.com/hupe1980/geodex/geo"
	"github.com/hupe1980/geodex/index"
	"github.com/hupe1980/geodex/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildIndex(t *testing.T, n int) *index.Index {
	t.Helper()

	idx := index.New()
	w := index.NewWriter(idx, index.WithBatchSize(1), index.WithCommitInterval(0))
	for i := 0; i < n; i++ {
		rec := &model.EntryRecord{
			ID:          model.ID(string(rune('a' + i))),
			Version:     model.Version(i + 1),
			Title:       "organic farm",
			Description: "vegetables and honey",
			Tags:        []string{"organic", "farm"},
			Category:    model.CategoryNonProfit,
			Position:    geo.Point{Lat: 48.1 + float64(i)*0.01, Lng: 11.5},
			AvgRating:   0.5,
			CreatedAt:   time.Unix(1700000000, 0),
			UpdatedAt:   time.Unix(1700000000, 0),
		}
		require.NoError(t, w.Upsert(rec))
	}
	require.NoError(t, w.Close())
	return idx
}

func TestSnapshot_RoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name string
		c    Compression
	}{
		{"none", CompressionNone},
		{"lz4", CompressionLZ4},
		{"zstd", CompressionZSTD},
	} {
		t.Run(tc.name, func(t *testing.T) {
			idx := buildIndex(t, 5)

			var buf bytes.Buffer
			require.NoError(t, Write(&buf, idx, WithCompression(tc.c)))

			restored, err := Read(&buf)
			require.NoError(t, err)

			assert.Equal(t, idx.Len(), restored.Len())
			assert.Equal(t, idx.IDs(), restored.IDs())
			for _, id := range idx.IDs() {
				v, ok := restored.Version(id)
				require.True(t, ok)
				want, _ := idx.Version(id)
				assert.Equal(t, want, v)
			}

			// Restored index must answer queries like the original.
			page, err := restored.Search(index.Query{Text: "organic", Limit: 10})
			require.NoError(t, err)
			assert.Equal(t, idx.Len(), page.Total)
		})
	}
}

func TestRead_RejectsGarbage(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("not a snapshot at all")))
	assert.ErrorIs(t, err, ErrBadSnapshot)

	_, err = Read(bytes.NewReader([]byte("short")))
	assert.ErrorIs(t, err, ErrBadSnapshot)
}

func TestSaveLoad_BlobStore(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewMemoryStore()
	idx := buildIndex(t, 3)

	require.NoError(t, Save(ctx, bs, "snapshots/latest", idx))

	restored, err := Load(ctx, bs, "snapshots/latest")
	require.NoError(t, err)
	assert.Equal(t, idx.IDs(), restored.IDs())
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(context.Background(), blobstore.NewMemoryStore(), "nope")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
