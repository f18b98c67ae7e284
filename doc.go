// Package geodex provides an embedded search engine for geolocated
// directory entries, kept consistent with a relational entry store.
//
// The engine maintains a denormalized full-text and geospatial index
// over entries. Writes arrive as change notifications from the entry
// store, are version gated so stale or duplicate notifications are
// harmless, and become visible to searches in batched commits. A
// reconciliation pass heals any drift between index and store, so the
// store remains the single source of truth.
//
// # Quick Start
//
//	ctx := context.Background()
//
//	entries := store.NewMemoryStore()
//	eng, err := geodex.Open(ctx, entries)
//	if err != nil {
//	    panic(err)
//	}
//	defer eng.Close()
//
//	// Heal any drift, then follow the change feed.
//	if _, err := eng.Reconcile(ctx); err != nil {
//	    panic(err)
//	}
//	go eng.Run(ctx)
//
//	page, err := eng.Search(ctx, index.Query{
//	    Text:  "organic farm",
//	    Tags:  []string{"csa"},
//	    BBox:  &geo.BoundingBox{SouthWest: sw, NorthEast: ne},
//	    Limit: 20,
//	})
//
// # Snapshots
//
// With a blob store configured the index can be persisted and loaded
// across restarts:
//
//	bs, _ := blobstore.NewLocalStore("./data")
//	eng, err := geodex.Open(ctx, entries,
//	    geodex.WithSnapshotStore(bs, "snapshots/index"),
//	)
//
// Open restores the most recent snapshot when one exists; the
// following Reconcile brings the restored index back in line with the
// store.
package geodex
