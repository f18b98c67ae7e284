package snapshot

import (
	"context"

	"github.com/hupe1980/geodex/blobstore"
	"github.com/hupe1980/geodex/index"
)

// Save writes a snapshot of the index to the blob store under name.
// On failure the pending blob is discarded, never half committed.
func Save(ctx context.Context, bs blobstore.Store, name string, idx *index.Index, opts ...Option) error {
	w, err := bs.Create(ctx, name)
	if err != nil {
		return err
	}
	if err := Write(w, idx, opts...); err != nil {
		_ = blobstore.Discard(w)
		return err
	}
	return w.Close()
}

// Load rebuilds an index from the named snapshot blob.
// It returns blobstore.ErrNotFound when no such snapshot exists.
func Load(ctx context.Context, bs blobstore.Store, name string) (*index.Index, error) {
	r, err := bs.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return Read(r)
}
