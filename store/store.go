// Package store defines the engine's view of the relational entry
// store. The store owns the entries and is the source of truth; the
// search index only ever holds a derived copy.
//
// The package also ships MemoryStore, a complete in-memory
// implementation used for tests and for embedding without an external
// database.
package store

import (
	"context"
	"errors"
	"iter"

	"github.com/hupe1980/geodex/model"
)

// ErrNotFound is returned when an entry id is unknown to the store.
var ErrNotFound = errors.New("entry not found")

// Op is the kind of a committed store mutation.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change is one committed store mutation, delivered after the
// transaction committed. Delivery order across distinct ids is not
// guaranteed; consumers resolve conflicts by version.
type Change struct {
	ID      model.ID
	Version model.Version
	Op      Op
}

// EntryStore is the read surface the consistency coordinator needs: a
// point read for processing change notifications and a full scan for
// reconciliation.
type EntryStore interface {
	// Get returns the current committed record for id, or ErrNotFound.
	Get(ctx context.Context, id model.ID) (*model.EntryRecord, error)

	// ScanAll iterates over all committed records. The iteration takes
	// no global lock; records mutated mid-scan may appear at either
	// version, which reconciliation tolerates by comparing versions.
	ScanAll(ctx context.Context) iter.Seq2[*model.EntryRecord, error]
}

// ChangeFeed delivers committed mutations to a consumer.
type ChangeFeed interface {
	// Subscribe registers a consumer. The returned cancel function
	// unregisters it and closes the channel.
	Subscribe() (<-chan Change, func())
}
