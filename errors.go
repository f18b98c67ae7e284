package geodex

import (
	"errors"
	"fmt"

	"github.com/hupe1980/geodex/blobstore"
	"github.com/hupe1980/geodex/index"
	"github.com/hupe1980/geodex/store"
)

var (
	// ErrNotFound is returned when an entry or snapshot is not found.
	ErrNotFound = errors.New("not found")

	// ErrClosed is returned when the engine has been closed.
	ErrClosed = errors.New("engine closed")

	// ErrInvalidQuery is returned for malformed search queries.
	// Use errors.As with *index.InvalidQueryError for details.
	ErrInvalidQuery = index.ErrInvalidQuery
)

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Not found unification.
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if errors.Is(err, blobstore.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	if errors.Is(err, index.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}

	return err
}
