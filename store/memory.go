package store

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/geodex/model"
)

// MemoryStore is an in-memory EntryStore and ChangeFeed. It enforces
// the same invariants a relational backend would: ids are immutable,
// versions strictly increase, and change notifications fire only after
// the mutation is committed.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[model.ID]*model.EntryRecord

	subMu   sync.Mutex
	subs    map[int]*subscriber
	nextSub int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[model.ID]*model.EntryRecord),
		subs:    make(map[int]*subscriber),
	}
}

// Get implements EntryStore.
func (s *MemoryStore) Get(_ context.Context, id model.ID) (*model.EntryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

// ScanAll implements EntryStore. Records are yielded in id order from a
// point-in-time copy of the id list; each record is re-read at its
// current version.
func (s *MemoryStore) ScanAll(ctx context.Context) iter.Seq2[*model.EntryRecord, error] {
	return func(yield func(*model.EntryRecord, error) bool) {
		s.mu.RLock()
		ids := make([]model.ID, 0, len(s.entries))
		for id := range s.entries {
			ids = append(ids, id)
		}
		s.mu.RUnlock()
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			rec, err := s.Get(ctx, id)
			if err != nil {
				// Deleted mid-scan; reconciliation handles orphans.
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// Put creates or updates an entry and notifies subscribers. On create
// the version must be positive; on update it must exceed the stored
// version.
func (s *MemoryStore) Put(_ context.Context, rec *model.EntryRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	old, exists := s.entries[rec.ID]
	if rec.Version == 0 {
		s.mu.Unlock()
		return fmt.Errorf("put %s: version must be positive", rec.ID)
	}
	if exists && rec.Version <= old.Version {
		s.mu.Unlock()
		return fmt.Errorf("put %s: version %d not greater than %d", rec.ID, rec.Version, old.Version)
	}
	cp := *rec
	now := time.Now().UTC()
	if !exists {
		cp.CreatedAt = now
	} else {
		cp.CreatedAt = old.CreatedAt
	}
	cp.UpdatedAt = now
	s.entries[rec.ID] = &cp
	s.mu.Unlock()

	op := OpUpdate
	if !exists {
		op = OpCreate
	}
	s.publish(Change{ID: rec.ID, Version: rec.Version, Op: op})
	return nil
}

// Delete removes an entry and notifies subscribers. Deleting an unknown
// id is a no-op.
func (s *MemoryStore) Delete(_ context.Context, id model.ID) error {
	s.mu.Lock()
	old, exists := s.entries[id]
	if exists {
		delete(s.entries, id)
	}
	s.mu.Unlock()

	if exists {
		s.publish(Change{ID: id, Version: old.Version, Op: OpDelete})
	}
	return nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// subscriberBuffer is the per-subscriber notification backlog. A
// consumer that falls further behind loses notifications rather than
// blocking writers; reconciliation heals the gap.
const subscriberBuffer = 128

// subscriber guards its channel so sends and close never race. Sends
// are non-blocking, so the mutex is only ever held briefly.
type subscriber struct {
	mu     sync.Mutex
	ch     chan Change
	closed bool
}

func (sub *subscriber) send(c Change) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	select {
	case sub.ch <- c:
	default:
		// Backlog full; the next reconciliation pass covers the loss.
	}
}

func (sub *subscriber) close() {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}

// Subscribe implements ChangeFeed. Delivery is best effort: a
// subscriber that stops reading drops notifications once its backlog
// fills, it never blocks writers or other subscribers.
func (s *MemoryStore) Subscribe() (<-chan Change, func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	sub := &subscriber{ch: make(chan Change, subscriberBuffer)}
	s.subs[id] = sub
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
		sub.close()
	}
	return sub.ch, cancel
}

// publish fans a change out to all subscribers. The subscriber list is
// snapshotted so no send happens under subMu; cancel never waits on a
// publisher.
func (s *MemoryStore) publish(c Change) {
	s.subMu.Lock()
	subs := make([]*subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.subMu.Unlock()

	for _, sub := range subs {
		sub.send(c)
	}
}
