package index

import (
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/geodex/model"
)

// Index is the shared in-memory index state. It owns a committed view
// that readers query and that the Writer mutates batch-wise under the
// write lock. All methods are safe for concurrent use.
type Index struct {
	mu     sync.RWMutex
	closed bool

	nextDoc uint32
	byID    map[model.ID]uint32
	docs    map[uint32]*Document

	// Facet posting bitmaps over internal doc ids.
	alive      *roaring.Bitmap
	tags       map[string]*roaring.Bitmap
	categories map[model.Category]*roaring.Bitmap

	// Inverted text index: term -> doc id -> term frequency.
	terms    map[string]map[uint32]uint32
	totalLen int64
}

// New creates an empty index.
func New() *Index {
	return &Index{
		byID:       make(map[model.ID]uint32),
		docs:       make(map[uint32]*Document),
		alive:      roaring.New(),
		tags:       make(map[string]*roaring.Bitmap),
		categories: make(map[model.Category]*roaring.Bitmap),
		terms:      make(map[string]map[uint32]uint32),
	}
}

// Close marks the index closed. Subsequent reads and writes fail with
// ErrClosed.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.closed = true
	return nil
}

// Len returns the number of committed documents.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.byID)
}

// Version returns the committed version for the given entry id.
func (idx *Index) Version(id model.ID) (model.Version, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	doc, ok := idx.docLocked(id)
	if !ok {
		return 0, false
	}
	return doc.Version, true
}

// IDs returns all committed entry ids in ascending order. Used by
// reconciliation to detect orphaned documents.
func (idx *Index) IDs() []model.ID {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	ids := make([]model.ID, 0, len(idx.byID))
	for id := range idx.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Documents returns a copy of all committed documents. The documents
// themselves are shared and must not be mutated; the index never
// modifies a committed document in place.
func (idx *Index) Documents() []*Document {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	docs := make([]*Document, 0, len(idx.docs))
	it := idx.alive.Iterator()
	for it.HasNext() {
		docs = append(docs, idx.docs[it.Next()])
	}
	return docs
}

// Restore replaces the entire committed state with the given documents.
// Used when loading a snapshot; the caller reconciles any drift
// afterwards.
func (idx *Index) Restore(docs []*Document) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return ErrClosed
	}

	idx.nextDoc = 0
	idx.byID = make(map[model.ID]uint32, len(docs))
	idx.docs = make(map[uint32]*Document, len(docs))
	idx.alive.Clear()
	idx.tags = make(map[string]*roaring.Bitmap)
	idx.categories = make(map[model.Category]*roaring.Bitmap)
	idx.terms = make(map[string]map[uint32]uint32)
	idx.totalLen = 0

	for _, doc := range docs {
		// A corrupt snapshot may repeat an id; the last document wins,
		// never a ghost of both.
		if _, ok := idx.byID[doc.ID]; ok {
			idx.removeLocked(doc.ID)
		}
		idx.addLocked(doc)
	}
	return nil
}

func (idx *Index) docLocked(id model.ID) (*Document, bool) {
	docID, ok := idx.byID[id]
	if !ok {
		return nil, false
	}
	return idx.docs[docID], true
}

// upsertLocked replaces the document for doc.ID. It returns false when
// the committed document already carries an equal or newer version, in
// which case the index is left untouched (last writer wins by version,
// not by arrival order).
func (idx *Index) upsertLocked(doc *Document) bool {
	if old, ok := idx.docLocked(doc.ID); ok {
		if old.Version >= doc.Version {
			return false
		}
		idx.removeLocked(doc.ID)
	}
	idx.addLocked(doc)
	return true
}

func (idx *Index) addLocked(doc *Document) {
	docID := idx.nextDoc
	idx.nextDoc++

	idx.byID[doc.ID] = docID
	idx.docs[docID] = doc
	idx.alive.Add(docID)

	for _, tag := range doc.Tags {
		bm, ok := idx.tags[tag]
		if !ok {
			bm = roaring.New()
			idx.tags[tag] = bm
		}
		bm.Add(docID)
	}

	if doc.Category != "" {
		bm, ok := idx.categories[doc.Category]
		if !ok {
			bm = roaring.New()
			idx.categories[doc.Category] = bm
		}
		bm.Add(docID)
	}

	for term, freq := range doc.Terms {
		postings, ok := idx.terms[term]
		if !ok {
			postings = make(map[uint32]uint32)
			idx.terms[term] = postings
		}
		postings[docID] = uint32(freq)
	}
	idx.totalLen += int64(doc.length())
}

// removeLocked deletes the document for id if present. Removing an
// unknown id is a no-op.
func (idx *Index) removeLocked(id model.ID) bool {
	docID, ok := idx.byID[id]
	if !ok {
		return false
	}
	doc := idx.docs[docID]

	delete(idx.byID, id)
	delete(idx.docs, docID)
	idx.alive.Remove(docID)

	for _, tag := range doc.Tags {
		if bm, ok := idx.tags[tag]; ok {
			bm.Remove(docID)
			if bm.IsEmpty() {
				delete(idx.tags, tag)
			}
		}
	}

	if doc.Category != "" {
		if bm, ok := idx.categories[doc.Category]; ok {
			bm.Remove(docID)
			if bm.IsEmpty() {
				delete(idx.categories, doc.Category)
			}
		}
	}

	for term := range doc.Terms {
		if postings, ok := idx.terms[term]; ok {
			delete(postings, docID)
			if len(postings) == 0 {
				delete(idx.terms, term)
			}
		}
	}
	idx.totalLen -= int64(doc.length())
	return true
}
