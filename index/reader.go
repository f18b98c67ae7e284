package index

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
)

// Search compiles the query into facet-bitmap prefilters and geo/rating
// predicates, scores the surviving candidates, and returns one stable
// page of the ranked result list.
//
// Filters narrow the candidate set before ranking and pagination, so a
// page is only short when the overall result list is exhausted. A query
// either fully succeeds or fails; no partial results are returned.
func (idx *Index) Search(q Query) (*Page, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	terms, tags := q.normalize()

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, &ReadError{cause: ErrClosed}
	}

	emptyPage := &Page{Offset: q.Offset, Limit: q.Limit}

	// Facet prefilters: every tag and the category must have a posting
	// bitmap, otherwise nothing can match.
	cand := idx.alive.Clone()
	for _, tag := range tags {
		bm, ok := idx.tags[tag]
		if !ok {
			return emptyPage, nil
		}
		cand.And(bm)
	}
	if q.Category != "" {
		bm, ok := idx.categories[q.Category]
		if !ok {
			return emptyPage, nil
		}
		cand.And(bm)
	}
	if len(q.IDs) > 0 {
		idBM := roaring.New()
		for _, id := range q.IDs {
			if docID, ok := idx.byID[id]; ok {
				idBM.Add(docID)
			}
		}
		cand.And(idBM)
	}
	if cand.IsEmpty() {
		return emptyPage, nil
	}

	// With free text, relevance scoring shrinks the candidate set to
	// documents matching at least one term. Without it, all candidates
	// survive and ranking falls back to rating order.
	var scores map[uint32]float64
	if len(terms) > 0 {
		scores = idx.scoreLocked(terms, cand)
		if len(scores) == 0 {
			return emptyPage, nil
		}
	}

	hits := make([]Hit, 0, cand.GetCardinality())
	appendHit := func(docID uint32, raw float64) {
		doc := idx.docs[docID]
		if q.BBox != nil && !q.BBox.Contains(doc.Position) {
			return
		}
		if q.ExcludeBBox != nil && q.ExcludeBBox.Contains(doc.Position) {
			return
		}
		if q.MinRating != nil && doc.Rating < *q.MinRating {
			return
		}
		var score float64
		if len(terms) > 0 {
			score = boostedScore(raw, doc.Rating)
		}
		hits = append(hits, Hit{ID: doc.ID, Score: score, Rating: doc.Rating})
	}

	if scores != nil {
		for docID, raw := range scores {
			appendHit(docID, raw)
		}
	} else {
		it := cand.Iterator()
		for it.HasNext() {
			appendHit(it.Next(), 0)
		}
	}

	sort.Slice(hits, func(i, j int) bool { return CompareHits(hits[i], hits[j]) < 0 })

	total := len(hits)
	lo := q.Offset
	if lo > total {
		lo = total
	}
	hi := lo + q.Limit
	if hi > total {
		hi = total
	}

	return &Page{
		Hits:   hits[lo:hi:hi],
		Total:  total,
		Offset: q.Offset,
		Limit:  q.Limit,
	}, nil
}

// scoreLocked accumulates BM25 scores for all candidate documents
// matching at least one term. Caller must hold the read lock.
func (idx *Index) scoreLocked(terms []string, cand *roaring.Bitmap) map[uint32]float64 {
	docCount := len(idx.docs)
	if docCount == 0 {
		return nil
	}
	avgDocLen := float64(idx.totalLen) / float64(docCount)
	if avgDocLen <= 0 {
		avgDocLen = 1
	}

	scores := make(map[uint32]float64)
	for _, term := range terms {
		postings, ok := idx.terms[term]
		if !ok {
			continue
		}
		df := len(postings)
		for docID, tf := range postings {
			if !cand.Contains(docID) {
				continue
			}
			docLen := idx.docs[docID].length()
			scores[docID] += bm25Score(int(tf), docLen, df, docCount, avgDocLen)
		}
	}
	return scores
}
