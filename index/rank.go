package index

import (
	"math"

	"github.com/hupe1980/geodex/model"
)

// BM25 parameters (conventional defaults).
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Hit is one ranked search result.
type Hit struct {
	ID     model.ID
	Score  float64
	Rating float64
}

// Page is a stable slice of the ranked result list. Total is the full
// match count regardless of pagination, for result-count display.
type Page struct {
	Hits   []Hit
	Total  int
	Offset int
	Limit  int
}

// CompareHits is the ranking comparator: score descending, then rating
// descending, then id ascending. It is total, so repeated queries over
// the same index state order results identically, which pagination
// relies on.
func CompareHits(a, b Hit) int {
	switch {
	case a.Score > b.Score:
		return -1
	case a.Score < b.Score:
		return 1
	}
	switch {
	case a.Rating > b.Rating:
		return -1
	case a.Rating < b.Rating:
		return 1
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

// bm25Score computes one term's contribution for a document.
func bm25Score(tf, docLen, df, docCount int, avgDocLen float64) float64 {
	if tf == 0 || df == 0 || docCount == 0 {
		return 0
	}
	idf := math.Log(1 + (float64(docCount)-float64(df)+0.5)/(float64(df)+0.5))
	norm := 1 - bm25B + bm25B*(float64(docLen)/avgDocLen)
	return idf * (float64(tf) * (bm25K1 + 1)) / (float64(tf) + bm25K1*norm)
}

// ratingBoost maps an average rating to a multiplicative score boost.
// Negative ratings shrink the score (factor < 1), the default rating is
// neutral, and positive ratings are emphasized by the number of rating
// dimensions so that well-rated entries can overtake entries with a
// much higher raw text score.
func ratingBoost(rating float64) float64 {
	if rating < model.DefaultAvgRating {
		return (rating - model.MinAvgRating) / (model.DefaultAvgRating - model.MinAvgRating)
	}
	return 1 + model.RatingContextCount*(rating-model.DefaultAvgRating)
}

// boostedScore combines the raw text relevance with the rating boost.
// The raw score is compressed by log2 first so the boost is powerful
// enough to matter.
func boostedScore(raw, rating float64) float64 {
	return math.Log2(1+raw) * ratingBoost(rating)
}
