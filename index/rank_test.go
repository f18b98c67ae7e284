package index

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareHits_Ordering(t *testing.T) {
	hits := []Hit{
		{ID: "c", Score: 1.0, Rating: 0},
		{ID: "b", Score: 2.0, Rating: 0},
		{ID: "a", Score: 1.0, Rating: 0.5},
		{ID: "e", Score: 1.0, Rating: 0.5},
		{ID: "d", Score: 1.0, Rating: 0.5},
	}
	sort.Slice(hits, func(i, j int) bool { return CompareHits(hits[i], hits[j]) < 0 })

	var ids []string
	for _, h := range hits {
		ids = append(ids, string(h.ID))
	}
	// Score desc, then rating desc, then id asc.
	assert.Equal(t, []string{"b", "a", "d", "e", "c"}, ids)
}

func TestCompareHits_Total(t *testing.T) {
	a := Hit{ID: "x", Score: 1, Rating: 1}
	assert.Zero(t, CompareHits(a, a))
	b := Hit{ID: "y", Score: 1, Rating: 1}
	assert.Equal(t, -1, CompareHits(a, b))
	assert.Equal(t, 1, CompareHits(b, a))
}

func TestRatingBoost(t *testing.T) {
	// Neutral rating is a no-op boost.
	assert.InDelta(t, 1.0, ratingBoost(0), 1e-9)
	// Worst rating zeroes the score.
	assert.InDelta(t, 0.0, ratingBoost(-1), 1e-9)
	// Positive ratings scale with the number of rating dimensions.
	assert.InDelta(t, 13.0, ratingBoost(2), 1e-9)
	// Monotonic.
	assert.Less(t, ratingBoost(-0.5), ratingBoost(0))
	assert.Less(t, ratingBoost(0.5), ratingBoost(1.5))
}

func TestBM25Score(t *testing.T) {
	assert.Zero(t, bm25Score(0, 10, 1, 10, 10))
	assert.Zero(t, bm25Score(1, 10, 0, 10, 10))

	// Rarer terms score higher.
	rare := bm25Score(1, 10, 1, 100, 10)
	common := bm25Score(1, 10, 90, 100, 10)
	assert.Greater(t, rare, common)

	// More occurrences score higher, with diminishing returns.
	one := bm25Score(1, 10, 5, 100, 10)
	two := bm25Score(2, 10, 5, 100, 10)
	four := bm25Score(4, 10, 5, 100, 10)
	assert.Greater(t, two, one)
	assert.Greater(t, four, two)
	assert.Less(t, four-two, two-one)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"bio", "laden", "münchen"}, Tokenize("Bio-Laden, München!"))
	assert.Empty(t, Tokenize("  ,;  "))
}

func TestExtractHashTags(t *testing.T) {
	tags, text := ExtractHashTags("#Solar fair trade #organic-food")
	assert.Equal(t, []string{"solar", "organic-food"}, tags)
	assert.Equal(t, "fair trade", text)

	tags, text = ExtractHashTags("no tags here")
	assert.Nil(t, tags)
	assert.Equal(t, "no tags here", text)

	tags, text = ExtractHashTags("# #!")
	assert.Nil(t, tags)
	assert.Equal(t, "", text)
}
