package index

import (
	"math"

	"github.com/hupe1980/geodex/geo"
	"github.com/hupe1980/geodex/model"
)

// Query is the fixed query shape of the directory: free text plus
// conjunctive filters. The zero value (with a positive Limit) matches
// every entry and enumerates it deterministically.
type Query struct {
	// Text is the optional free-text part. Tokens starting with '#'
	// are treated as mandatory tag filters, not as search terms.
	Text string

	// Tags must all be present on a matching entry (AND semantics).
	Tags []string

	// Category restricts results to a single category when set.
	Category model.Category

	// IDs restricts results to the given entry ids when non-empty.
	IDs []model.ID

	// BBox keeps only entries inside the box (boundaries inclusive,
	// antimeridian wrap supported).
	BBox *geo.BoundingBox

	// ExcludeBBox drops entries inside the box. Combined with BBox it
	// supports the "surrounding results" query of the directory UI.
	ExcludeBBox *geo.BoundingBox

	// MinRating keeps only entries with AvgRating >= *MinRating.
	MinRating *float64

	// Offset and Limit paginate the ranked result list. Limit must be
	// positive; an offset past the end yields an empty page.
	Offset int
	Limit  int
}

// Validate checks the query for malformed input.
func (q *Query) Validate() error {
	if q.Limit <= 0 {
		return invalidQueryf("limit must be positive, got %d", q.Limit)
	}
	if q.Offset < 0 {
		return invalidQueryf("offset must not be negative, got %d", q.Offset)
	}
	if !q.Category.Valid() {
		return invalidQueryf("unknown category %q", q.Category)
	}
	if q.BBox != nil {
		if err := q.BBox.Validate(); err != nil {
			return invalidQueryf("bounding box: %v", err)
		}
	}
	if q.ExcludeBBox != nil {
		if err := q.ExcludeBBox.Validate(); err != nil {
			return invalidQueryf("exclude bounding box: %v", err)
		}
	}
	if q.MinRating != nil && math.IsNaN(*q.MinRating) {
		return invalidQueryf("min rating is NaN")
	}
	return nil
}

// normalize resolves hash tags embedded in the query text and returns
// the effective search terms and the effective (normalized) tag set.
func (q *Query) normalize() (terms []string, tags []string) {
	hashTags, text := ExtractHashTags(q.Text)
	tags = model.NormalizeTags(append(hashTags, q.Tags...))
	return Tokenize(text), tags
}
