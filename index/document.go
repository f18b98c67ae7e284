package index

import (
	"github.com/hupe1980/geodex/geo"
	"github.com/hupe1980/geodex/model"
)

// Document is the denormalized, index-native projection of an entry.
// Exactly one document exists per entry id; it is replaced on every
// indexed update and removed when the entry is deleted.
type Document struct {
	ID       model.ID
	Version  model.Version
	Terms    map[string]int // tokenized title + description frequencies
	Tags     []string
	Category model.Category
	Position geo.Point
	Rating   float64
}

// NewDocument projects an entry record into its index document. The
// record must have been validated by the caller.
func NewDocument(rec *model.EntryRecord) *Document {
	return &Document{
		ID:       rec.ID,
		Version:  rec.Version,
		Terms:    termFrequencies(rec.Title, rec.Description),
		Tags:     model.NormalizeTags(rec.Tags),
		Category: rec.Category,
		Position: rec.Position,
		Rating:   rec.AvgRating,
	}
}

// length returns the token count of the document's text fields, used
// for length normalization during scoring.
func (d *Document) length() int {
	var n int
	for _, c := range d.Terms {
		n += c
	}
	return n
}
