// Package model defines the canonical in-memory representation of a
// directory entry as seen by the search engine. Entries are owned by the
// relational store; the types here are the projection the engine indexes
// and never write back.
package model

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/geodex/geo"
)

// ID is the opaque, stable identifier of an entry. It never changes once
// assigned.
type ID string

// Version is a per-entry revision counter. It strictly increases on
// every update; index documents carry the version that produced them so
// stale writes can be detected and discarded.
type Version uint64

// Category classifies an entry. The set is fixed.
type Category string

const (
	CategoryNonProfit  Category = "non-profit"
	CategoryCommercial Category = "commercial"
	CategoryEvent      Category = "event"
)

// Valid reports whether c is one of the known categories. The empty
// category is valid and means "uncategorized".
func (c Category) Valid() bool {
	switch c {
	case "", CategoryNonProfit, CategoryCommercial, CategoryEvent:
		return true
	}
	return false
}

// Rating bounds for the externally recomputed average rating.
const (
	MinAvgRating     = -1.0
	MaxAvgRating     = 2.0
	DefaultAvgRating = 0.0

	// RatingContextCount is the number of rating dimensions that feed
	// the average (diversity, fairness, humanity, renewable, solidarity,
	// transparency). It scales the rating boost during ranking.
	RatingContextCount = 6
)

// EntryRecord is the searchable projection of a directory entry.
type EntryRecord struct {
	ID          ID
	Version     Version
	Title       string
	Description string
	Tags        []string
	Category    Category
	Position    geo.Point
	AvgRating   float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks the invariants the index relies on.
func (e *EntryRecord) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("model: empty entry id")
	}
	if !e.Category.Valid() {
		return fmt.Errorf("model: unknown category %q", e.Category)
	}
	if err := e.Position.Validate(); err != nil {
		return fmt.Errorf("model: entry %s: %w", e.ID, err)
	}
	if e.AvgRating < MinAvgRating || e.AvgRating > MaxAvgRating {
		return fmt.Errorf("model: entry %s: rating %v out of range [%v, %v]",
			e.ID, e.AvgRating, MinAvgRating, MaxAvgRating)
	}
	return nil
}

// NormalizeTags lowercases, trims, dedupes and sorts a tag list. Empty
// tags and leading '#' characters are dropped.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(t, "#")))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

// HasTag reports whether the entry carries the given (normalized) tag.
func (e *EntryRecord) HasTag(tag string) bool {
	tag = strings.ToLower(tag)
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
