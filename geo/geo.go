// Package geo provides geographic points, bounding boxes and distance
// predicates used by the search index and by reconciliation.
//
// All boundary comparisons are inclusive: a point lying exactly on the
// edge of a bounding box is inside it. Bounding boxes whose western
// longitude is greater than their eastern longitude wrap around the
// antimeridian and are evaluated as the union of the two disjoint
// longitude ranges.
package geo

import (
	"fmt"
	"math"
)

const (
	// MinLat and MaxLat bound valid latitudes in degrees.
	MinLat = -90.0
	MaxLat = 90.0

	// MinLng and MaxLng bound valid longitudes in degrees.
	MinLng = -180.0
	MaxLng = 180.0

	// EarthRadiusKm is the mean earth radius used by Distance.
	EarthRadiusKm = 6371.0088
)

// Point is a geographic coordinate in degrees.
type Point struct {
	Lat float64
	Lng float64
}

// NewPoint creates a validated point.
func NewPoint(lat, lng float64) (Point, error) {
	p := Point{Lat: lat, Lng: lng}
	if err := p.Validate(); err != nil {
		return Point{}, err
	}
	return p, nil
}

// Validate checks that the coordinates are finite and in range.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return fmt.Errorf("geo: non-finite coordinate (%v, %v)", p.Lat, p.Lng)
	}
	if p.Lat < MinLat || p.Lat > MaxLat {
		return fmt.Errorf("geo: latitude %v out of range [%v, %v]", p.Lat, MinLat, MaxLat)
	}
	if p.Lng < MinLng || p.Lng > MaxLng {
		return fmt.Errorf("geo: longitude %v out of range [%v, %v]", p.Lng, MinLng, MaxLng)
	}
	return nil
}

func (p Point) String() string {
	return fmt.Sprintf("(%v, %v)", p.Lat, p.Lng)
}

// BoundingBox is a rectangular geographic filter delimited by its
// south-west and north-east corners.
type BoundingBox struct {
	SouthWest Point
	NorthEast Point
}

// NewBoundingBox creates a validated bounding box. A box with
// SouthWest.Lng > NorthEast.Lng is valid and wraps the antimeridian.
func NewBoundingBox(southWest, northEast Point) (BoundingBox, error) {
	b := BoundingBox{SouthWest: southWest, NorthEast: northEast}
	if err := b.Validate(); err != nil {
		return BoundingBox{}, err
	}
	return b, nil
}

// Validate checks corner coordinates and the latitude ordering.
// Longitude ordering is deliberately not checked; see Wraps.
func (b BoundingBox) Validate() error {
	if err := b.SouthWest.Validate(); err != nil {
		return err
	}
	if err := b.NorthEast.Validate(); err != nil {
		return err
	}
	if b.SouthWest.Lat > b.NorthEast.Lat {
		return fmt.Errorf("geo: inverted latitude range [%v, %v]", b.SouthWest.Lat, b.NorthEast.Lat)
	}
	return nil
}

// Wraps reports whether the box crosses the antimeridian.
func (b BoundingBox) Wraps() bool {
	return b.SouthWest.Lng > b.NorthEast.Lng
}

// Contains reports whether p lies within the box, boundaries included.
func (b BoundingBox) Contains(p Point) bool {
	if p.Lat < b.SouthWest.Lat || p.Lat > b.NorthEast.Lat {
		return false
	}
	if b.Wraps() {
		// Two disjoint ranges: [west, 180] and [-180, east].
		return p.Lng >= b.SouthWest.Lng || p.Lng <= b.NorthEast.Lng
	}
	return p.Lng >= b.SouthWest.Lng && p.Lng <= b.NorthEast.Lng
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("[%v - %v]", b.SouthWest, b.NorthEast)
}

// Distance returns the great-circle distance between two points in
// kilometers, using the haversine formula.
func Distance(a, b Point) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(latA)*math.Cos(latB)*sinLng*sinLng

	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// WithinRadius reports whether p lies within radiusKm of center,
// boundary included.
func WithinRadius(center, p Point, radiusKm float64) bool {
	return Distance(center, p) <= radiusKm
}
