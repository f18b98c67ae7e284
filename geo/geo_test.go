package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoint_Validate(t *testing.T) {
	tests := []struct {
		name    string
		lat     float64
		lng     float64
		wantErr bool
	}{
		{"valid", 48.1, 11.5, false},
		{"boundary lat", 90, 0, false},
		{"boundary lng", 0, -180, false},
		{"lat too big", 90.0001, 0, true},
		{"lat too small", -91, 0, true},
		{"lng too big", 0, 180.5, true},
		{"lng too small", 0, -181, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPoint(tt.lat, tt.lng)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBoundingBox_Contains(t *testing.T) {
	box, err := NewBoundingBox(Point{Lat: 10, Lng: 10}, Point{Lat: 20, Lng: 20})
	require.NoError(t, err)

	assert.True(t, box.Contains(Point{Lat: 15, Lng: 15}))
	assert.False(t, box.Contains(Point{Lat: 25, Lng: 15}))
	assert.False(t, box.Contains(Point{Lat: 15, Lng: 25}))

	// Boundaries are inclusive.
	assert.True(t, box.Contains(Point{Lat: 10, Lng: 10}))
	assert.True(t, box.Contains(Point{Lat: 20, Lng: 20}))
	assert.True(t, box.Contains(Point{Lat: 10, Lng: 20}))
}

func TestBoundingBox_Antimeridian(t *testing.T) {
	box, err := NewBoundingBox(Point{Lat: -30, Lng: 170}, Point{Lat: 30, Lng: -170})
	require.NoError(t, err)
	require.True(t, box.Wraps())

	assert.True(t, box.Contains(Point{Lat: 0, Lng: 175}))
	assert.True(t, box.Contains(Point{Lat: 0, Lng: -175}))
	assert.True(t, box.Contains(Point{Lat: 0, Lng: 170}))
	assert.True(t, box.Contains(Point{Lat: 0, Lng: -170}))
	assert.False(t, box.Contains(Point{Lat: 0, Lng: 0}))
	assert.False(t, box.Contains(Point{Lat: 0, Lng: 169.999}))
}

func TestBoundingBox_InvertedLatitude(t *testing.T) {
	_, err := NewBoundingBox(Point{Lat: 20, Lng: 0}, Point{Lat: 10, Lng: 10})
	assert.Error(t, err)
}

func TestDistance(t *testing.T) {
	munich := Point{Lat: 48.137, Lng: 11.575}
	berlin := Point{Lat: 52.520, Lng: 13.405}

	d := Distance(munich, berlin)
	assert.InDelta(t, 504, d, 5)

	assert.Zero(t, Distance(munich, munich))
	assert.InDelta(t, Distance(munich, berlin), Distance(berlin, munich), 1e-9)
}

func TestWithinRadius(t *testing.T) {
	center := Point{Lat: 48, Lng: 11}
	assert.True(t, WithinRadius(center, center, 0))
	assert.True(t, WithinRadius(center, Point{Lat: 48.01, Lng: 11}, 2))
	assert.False(t, WithinRadius(center, Point{Lat: 49, Lng: 11}, 10))
}
