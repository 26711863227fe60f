package domain

import "math"

// Coordinate is a WGS 84 point. It is a value: two coordinates are equal when
// their fields are.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LonLat returns the coordinate as a [lon, lat] pair, the order used by GeoJSON
// and by the points payload.
func (c Coordinate) LonLat() [2]float64 { return [2]float64{c.Longitude, c.Latitude} }

// Finite reports whether both components are real numbers.
func (c Coordinate) Finite() bool {
	return !math.IsNaN(c.Latitude) && !math.IsInf(c.Latitude, 0) &&
		!math.IsNaN(c.Longitude) && !math.IsInf(c.Longitude, 0)
}

// InRange reports whether the coordinate is finite and inside the WGS 84 bounds.
func (c Coordinate) InRange() bool {
	return c.Finite() &&
		c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// BoundsOf returns the smallest box containing every coordinate. ok is false for
// an empty slice.
func BoundsOf(coords []Coordinate) (b Bounds, ok bool) {
	for i, c := range coords {
		if i == 0 {
			b = Bounds{MinLat: c.Latitude, MinLon: c.Longitude, MaxLat: c.Latitude, MaxLon: c.Longitude}
			continue
		}
		b.MinLat = math.Min(b.MinLat, c.Latitude)
		b.MinLon = math.Min(b.MinLon, c.Longitude)
		b.MaxLat = math.Max(b.MaxLat, c.Latitude)
		b.MaxLon = math.Max(b.MaxLon, c.Longitude)
	}
	return b, len(coords) > 0
}
