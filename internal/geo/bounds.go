// Package geo provides coordinate validation, location normalization and
// great-circle distance helpers.
package geo

import (
	"fmt"
	"math"

	"github.com/golang/geo/s2"
)

// Bounds is an inclusive latitude/longitude box in degrees.
type Bounds struct {
	LatMin float64 `json:"lat_min"`
	LatMax float64 `json:"lat_max"`
	LngMin float64 `json:"lng_min"`
	LngMax float64 `json:"lng_max"`
}

// DefaultBounds covers the deployed operating region.
var DefaultBounds = Bounds{
	LatMin: -11,
	LatMax: 6,
	LngMin: 95,
	LngMax: 141,
}

// Validate checks that the box is well formed.
func (b Bounds) Validate() error {
	for _, v := range []float64{b.LatMin, b.LatMax, b.LngMin, b.LngMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("bounds must be finite")
		}
	}
	if b.LatMin > b.LatMax {
		return fmt.Errorf("lat_min (%v) must be <= lat_max (%v)", b.LatMin, b.LatMax)
	}
	if b.LngMin > b.LngMax {
		return fmt.Errorf("lng_min (%v) must be <= lng_max (%v)", b.LngMin, b.LngMax)
	}
	if b.LatMin < -90 || b.LatMax > 90 {
		return fmt.Errorf("latitude bounds must be within [-90, 90]")
	}
	if b.LngMin < -180 || b.LngMax > 180 {
		return fmt.Errorf("longitude bounds must be within [-180, 180]")
	}
	return nil
}

// IsValid reports whether a coordinate can be analyzed. A zero latitude or
// longitude is treated as an unset value, not as the equator or meridian.
func (b Bounds) IsValid(lat, lng float64) bool {
	if lat == 0 || lng == 0 {
		return false
	}
	// NaN fails every comparison below; Inf falls outside any finite box.
	return lat >= b.LatMin && lat <= b.LatMax &&
		lng >= b.LngMin && lng <= b.LngMax
}

// DistanceMeters returns the great-circle distance between two points.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lng1)
	p2 := s2.LatLngFromDegrees(lat2, lng2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// EarthRadiusMeters is the mean Earth radius.
const EarthRadiusMeters = 6371000.0
