package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/rewired-gh/salesmap/internal/models"
)

// ErrInvalidInput is returned when a record carries no resolvable location.
var ErrInvalidInput = errors.New("invalid input")

// Normalize resolves a tagged source location into the canonical shape.
// Coordinate arrays are GeoJSON ordered: [lng, lat].
func Normalize(raw models.RawLocation) (models.LatLng, error) {
	var ll models.LatLng
	switch raw.Kind {
	case models.LocationLatLng, models.LocationLatLngPair, models.LocationGeoPoint:
		ll = models.LatLng{Lat: raw.Lat, Lng: raw.Lng}
	case models.LocationCoordinateArray:
		if len(raw.Coordinates) != 2 {
			return models.LatLng{}, fmt.Errorf("%w: coordinate array has %d elements, want 2", ErrInvalidInput, len(raw.Coordinates))
		}
		ll = models.LatLng{Lat: raw.Coordinates[1], Lng: raw.Coordinates[0]}
	default:
		return models.LatLng{}, fmt.Errorf("%w: no location", ErrInvalidInput)
	}
	if !finite(ll.Lat) || !finite(ll.Lng) {
		return models.LatLng{}, fmt.Errorf("%w: non-finite coordinate (%v, %v)", ErrInvalidInput, ll.Lat, ll.Lng)
	}
	return ll, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
