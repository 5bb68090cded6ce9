// Package models defines the core domain entities: transactions, transaction
// points, clusters, tiers and analysis results.
package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Payment methods accepted at the point of sale.
const (
	PaymentCash = "cash"
	PaymentQRIS = "qris"
)

// LatLng is a canonical geographic coordinate in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Transaction is a single point-of-sale record as stored by the service.
// Timestamp is zero and Location is nil when the source record carried no
// resolvable value; the analysis pipeline counts such records as dropped.
type Transaction struct {
	ID            string    `json:"id"`
	VendorID      string    `json:"vendor_id"`
	Amount        float64   `json:"amount"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Location      *LatLng   `json:"location,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ErrInvalidTransaction wraps every Validate failure.
var ErrInvalidTransaction = errors.New("invalid transaction")

// Validate checks transaction field constraints.
func (t *Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: ID must not be empty", ErrInvalidTransaction)
	}
	if t.Amount < 0 || math.IsNaN(t.Amount) || math.IsInf(t.Amount, 0) {
		return fmt.Errorf("%w: amount must be a non-negative finite number", ErrInvalidTransaction)
	}
	switch t.PaymentMethod {
	case "", PaymentCash, PaymentQRIS:
	default:
		return fmt.Errorf("%w: payment method must be one of: cash, qris", ErrInvalidTransaction)
	}
	if t.CreatedAt.IsZero() {
		return fmt.Errorf("%w: created at must be set", ErrInvalidTransaction)
	}
	return nil
}

// LocationKind tags which source shape a RawLocation was decoded from.
type LocationKind int

const (
	LocationNone LocationKind = iota
	// LocationLatLng is {latitude, longitude}.
	LocationLatLng
	// LocationLatLngPair is {lat, lng}, nested or flat on the record.
	LocationLatLngPair
	// LocationCoordinateArray is a GeoJSON-ordered [lng, lat] array.
	LocationCoordinateArray
	// LocationGeoPoint is a Firestore GeoPoint.
	LocationGeoPoint
)

func (k LocationKind) String() string {
	switch k {
	case LocationLatLng:
		return "latlng"
	case LocationLatLngPair:
		return "latlng_pair"
	case LocationCoordinateArray:
		return "coordinate_array"
	case LocationGeoPoint:
		return "geopoint"
	default:
		return "none"
	}
}

// RawLocation is the location of a record as it arrived from a collaborator,
// before normalization. Lat/Lng are used by every kind except
// LocationCoordinateArray, which uses Coordinates.
type RawLocation struct {
	Kind        LocationKind
	Lat         float64
	Lng         float64
	Coordinates []float64
}
