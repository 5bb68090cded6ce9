package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rewired-gh/salesmap/internal/geo"
	"github.com/rewired-gh/salesmap/internal/models"
)

// Document is a transaction as exported by the mobile app. Historical
// records used several location and timestamp shapes; all of them are
// accepted here and resolved once by ToTransaction.
type Document struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	TotalAmount   flexNumber      `json:"totalAmount"`
	PaymentMethod string          `json:"paymentMethod"`
	Timestamp     json.RawMessage `json:"timestamp"`
	Date          string          `json:"date"`
	CreatedAt     json.RawMessage `json:"createdAt"`
	Location      *docLocation    `json:"location"`
	GeoPoint      *docGeoPoint    `json:"geopoint"`
	Lat           *float64        `json:"lat"`
	Lng           *float64        `json:"lng"`
}

type docLocation struct {
	Latitude    *float64  `json:"latitude"`
	Longitude   *float64  `json:"longitude"`
	Lat         *float64  `json:"lat"`
	Lng         *float64  `json:"lng"`
	Coordinates []float64 `json:"coordinates"`
}

type docGeoPoint struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// flexNumber accepts a JSON number, a numeric string or null.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q: %w", s, err)
		}
		*n = flexNumber(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = flexNumber(v)
	return nil
}

// RawLocation picks the first location shape present on the document.
func (d *Document) RawLocation() models.RawLocation {
	if l := d.Location; l != nil {
		switch {
		case l.Latitude != nil && l.Longitude != nil:
			return models.RawLocation{Kind: models.LocationLatLng, Lat: *l.Latitude, Lng: *l.Longitude}
		case l.Lat != nil && l.Lng != nil:
			return models.RawLocation{Kind: models.LocationLatLngPair, Lat: *l.Lat, Lng: *l.Lng}
		case len(l.Coordinates) == 2:
			return models.RawLocation{Kind: models.LocationCoordinateArray, Coordinates: l.Coordinates}
		}
	}
	if g := d.GeoPoint; g != nil && g.Latitude != nil && g.Longitude != nil {
		return models.RawLocation{Kind: models.LocationGeoPoint, Lat: *g.Latitude, Lng: *g.Longitude}
	}
	if d.Lat != nil && d.Lng != nil {
		return models.RawLocation{Kind: models.LocationLatLngPair, Lat: *d.Lat, Lng: *d.Lng}
	}
	return models.RawLocation{}
}

// ResolveTimestamp tries the timestamp field, then date, then createdAt.
// Date-only values are taken as midnight in loc.
func (d *Document) ResolveTimestamp(loc *time.Location) (time.Time, bool) {
	if t, ok := parseTimestamp(d.Timestamp, loc); ok {
		return t, true
	}
	if d.Date != "" {
		if t, ok := parseTimeString(d.Date, loc); ok {
			return t, true
		}
	}
	return parseTimestamp(d.CreatedAt, loc)
}

// ToTransaction converts the document into the stored shape. Unresolvable
// timestamps and locations are left empty so the analysis can count them.
// Documents without an ID get a stable ID derived from their content.
func (d *Document) ToTransaction(raw []byte, loc *time.Location, now time.Time) models.Transaction {
	tx := models.Transaction{
		ID:            d.ID,
		VendorID:      d.UserID,
		Amount:        float64(d.TotalAmount),
		CreatedAt:     now,
	}
	switch pm := strings.ToLower(strings.TrimSpace(d.PaymentMethod)); pm {
	case models.PaymentCash, models.PaymentQRIS:
		tx.PaymentMethod = pm
	}
	if tx.ID == "" {
		tx.ID = uuid.NewSHA1(uuid.NameSpaceOID, raw).String()
	}
	if tx.Amount < 0 {
		tx.Amount = 0
	}
	if ts, ok := d.ResolveTimestamp(loc); ok {
		tx.Timestamp = ts
	}
	if ll, err := geo.Normalize(d.RawLocation()); err == nil {
		tx.Location = &ll
	}
	return tx
}

// ParseDocument decodes one JSON document into a transaction.
func ParseDocument(raw []byte, loc *time.Location, now time.Time) (models.Transaction, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return models.Transaction{}, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc.ToTransaction(raw, loc, now), nil
}

func parseTimestamp(raw json.RawMessage, loc *time.Location) (time.Time, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, false
	}

	switch raw[0] {
	case '{':
		var ts struct {
			Seconds      *int64 `json:"seconds"`
			Nanoseconds  int64  `json:"nanoseconds"`
			USeconds     *int64 `json:"_seconds"`
			UNanoseconds int64  `json:"_nanoseconds"`
		}
		if err := json.Unmarshal(raw, &ts); err != nil {
			return time.Time{}, false
		}
		if ts.Seconds != nil {
			return time.Unix(*ts.Seconds, ts.Nanoseconds), true
		}
		if ts.USeconds != nil {
			return time.Unix(*ts.USeconds, ts.UNanoseconds), true
		}
		return time.Time{}, false
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, false
		}
		return parseTimeString(s, loc)
	default:
		var ms float64
		if err := json.Unmarshal(raw, &ms); err != nil {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(ms)), true
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimeString(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
