package server

import (
	"github.com/rewired-gh/salesmap/internal/models"
	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Feature kinds carried in the "kind" property.
const (
	featureHeat   = "heat"
	featureMarker = "marker"
	featureTier   = "tier"
)

func point(lat, lng float64) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{lng, lat}).SetSRID(4326)
}

// toFeatureCollection renders heat points, markers and tiers as GeoJSON
// Point features, in that order.
func toFeatureCollection(result *models.AnalysisResult) *geojson.FeatureCollection {
	features := make([]*geojson.Feature, 0,
		len(result.HeatPoints)+len(result.MarkerPoints)+len(result.Tiers))

	for _, h := range result.HeatPoints {
		features = append(features, &geojson.Feature{
			Geometry: point(h.Lat, h.Lng),
			Properties: map[string]interface{}{
				"kind":      featureHeat,
				"intensity": h.Intensity,
			},
		})
	}
	for _, m := range result.MarkerPoints {
		features = append(features, &geojson.Feature{
			Geometry: point(m.Lat, m.Lng),
			Properties: map[string]interface{}{
				"kind":   featureMarker,
				"amount": m.Amount,
			},
		})
	}
	for _, t := range result.Tiers {
		features = append(features, &geojson.Feature{
			ID:       string(t.Kind),
			Geometry: point(t.Lat, t.Lng),
			Properties: map[string]interface{}{
				"kind":          featureTier,
				"tier":          string(t.Kind),
				"label":         t.Label,
				"color":         t.Color,
				"total_revenue": t.TotalRevenue,
				"point_count":   t.PointCount,
				"radius_meters": t.RadiusMeters,
			},
		})
	}

	return &geojson.FeatureCollection{Features: features}
}
