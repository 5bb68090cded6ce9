// Package analysis turns stored transactions into the heatmap, marker and
// tier payload rendered by the sales map.
package analysis

import (
	"math"
	"time"

	"github.com/rewired-gh/salesmap/internal/cluster"
	"github.com/rewired-gh/salesmap/internal/geo"
	"github.com/rewired-gh/salesmap/internal/logger"
	"github.com/rewired-gh/salesmap/internal/models"
)

type Config struct {
	Bounds geo.Bounds
	// DefaultAmount replaces a missing, non-positive or non-finite amount when weighting
	// heat intensity and clusters.
	DefaultAmount float64
	// HeatNormalization divides the weighted amount to get heat intensity.
	HeatNormalization float64
	// Fallback is the map center when no BUSY tier exists.
	Fallback models.LatLng
	// FilterOutliers runs cluster.FilterOutliers on the clustering input.
	FilterOutliers bool
}

func DefaultConfig() Config {
	return Config{
		Bounds:            geo.DefaultBounds,
		DefaultAmount:     1000,
		HeatNormalization: 40000,
		Fallback:          models.LatLng{Lat: -6.9175, Lng: 107.6191},
		FilterOutliers:    false,
	}
}

// Pipeline is stateless; one value may be shared across goroutines.
type Pipeline struct {
	config Config
	now    func() time.Time
}

func NewPipeline(config Config) *Pipeline {
	return &Pipeline{config: config, now: time.Now}
}

func (p *Pipeline) Config() Config {
	return p.config
}

// Analyze filters txs to the window and region and derives heat points,
// markers and tiers from one shared set of surviving records.
func (p *Pipeline) Analyze(txs []models.Transaction, w Window) *models.AnalysisResult {
	var diag models.Diagnostics
	diag.TotalInput = len(txs)

	kept := make([]models.Transaction, 0, len(txs))
	for i := range txs {
		tx := &txs[i]
		if tx.Timestamp.IsZero() {
			diag.DroppedInvalidDate++
			continue
		}
		if !w.Contains(tx.Timestamp) {
			diag.OutsideWindow++
			continue
		}
		if tx.Location == nil {
			diag.DroppedInvalidLocation++
			continue
		}
		if !p.config.Bounds.IsValid(tx.Location.Lat, tx.Location.Lng) {
			diag.DroppedOutOfBounds++
			continue
		}
		kept = append(kept, *tx)
	}
	diag.Analyzed = len(kept)

	heat := make([]models.HeatPoint, 0, len(kept))
	markers := make([]models.MarkerPoint, 0, len(kept))
	points := make([]models.TransactionPoint, 0, len(kept))
	for _, tx := range kept {
		weight := p.weight(tx.Amount)
		amount := tx.Amount
		if math.IsNaN(amount) || math.IsInf(amount, 0) {
			amount = 0
		}
		heat = append(heat, models.HeatPoint{
			Lat:       tx.Location.Lat,
			Lng:       tx.Location.Lng,
			Intensity: weight / p.config.HeatNormalization,
		})
		markers = append(markers, models.MarkerPoint{
			Lat:    tx.Location.Lat,
			Lng:    tx.Location.Lng,
			Amount: amount,
		})
		points = append(points, models.TransactionPoint{
			Lat:    tx.Location.Lat,
			Lng:    tx.Location.Lng,
			Amount: weight,
		})
	}

	if p.config.FilterOutliers {
		points = cluster.FilterOutliers(points)
	}

	tiers := cluster.ClassifyTiers(cluster.ClusterTiered(points))
	if tiers == nil {
		tiers = []models.Tier{}
	}

	result := &models.AnalysisResult{
		Mode:         string(w.Mode),
		WindowStart:  w.Start,
		WindowEnd:    w.End,
		HeatPoints:   heat,
		MarkerPoints: markers,
		Tiers:        tiers,
		Center:       p.config.Fallback,
		Diagnostics:  diag,
		GeneratedAt:  p.now(),
	}
	if busy, ok := result.Busy(); ok {
		result.Center = models.LatLng{Lat: busy.Lat, Lng: busy.Lng}
	}

	logger.Debug("Analyzed %d/%d transactions (mode=%s): %d outside window, %d bad date, %d no location, %d out of bounds, %d tiers",
		diag.Analyzed, diag.TotalInput, w.Mode, diag.OutsideWindow, diag.DroppedInvalidDate,
		diag.DroppedInvalidLocation, diag.DroppedOutOfBounds, len(tiers))

	return result
}

// weight treats a missing, non-positive or non-finite amount as DefaultAmount.
func (p *Pipeline) weight(amount float64) float64 {
	if !(amount > 0) || math.IsInf(amount, 0) {
		return p.config.DefaultAmount
	}
	return amount
}
