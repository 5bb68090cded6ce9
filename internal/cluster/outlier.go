// Package cluster implements the revenue clustering engine: spatial outlier
// rejection, revenue-seeded k-means and tier classification. Every function
// is pure and safe for concurrent use.
package cluster

import (
	"math"

	"github.com/rewired-gh/salesmap/internal/models"
)

const (
	// MinPoints is the smallest sample the engine will estimate spread or
	// clusters from.
	MinPoints = 5
	// OutlierStdDevs is how many standard deviations past the mean distance
	// a point may sit before it is rejected.
	OutlierStdDevs = 1.2
)

// FilterOutliers drops points that sit far from the mean centroid. Distances
// are Euclidean in raw degree space. Inputs shorter than MinPoints are
// returned unchanged; otherwise the kept points are returned in input order.
func FilterOutliers(points []models.TransactionPoint) []models.TransactionPoint {
	if len(points) < MinPoints {
		return points
	}

	n := float64(len(points))
	var sumLat, sumLng float64
	for _, p := range points {
		sumLat += p.Lat
		sumLng += p.Lng
	}
	meanLat, meanLng := sumLat/n, sumLng/n

	distances := make([]float64, len(points))
	var sumDist float64
	for i, p := range points {
		distances[i] = math.Hypot(p.Lat-meanLat, p.Lng-meanLng)
		sumDist += distances[i]
	}
	meanDist := sumDist / n

	var sq float64
	for _, d := range distances {
		sq += (d - meanDist) * (d - meanDist)
	}
	stdDev := math.Sqrt(sq / n)

	limit := meanDist + OutlierStdDevs*stdDev
	kept := make([]models.TransactionPoint, 0, len(points))
	for i, p := range points {
		if distances[i] <= limit {
			kept = append(kept, p)
		}
	}
	return kept
}
