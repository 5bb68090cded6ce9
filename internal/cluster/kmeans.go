package cluster

import (
	"math"
	"sort"

	"github.com/rewired-gh/salesmap/internal/geo"
	"github.com/rewired-gh/salesmap/internal/models"
)

const (
	K          = 5
	Iterations = 10
)

type centroid struct {
	lat, lng float64
}

// ClusterTiered groups points into at most K clusters.
//
// Centroids are seeded from the K highest-amount points and refined for
// exactly Iterations rounds with no convergence check, so identical input in
// identical order always yields identical output. A centroid that attracts no
// points keeps its position. Empty clusters are dropped; the remaining
// results are returned in centroid order, unsorted.
func ClusterTiered(points []models.TransactionPoint) []models.ClusterResult {
	if len(points) < MinPoints {
		return nil
	}

	byAmount := make([]models.TransactionPoint, len(points))
	copy(byAmount, points)
	sort.SliceStable(byAmount, func(i, j int) bool {
		return byAmount[i].Amount > byAmount[j].Amount
	})

	centroids := make([]centroid, K)
	for i := range centroids {
		centroids[i] = centroid{lat: byAmount[i].Lat, lng: byAmount[i].Lng}
	}

	assignment := make([]int, len(points))
	for iter := 0; iter < Iterations; iter++ {
		sums := make([]centroid, K)
		counts := make([]int, K)
		for i, p := range points {
			idx := nearest(centroids, p)
			assignment[i] = idx
			sums[idx].lat += p.Lat
			sums[idx].lng += p.Lng
			counts[idx]++
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			centroids[c] = centroid{
				lat: sums[c].lat / float64(counts[c]),
				lng: sums[c].lng / float64(counts[c]),
			}
		}
	}

	members := make([][]models.TransactionPoint, K)
	for i, p := range points {
		members[assignment[i]] = append(members[assignment[i]], p)
	}

	results := make([]models.ClusterResult, 0, K)
	for _, m := range members {
		if len(m) == 0 {
			continue
		}
		results = append(results, summarize(m))
	}
	return results
}

// nearest returns the index of the closest centroid; on ties the lower
// index wins.
func nearest(centroids []centroid, p models.TransactionPoint) int {
	best := 0
	minDist := math.Inf(1)
	for i, c := range centroids {
		d := math.Hypot(p.Lat-c.lat, p.Lng-c.lng)
		if d < minDist {
			minDist = d
			best = i
		}
	}
	return best
}

func summarize(members []models.TransactionPoint) models.ClusterResult {
	exemplar := members[0]
	var total float64
	for _, p := range members {
		total += p.Amount
		if p.Amount > exemplar.Amount {
			exemplar = p
		}
	}

	var radius float64
	for _, p := range members {
		if d := geo.DistanceMeters(exemplar.Lat, exemplar.Lng, p.Lat, p.Lng); d > radius {
			radius = d
		}
	}

	return models.ClusterResult{
		Lat:          exemplar.Lat,
		Lng:          exemplar.Lng,
		TotalRevenue: total,
		PointCount:   len(members),
		RadiusMeters: radius,
	}
}
