package models

import (
	"time"
)

// TransactionPoint is the unit the clustering engine operates on.
type TransactionPoint struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Amount float64 `json:"amount"`
}

// ClusterResult summarizes one finished cluster. Lat/Lng is the exemplar:
// the highest-amount point assigned to the cluster, not its centroid.
type ClusterResult struct {
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	TotalRevenue float64 `json:"total_revenue"`
	PointCount   int     `json:"point_count"`
	RadiusMeters float64 `json:"radius_meters"`
}

type TierKind string

const (
	TierBusy   TierKind = "BUSY"
	TierNormal TierKind = "NORMAL"
	TierQuiet  TierKind = "QUIET"
)

// Tier is a cluster selected for one of the three revenue ranks.
type Tier struct {
	Kind  TierKind `json:"tier"`
	Label string   `json:"label"`
	Color string   `json:"color"`
	ClusterResult
}

type HeatPoint struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Intensity float64 `json:"intensity"`
}

type MarkerPoint struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Amount float64 `json:"amount"`
}

// Diagnostics counts how the input records were consumed by one analysis.
// TotalInput == OutsideWindow + DroppedInvalidDate + DroppedInvalidLocation +
// DroppedOutOfBounds + Analyzed.
type Diagnostics struct {
	TotalInput             int `json:"total_input"`
	OutsideWindow          int `json:"outside_window"`
	DroppedInvalidDate     int `json:"dropped_invalid_date"`
	DroppedInvalidLocation int `json:"dropped_invalid_location"`
	DroppedOutOfBounds     int `json:"dropped_out_of_bounds"`
	Analyzed               int `json:"analyzed"`
}

// AnalysisResult is the payload consumed by the map client.
type AnalysisResult struct {
	Mode         string        `json:"mode"`
	WindowStart  time.Time     `json:"window_start"`
	WindowEnd    time.Time     `json:"window_end"`
	HeatPoints   []HeatPoint   `json:"heat_points"`
	MarkerPoints []MarkerPoint `json:"marker_points"`
	Tiers        []Tier        `json:"tiers"`
	Center       LatLng        `json:"center"`
	Diagnostics  Diagnostics   `json:"diagnostics"`
	GeneratedAt  time.Time     `json:"generated_at"`
}

// Busy returns the BUSY tier, if the analysis produced one.
func (r *AnalysisResult) Busy() (Tier, bool) {
	for _, t := range r.Tiers {
		if t.Kind == TierBusy {
			return t, true
		}
	}
	return Tier{}, false
}

// AnalysisRun is the persisted summary of one analysis.
type AnalysisRun struct {
	ID          string
	Mode        string
	TotalInput  int
	Analyzed    int
	HasBusy     bool
	BusyLat     float64
	BusyLng     float64
	BusyRevenue float64
	Notified    bool
	CreatedAt   time.Time
}

// Shift reports that the BUSY spot appeared or moved.
type Shift struct {
	Mode     string  `json:"mode"`
	Busy     Tier    `json:"busy"`
	Previous *LatLng `json:"previous,omitempty"`
	// DistanceMeters is the move from Previous; zero on first appearance.
	DistanceMeters float64 `json:"distance_meters"`
	// RevenueZScore compares the busy revenue against earlier runs.
	RevenueZScore float64   `json:"revenue_z_score"`
	DetectedAt    time.Time `json:"detected_at"`
}
