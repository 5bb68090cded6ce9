package cluster

import (
	"sort"

	"github.com/rewired-gh/salesmap/internal/models"
)

type tierStyle struct {
	label string
	color string
}

var tierStyles = map[models.TierKind]tierStyle{
	models.TierBusy:   {label: "🔥 Busy", color: "#10b981"},
	models.TierNormal: {label: "⚖️ Normal", color: "#3b82f6"},
	models.TierQuiet:  {label: "🧊 Quiet", color: "#6b7280"},
}

// ClassifyTiers ranks clusters by revenue and picks the top (BUSY), the
// middle rank n/2 (NORMAL) and the bottom (QUIET). With fewer than three
// clusters the same cluster is reported under more than one tier.
func ClassifyTiers(clusters []models.ClusterResult) []models.Tier {
	if len(clusters) == 0 {
		return nil
	}

	ranked := make([]models.ClusterResult, len(clusters))
	copy(ranked, clusters)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalRevenue > ranked[j].TotalRevenue
	})

	n := len(ranked)
	return []models.Tier{
		newTier(models.TierBusy, ranked[0]),
		newTier(models.TierNormal, ranked[n/2]),
		newTier(models.TierQuiet, ranked[n-1]),
	}
}

func newTier(kind models.TierKind, c models.ClusterResult) models.Tier {
	style := tierStyles[kind]
	return models.Tier{
		Kind:          kind,
		Label:         style.label,
		Color:         style.color,
		ClusterResult: c,
	}
}
