package anomaly

import "math"

// densityCluster runs a minimal DBSCAN-style pass over 7-dim rows and
// returns, for each row, whether it is a core/border point (clustered)
// or noise (behavioral outlier), grounded on the original's DBSCAN use
// in _advanced_pattern_analysis.
func densityCluster(rows [][PatternFeatureCount]float64, eps float64, minPoints int) []bool {
	isOutlier := make([]bool, len(rows))
	neighborCounts := make([]int, len(rows))
	for i := range rows {
		for j := range rows {
			if i == j {
				continue
			}
			if patternDistance(rows[i], rows[j]) <= eps {
				neighborCounts[i]++
			}
		}
	}
	core := make([]bool, len(rows))
	for i, n := range neighborCounts {
		core[i] = n >= minPoints
	}
	for i := range rows {
		if core[i] {
			continue
		}
		isOutlier[i] = true
		for j := range rows {
			if core[j] && patternDistance(rows[i], rows[j]) <= eps {
				isOutlier[i] = false // border point
				break
			}
		}
	}
	return isOutlier
}

func patternDistance(a, b [PatternFeatureCount]float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// OutlierFraction returns the share of noise points a density pass
// finds over the last rows, per spec §4.5's pattern sub-model
// (threshold 0.5, minPoints 5).
func OutlierFraction(rows [][PatternFeatureCount]float64) float64 {
	if len(rows) == 0 {
		return 0
	}
	const eps = 0.5
	const minPoints = 5
	outliers := densityCluster(rows, eps, minPoints)
	count := 0
	for _, o := range outliers {
		if o {
			count++
		}
	}
	return float64(count) / float64(len(rows))
}
