package anomaly

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Scaler is a per-column mean/std standardizer fitted once training
// triggers, grounded on the original's StandardScaler use ahead of
// IsolationForest.
type Scaler struct {
	Mean [FeatureCount]float64
	Std  [FeatureCount]float64
}

// FitScaler computes per-column population mean/std over rows.
func FitScaler(rows [][FeatureCount]float64) Scaler {
	var s Scaler
	col := make([]float64, len(rows))
	for c := 0; c < FeatureCount; c++ {
		for i, r := range rows {
			col[i] = r[c]
		}
		mean := stat.Mean(col, nil)
		// gonum's Variance is sample (Bessel-corrected); convert to
		// population variance to match the spec's population statistics.
		populationVariance := stat.Variance(col, nil) * float64(len(col)-1) / float64(len(col))
		s.Mean[c] = mean
		if populationVariance > 0 {
			s.Std[c] = math.Sqrt(populationVariance)
		}
	}
	return s
}

// Transform standardizes a feature vector: (x - mean) / std, with std=0
// columns passed through as 0 to avoid division by zero.
func (s Scaler) Transform(f [FeatureCount]float64) [FeatureCount]float64 {
	var out [FeatureCount]float64
	for i := range f {
		if s.Std[i] == 0 {
			out[i] = 0
			continue
		}
		out[i] = (f[i] - s.Mean[i]) / s.Std[i]
	}
	return out
}
