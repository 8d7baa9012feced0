package anomaly

import (
	"math"
	"math/rand"
)

// Forest is a compact isolation-forest-style outlier scorer: an
// ensemble of random partitioning trees over standardized feature rows.
// Grounded on the original's scikit-learn IsolationForest with
// contamination 0.10; reimplemented directly since no retrieved example
// wires an isolation-forest library.
type Forest struct {
	trees       []*isolationTree
	sampleSize  int
	contamination float64
	threshold   float64
}

const (
	numTrees       = 100
	treeSampleSize = 50
)

// Fit builds the ensemble from standardized rows and calibrates the
// decision threshold at the given contamination rate (expected fraction
// of rows considered outliers).
func Fit(rows [][FeatureCount]float64, contamination float64) *Forest {
	sampleSize := treeSampleSize
	if sampleSize > len(rows) {
		sampleSize = len(rows)
	}
	heightLimit := int(math.Ceil(math.Log2(float64(sampleSize))))

	f := &Forest{sampleSize: sampleSize, contamination: contamination}
	for i := 0; i < numTrees; i++ {
		sample := sampleRows(rows, sampleSize)
		f.trees = append(f.trees, buildTree(sample, 0, heightLimit))
	}

	scores := make([]float64, len(rows))
	for i, r := range rows {
		scores[i] = f.rawScore(r)
	}
	f.threshold = quantile(scores, 1-contamination)
	return f
}

// Score returns a decision score centered the way scikit-learn's
// decision_function is (the fitted threshold minus the row's isolation
// score: positive for inliers, negative for outliers) and whether the
// row is an outlier.
func (f *Forest) Score(row [FeatureCount]float64) (decisionScore float64, isOutlier bool) {
	raw := f.rawScore(row)
	decisionScore = f.threshold - raw
	return decisionScore, raw >= f.threshold
}

func (f *Forest) rawScore(row [FeatureCount]float64) float64 {
	if len(f.trees) == 0 {
		return 0
	}
	var total float64
	for _, t := range f.trees {
		total += pathLength(t, row, 0)
	}
	avgPathLength := total / float64(len(f.trees))
	c := averagePathLengthNormalizer(f.sampleSize)
	if c == 0 {
		return 0
	}
	return math.Pow(2, -avgPathLength/c)
}

// averagePathLengthNormalizer is the c(n) normalizer from the isolation
// forest paper: expected path length of an unsuccessful BST search.
func averagePathLengthNormalizer(n int) float64 {
	if n <= 1 {
		return 1
	}
	return 2*(math.Log(float64(n-1))+0.5772156649) - (2 * float64(n-1) / float64(n))
}

type isolationTree struct {
	splitFeature int
	splitValue   float64
	left, right  *isolationTree
	isLeaf       bool
	size         int
}

func buildTree(rows [][FeatureCount]float64, depth, heightLimit int) *isolationTree {
	if depth >= heightLimit || len(rows) <= 1 {
		return &isolationTree{isLeaf: true, size: len(rows)}
	}

	feature := rand.Intn(FeatureCount)
	lo, hi := featureRange(rows, feature)
	if lo == hi {
		return &isolationTree{isLeaf: true, size: len(rows)}
	}
	splitValue := lo + rand.Float64()*(hi-lo)

	var left, right [][FeatureCount]float64
	for _, r := range rows {
		if r[feature] < splitValue {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &isolationTree{isLeaf: true, size: len(rows)}
	}

	return &isolationTree{
		splitFeature: feature,
		splitValue:   splitValue,
		left:         buildTree(left, depth+1, heightLimit),
		right:        buildTree(right, depth+1, heightLimit),
	}
}

func pathLength(t *isolationTree, row [FeatureCount]float64, depth int) float64 {
	if t.isLeaf {
		return float64(depth) + averagePathLengthNormalizer(t.size)
	}
	if row[t.splitFeature] < t.splitValue {
		return pathLength(t.left, row, depth+1)
	}
	return pathLength(t.right, row, depth+1)
}

func featureRange(rows [][FeatureCount]float64, feature int) (float64, float64) {
	lo, hi := rows[0][feature], rows[0][feature]
	for _, r := range rows[1:] {
		if r[feature] < lo {
			lo = r[feature]
		}
		if r[feature] > hi {
			hi = r[feature]
		}
	}
	return lo, hi
}

func sampleRows(rows [][FeatureCount]float64, n int) [][FeatureCount]float64 {
	if n >= len(rows) {
		out := make([][FeatureCount]float64, len(rows))
		copy(out, rows)
		return out
	}
	idx := rand.Perm(len(rows))[:n]
	out := make([][FeatureCount]float64, n)
	for i, j := range idx {
		out[i] = rows[j]
	}
	return out
}

// quantile returns the value below which the given fraction q of sorted
// scores falls, using linear interpolation over a copy of scores.
func quantile(scores []float64, q float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sorted := append([]float64(nil), scores...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
