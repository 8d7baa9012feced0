package anomaly

import (
	"sync"

	"github.com/MdrnDme/clutch/pkg/cellular"
	"github.com/MdrnDme/clutch/pkg/stats"
	"github.com/MdrnDme/clutch/pkg/towers"
)

const (
	minTrainingRows  = 50
	maxTrainingRows  = 1000
	contamination    = 0.10
	patternWindow    = 50
)

// Model is the online anomaly detector: it accumulates feature rows
// until a scaler and isolation forest can be fit, then scores every
// subsequent sample. Safe for concurrent use.
type Model struct {
	mu sync.Mutex

	rows    [][FeatureCount]float64
	scaler  Scaler
	forest  *Forest
	trained bool

	patternRows [][PatternFeatureCount]float64
}

// New creates an untrained Model.
func New() *Model {
	return &Model{}
}

// Observe extracts sample's feature vector, accumulates it for
// training, trains once enough rows are present, and scores the sample
// if a trained model exists. Returns nil threats when untrained.
func (m *Model) Observe(sample *cellular.Measurement, history []cellular.Measurement, eng *stats.Engine, towerHistory []towers.HistoryPoint) []cellular.Threat {
	f := Extract(sample, history, eng, towerHistory)

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.rows) < maxTrainingRows {
		m.rows = append(m.rows, f)
	}
	if !m.trained && len(m.rows) >= minTrainingRows {
		m.train()
	}
	if !m.trained {
		return nil
	}

	standardized := m.scaler.Transform(f)
	decisionScore, isOutlier := m.forest.Score(standardized)

	var out []cellular.Threat
	if isOutlier {
		out = append(out, scoreToThreat(sample, f, decisionScore))
	}

	m.patternRows = append(m.patternRows, patternRow(standardized))
	if len(m.patternRows) > patternWindow {
		m.patternRows = m.patternRows[len(m.patternRows)-patternWindow:]
	}
	if len(m.patternRows) == patternWindow {
		if fraction := OutlierFraction(m.patternRows); fraction > 0.20 {
			out = append(out, cellular.Threat{
				ThreatID:    cellular.NewThreatID("C6:pattern", cellular.ThreatMLBehavioralAnomaly, sample.Timestamp),
				ThreatType:  cellular.ThreatMLBehavioralAnomaly,
				Severity:    cellular.SeverityMedium,
				Timestamp:   sample.Timestamp,
				Description: "Recent behavioral pattern diverges from the clustered baseline",
				Evidence:    map[string]interface{}{"outlier_fraction": fraction, "window": patternWindow},
				Confidence:  fraction,
				Location:    sample.Position,
			})
		}
	}

	return out
}

// train fits the scaler and forest. Caller must hold m.mu.
func (m *Model) train() {
	m.scaler = FitScaler(m.rows)
	standardized := make([][FeatureCount]float64, len(m.rows))
	for i, r := range m.rows {
		standardized[i] = m.scaler.Transform(r)
	}
	m.forest = Fit(standardized, contamination)
	m.trained = true
}

// Trained reports whether the model has fit a scaler and forest.
func (m *Model) Trained() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trained
}

func scoreToThreat(sample *cellular.Measurement, f [FeatureCount]float64, decisionScore float64) cellular.Threat {
	severity := cellular.SeverityHigh
	if decisionScore > -0.3 {
		severity = cellular.SeverityMedium
	}
	confidence := decisionScore
	if confidence < 0 {
		confidence = -confidence
	}
	if confidence > 1.0 {
		confidence = 1.0
	}

	threatType := classify(f)

	return cellular.Threat{
		ThreatID:    cellular.NewThreatID("C6:forest", threatType, sample.Timestamp),
		ThreatType:  threatType,
		Severity:    severity,
		Timestamp:   sample.Timestamp,
		Description: "Feature vector flagged as an outlier by the anomaly model",
		Evidence: map[string]interface{}{
			"decision_score": decisionScore,
			"delta_signal":   f[featDeltaSignal],
			"tower_changes_1h": f[featTowerChanges1h],
			"timing_advance":   f[featTimingAdvance],
			"signal":           f[featSignal],
			"window_std":       f[featWindowStdSignal],
		},
		Confidence: confidence,
		Location:   sample.Position,
	}
}

// classify assigns a threat type from the feature vector per spec
// §4.5's cause-classification rules, checked in order.
func classify(f [FeatureCount]float64) cellular.ThreatType {
	switch {
	case abs(f[featDeltaSignal]) > 25:
		return cellular.ThreatMLSignalManipulation
	case f[featTowerChanges1h] > 6:
		return cellular.ThreatMLFrequentHandovers
	case f[featTimingAdvance] == 0 && f[featSignal] > -60:
		return cellular.ThreatMLCloseRangeThreat
	case f[featWindowStdSignal] > 20:
		return cellular.ThreatMLSignalInstability
	default:
		return cellular.ThreatMLGeneralAnomaly
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
