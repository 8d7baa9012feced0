// Package anomaly implements the Online Anomaly Model (C6): a
// 13-dimensional per-sample feature vector scored by an online-trained
// isolation-style detector, backed by a density-based clusterer for
// behavioral patterns. Grounded on
// original_source/cellular_security.py's _extract_ml_features,
// _train_anomaly_model, _ml_anomaly_detection, _classify_anomaly_type
// and _advanced_pattern_analysis (scikit-learn IsolationForest + DBSCAN
// in the original).
package anomaly

import (
	"time"

	"github.com/MdrnDme/clutch/pkg/cellular"
	"github.com/MdrnDme/clutch/pkg/detect"
	"github.com/MdrnDme/clutch/pkg/stats"
	"github.com/MdrnDme/clutch/pkg/towers"
)

// FeatureCount is the full feature vector's dimensionality.
const FeatureCount = 13

// PatternFeatureCount is the dimensionality the density-based clusterer
// operates on, per spec §4.5 "cluster ... 7-dim feature rows".
const PatternFeatureCount = 7

// Feature vector column indices, in the order spec §4.5 lists them.
const (
	featSignal = iota
	featSignalQuality
	featWindowMeanSignal
	featWindowStdSignal
	featSignalRange
	featDeltaSignal
	featTowerChanges1h
	featTowerChanges24h
	featTimingAdvance
	featTechnologyScore
	featEncryptionScore
	featDistanceKm
	featSpeedKmh
)

const maxPlausibleSpeedKmh = 500

// Extract builds the 13-dimensional feature vector for sample given the
// detection buffer (oldest-first, sample already pushed as the last
// element), the streaming-statistics engine and the tower registry's
// per-tower history. Missing optional fields contribute 0.
func Extract(sample *cellular.Measurement, history []cellular.Measurement, eng *stats.Engine, towerHistory []towers.HistoryPoint) [FeatureCount]float64 {
	var f [FeatureCount]float64

	f[featSignal] = float64(sample.SignalStrength)
	if sample.SignalQuality != nil {
		f[featSignalQuality] = float64(*sample.SignalQuality)
	}
	f[featWindowMeanSignal] = eng.Mean(stats.ChannelSignal)
	f[featWindowStdSignal] = eng.Std(stats.ChannelSignal)
	f[featSignalRange] = eng.Range(stats.ChannelSignal)

	if prev, ok := previous(history); ok {
		f[featDeltaSignal] = float64(sample.SignalStrength - prev.SignalStrength)
	}

	f[featTowerChanges1h] = float64(towers.ChangesInWindow(towerHistory, sample.Timestamp, time.Hour))
	f[featTowerChanges24h] = float64(towers.ChangesInWindow(towerHistory, sample.Timestamp, 24*time.Hour))

	if ta, ok := sample.TimingAdvance(); ok {
		f[featTimingAdvance] = float64(ta)
	}

	f[featTechnologyScore] = cellular.TechnologyScore(sample.Technology)
	f[featEncryptionScore] = cellular.EncryptionScore(sample.Encryption)

	if prev, ok := previous(history); ok && prev.Position != nil && sample.Position != nil {
		distanceKm := detect.HaversineKm(prev.Position.Latitude, prev.Position.Longitude, sample.Position.Latitude, sample.Position.Longitude)
		hours := sample.Timestamp.Sub(prev.Timestamp).Hours()
		f[featDistanceKm] = distanceKm
		if hours > 0 {
			speed := distanceKm / hours
			if speed > maxPlausibleSpeedKmh {
				speed = maxPlausibleSpeedKmh
			}
			f[featSpeedKmh] = speed
		}
	}

	return f
}

func previous(history []cellular.Measurement) (cellular.Measurement, bool) {
	if len(history) < 2 {
		return cellular.Measurement{}, false
	}
	return history[len(history)-2], true
}

// patternRow projects a full feature vector down to the 7 dimensions
// the density-based clusterer uses: signal, window-mean, window-std,
// tower_changes_1h, TA, technology score, speed.
func patternRow(f [FeatureCount]float64) [PatternFeatureCount]float64 {
	return [PatternFeatureCount]float64{
		f[featSignal],
		f[featWindowMeanSignal],
		f[featWindowStdSignal],
		f[featTowerChanges1h],
		f[featTimingAdvance],
		f[featTechnologyScore],
		f[featSpeedKmh],
	}
}
