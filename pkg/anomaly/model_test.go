package anomaly

import (
	"math/rand"
	"testing"
	"time"

	"github.com/MdrnDme/clutch/pkg/cellular"
	"github.com/MdrnDme/clutch/pkg/stats"
)

func sampleAt(ts time.Time, signal int) *cellular.Measurement {
	return &cellular.Measurement{
		Timestamp:      ts,
		Tower:          cellular.Tower{CellID: "c1", LAC: "1"},
		SignalStrength: signal,
		Technology:     cellular.Tech4G,
		Encryption:     cellular.EncA51,
	}
}

func TestModelTrainsAfterMinimumRows(t *testing.T) {
	m := New()
	eng := stats.NewEngine()
	var history []cellular.Measurement

	for i := 0; i < minTrainingRows-1; i++ {
		s := sampleAt(time.Unix(int64(i), 0), -80+rand.Intn(3))
		history = append(history, *s)
		eng.Push(stats.ChannelSignal, float64(s.SignalStrength))
		m.Observe(s, history, eng, nil)
	}
	if m.Trained() {
		t.Fatalf("expected model untrained before %d rows", minTrainingRows)
	}

	s := sampleAt(time.Unix(int64(minTrainingRows), 0), -80)
	history = append(history, *s)
	eng.Push(stats.ChannelSignal, float64(s.SignalStrength))
	m.Observe(s, history, eng, nil)

	if !m.Trained() {
		t.Fatalf("expected model trained at %d rows", minTrainingRows)
	}
}

func TestScalerTransformRoundTripsNearZeroOnMean(t *testing.T) {
	rows := [][FeatureCount]float64{}
	for i := 0; i < 10; i++ {
		var r [FeatureCount]float64
		r[0] = float64(i)
		rows = append(rows, r)
	}
	scaler := FitScaler(rows)
	mid := [FeatureCount]float64{}
	mid[0] = scaler.Mean[0]
	out := scaler.Transform(mid)
	if out[0] < -1e-9 || out[0] > 1e-9 {
		t.Fatalf("expected transform of the mean to be ~0, got %v", out[0])
	}
}

func TestClassifyRules(t *testing.T) {
	var f [FeatureCount]float64
	f[featDeltaSignal] = 30
	if got := classify(f); got != cellular.ThreatMLSignalManipulation {
		t.Errorf("expected ML_SIGNAL_MANIPULATION, got %v", got)
	}

	f = [FeatureCount]float64{}
	f[featTowerChanges1h] = 7
	if got := classify(f); got != cellular.ThreatMLFrequentHandovers {
		t.Errorf("expected ML_FREQUENT_HANDOVERS, got %v", got)
	}

	f = [FeatureCount]float64{}
	f[featTimingAdvance] = 0
	f[featSignal] = -50
	if got := classify(f); got != cellular.ThreatMLCloseRangeThreat {
		t.Errorf("expected ML_CLOSE_RANGE_THREAT, got %v", got)
	}

	f = [FeatureCount]float64{}
	f[featWindowStdSignal] = 25
	if got := classify(f); got != cellular.ThreatMLSignalInstability {
		t.Errorf("expected ML_SIGNAL_INSTABILITY, got %v", got)
	}

	f = [FeatureCount]float64{}
	if got := classify(f); got != cellular.ThreatMLGeneralAnomaly {
		t.Errorf("expected ML_GENERAL_ANOMALY, got %v", got)
	}
}

func TestPersistRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStore(dir + "/model.db")
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()

	if m, err := store.Load(); err != nil || m != nil {
		t.Fatalf("expected (nil, nil) from an empty store, got (%v, %v)", m, err)
	}

	m := New()
	eng := stats.NewEngine()
	var history []cellular.Measurement
	for i := 0; i < minTrainingRows; i++ {
		s := sampleAt(time.Unix(int64(i), 0), -80+rand.Intn(5))
		history = append(history, *s)
		eng.Push(stats.ChannelSignal, float64(s.SignalStrength))
		m.Observe(s, history, eng, nil)
	}
	if !m.Trained() {
		t.Fatalf("expected model trained")
	}

	if err := store.Save(m); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == nil || !loaded.Trained() {
		t.Fatalf("expected loaded model to be trained")
	}
	if len(loaded.forest.trees) != len(m.forest.trees) {
		t.Fatalf("expected %d trees, got %d", len(m.forest.trees), len(loaded.forest.trees))
	}
}
