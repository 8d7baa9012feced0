package signature

import (
	"testing"
	"time"

	"github.com/MdrnDme/clutch/pkg/cellular"
)

func taMeasurement(ts time.Time, ta int, signal int, tech cellular.TechTag) cellular.Measurement {
	t := ta
	return cellular.Measurement{
		Timestamp:      ts,
		Tower:          cellular.Tower{CellID: "c1", LAC: "1"},
		SignalStrength: signal,
		Technology:     tech,
		Encryption:     cellular.EncA51,
		Advanced:       &cellular.AdvancedFields{TimingAdvance: &t},
	}
}

func TestMatcherRequiresMinimumBuffer(t *testing.T) {
	m := New()
	var history []cellular.Measurement
	for i := 0; i < 19; i++ {
		history = append(history, taMeasurement(time.Unix(int64(i), 0), 0, -80, cellular.Tech4G))
	}
	if threats := m.Evaluate(history); len(threats) != 0 {
		t.Fatalf("expected no threats below minimum buffer depth, got %v", threats)
	}
}

func TestMatcherFiresOnStrongStingRayPattern(t *testing.T) {
	m := New()
	var history []cellular.Measurement
	for i := 0; i < 20; i++ {
		ta := 0
		if i%2 != 0 {
			ta = 1
		}
		mm := taMeasurement(time.Unix(int64(i), 0), ta, -80, cellular.Tech2G)
		mm.SignalStrength = -80 + (i%2)*30 // std 15 > 10 -> power class "high"
		history = append(history, mm)
	}
	threats := m.Evaluate(history)
	found := false
	for _, th := range threats {
		if th.Evidence["signature"] == "StingRay" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a StingRay match, got %v", threats)
	}
}
