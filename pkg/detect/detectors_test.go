package detect

import (
	"testing"
	"time"

	"github.com/MdrnDme/clutch/pkg/cellular"
)

func intPtr(v int) *int          { return &v }
func floatPtr(v float64) *float64 { return &v }

func baseMeasurement(ts time.Time, cellID string) cellular.Measurement {
	return cellular.Measurement{
		Timestamp:      ts,
		Tower:          cellular.Tower{CellID: cellID, LAC: "1"},
		SignalStrength: -80,
		Technology:     cellular.Tech4G,
		Encryption:     cellular.EncA51,
	}
}

func TestTimingAdvanceZero(t *testing.T) {
	ctx := NewContext()
	m := baseMeasurement(time.Unix(0, 0), "c1")
	m.Advanced = &cellular.AdvancedFields{TimingAdvance: intPtr(0)}

	threats := RunDetectors(ctx, m)
	if !containsType(threats, cellular.ThreatTimingAdvanceZero) {
		t.Fatalf("expected TIMING_ADVANCE_ZERO, got %v", threats)
	}
}

func TestImpossibleTimingAdvanceChange(t *testing.T) {
	ctx := NewContext()
	t0 := time.Unix(0, 0)
	m1 := baseMeasurement(t0, "c1")
	m1.Advanced = &cellular.AdvancedFields{TimingAdvance: intPtr(10)}
	RunDetectors(ctx, m1)

	m2 := baseMeasurement(t0.Add(1*time.Second), "c1")
	m2.Advanced = &cellular.AdvancedFields{TimingAdvance: intPtr(11)} // delta=1, max_plausible=0.15
	threats := RunDetectors(ctx, m2)
	if !containsType(threats, cellular.ThreatImpossibleTAChange) {
		t.Fatalf("expected IMPOSSIBLE_TIMING_ADVANCE_CHANGE, got %v", threats)
	}
}

func TestPCIBoundaries(t *testing.T) {
	cases := []struct {
		pci     int
		expects bool
	}{
		{0, false},
		{503, false},
		{-1, true},
		{504, true},
	}
	for _, c := range cases {
		ctx := NewContext()
		m := baseMeasurement(time.Unix(0, 0), "c1")
		m.Advanced = &cellular.AdvancedFields{PCI: intPtr(c.pci)}
		threats := RunDetectors(ctx, m)
		got := containsType(threats, cellular.ThreatInvalidPCI)
		if got != c.expects {
			t.Errorf("pci=%d: expected fire=%v, got=%v", c.pci, c.expects, got)
		}
	}
}

func TestFrequencyBandBoundaries(t *testing.T) {
	cases := []struct {
		freq    float64
		expects bool
	}{
		{1710, false},
		{1785, false},
		{1690, true},
		{1800, true},
	}
	for _, c := range cases {
		ctx := NewContext()
		m := baseMeasurement(time.Unix(0, 0), "c1")
		m.Advanced = &cellular.AdvancedFields{DownlinkFrequencyMHz: floatPtr(c.freq)}
		threats := RunDetectors(ctx, m)
		got := containsType(threats, cellular.ThreatFrequencyOutOfBand)
		if got != c.expects {
			t.Errorf("freq=%v: expected fire=%v, got=%v", c.freq, c.expects, got)
		}
	}
}

func TestEncryptionDowngradeUnknownToA51DoesNotFireD8(t *testing.T) {
	ctx := NewContext()
	t0 := time.Unix(0, 0)
	m1 := baseMeasurement(t0, "c1")
	m1.Encryption = cellular.EncUnknown
	RunDetectors(ctx, m1)

	m2 := baseMeasurement(t0.Add(time.Second), "c1")
	m2.Encryption = cellular.EncA51
	threats := RunDetectors(ctx, m2)
	if containsType(threats, cellular.ThreatEncryptionDowngrade) {
		t.Fatalf("did not expect ENCRYPTION_DOWNGRADE on Unknown->A5/1, got %v", threats)
	}
}

func TestEncryptionDowngradeScenario(t *testing.T) {
	ctx := NewContext()
	t0 := time.Unix(0, 0)
	m1 := baseMeasurement(t0, "c1")
	m1.Encryption = cellular.EncA53
	RunDetectors(ctx, m1)

	m2 := baseMeasurement(t0.Add(time.Second), "c1")
	m2.Encryption = cellular.EncNone
	threats := RunDetectors(ctx, m2)

	if !containsType(threats, cellular.ThreatEncryptionDowngrade) {
		t.Fatalf("expected ENCRYPTION_DOWNGRADE, got %v", threats)
	}
	count := 0
	ids := map[string]bool{}
	for _, th := range threats {
		if th.ThreatType == cellular.ThreatEncryptionDowngrade {
			count++
			ids[th.ThreatID] = true
		}
	}
	if count != 2 {
		t.Fatalf("expected two ENCRYPTION_DOWNGRADE threats (D7 + D8), got %d", count)
	}
	if len(ids) != 2 {
		t.Fatalf("expected distinct threat_ids for D7 vs D8, got %v", ids)
	}
}

func TestImpossibleMovementSpeed(t *testing.T) {
	ctx := NewContext()
	t0 := time.Unix(0, 0)
	m1 := baseMeasurement(t0, "c1")
	m1.Position = &cellular.Location{Latitude: 37.7749, Longitude: -122.4194}
	RunDetectors(ctx, m1)

	m2 := baseMeasurement(t0.Add(60*time.Second), "c1")
	m2.Position = &cellular.Location{Latitude: 40.7128, Longitude: -74.0060}
	threats := RunDetectors(ctx, m2)

	found := false
	for _, th := range threats {
		if th.ThreatType == cellular.ThreatImpossibleMovementSpeed {
			found = true
			if th.Confidence != 0.9 {
				t.Errorf("expected confidence 0.9, got %v", th.Confidence)
			}
		}
	}
	if !found {
		t.Fatalf("expected IMPOSSIBLE_MOVEMENT_SPEED, got %v", threats)
	}
}

func TestEncryptionAbsentFiresOnFirstSample(t *testing.T) {
	ctx := NewContext()
	m := baseMeasurement(time.Unix(0, 0), "c1")
	m.Encryption = cellular.EncNone
	threats := RunDetectors(ctx, m)
	if !containsType(threats, cellular.ThreatEncryptionDowngrade) {
		t.Fatalf("expected D7 encryption-absent threat on first sample, got %v", threats)
	}
}

func containsType(threats []cellular.Threat, want cellular.ThreatType) bool {
	for _, th := range threats {
		if th.ThreatType == want {
			return true
		}
	}
	return false
}
