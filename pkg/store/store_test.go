package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/MdrnDme/clutch/pkg/cellular"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "threats.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveThreatIsIdempotentByThreatID(t *testing.T) {
	s := openTestStore(t)

	threat := cellular.Threat{
		ThreatID:    "abc123",
		ThreatType:  cellular.ThreatIMSICatcherSuspected,
		Severity:    cellular.SeverityHigh,
		Timestamp:   time.Unix(1000, 0).UTC(),
		Confidence:  0.9,
		Description: "first",
	}
	if err := s.SaveThreat("device-1", threat); err != nil {
		t.Fatalf("save threat: %v", err)
	}

	threat.Description = "second"
	if err := s.SaveThreat("device-1", threat); err != nil {
		t.Fatalf("save threat again: %v", err)
	}

	count, err := s.ThreatCountSince(time.Unix(0, 0))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one row after re-submission, got %d", count)
	}

	got, deviceID, err := s.ThreatByID("abc123")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got == nil {
		t.Fatal("expected threat to be found")
	}
	if got.Description != "second" {
		t.Fatalf("expected row to be replaced with latest description, got %q", got.Description)
	}
	if deviceID != "device-1" {
		t.Fatalf("expected device-1, got %q", deviceID)
	}
}

func TestThreatRoundTripPreservesLocationAndEvidence(t *testing.T) {
	s := openTestStore(t)

	threat := cellular.Threat{
		ThreatID:   "loc-1",
		ThreatType: cellular.ThreatPotentialJamming,
		Severity:   cellular.SeverityMedium,
		Timestamp:  time.Unix(2000, 0).UTC(),
		Confidence: 0.5,
		Location:   &cellular.Location{Latitude: 12.5, Longitude: -45.25},
		Evidence:   map[string]interface{}{"noise_floor": -95.0},
	}
	if err := s.SaveThreat("device-2", threat); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, _, err := s.ThreatByID("loc-1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Location == nil || got.Location.Latitude != 12.5 || got.Location.Longitude != -45.25 {
		t.Fatalf("location not preserved: %+v", got.Location)
	}
	if got.Evidence["noise_floor"] != -95.0 {
		t.Fatalf("evidence not preserved: %+v", got.Evidence)
	}
}

func TestUpsertDeviceSessionPreservesThreatCountOnReregister(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC()
	if err := s.UpsertDeviceSession("device-3", "edge-unit-3", now); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.IncrementThreatCount("device-3"); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := s.IncrementThreatCount("device-3"); err != nil {
		t.Fatalf("increment: %v", err)
	}

	// Re-register (reconnect): connection_count increments, threat_count
	// must be preserved.
	if err := s.UpsertDeviceSession("device-3", "edge-unit-3", now.Add(time.Minute)); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	count, err := s.ConnectedDeviceCount(time.Hour)
	if err != nil {
		t.Fatalf("connected count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one connected device, got %d", count)
	}

	var connections, threats int
	err = s.db.QueryRow(`SELECT connection_count, threat_count FROM device_sessions WHERE device_id = ?`, "device-3").Scan(&connections, &threats)
	if err != nil {
		t.Fatalf("read device session: %v", err)
	}
	if connections != 2 {
		t.Fatalf("expected connection_count 2 after re-register, got %d", connections)
	}
	if threats != 2 {
		t.Fatalf("expected threat_count 2 preserved across re-register, got %d", threats)
	}
}

func TestRecentThreatsOrdersNewestFirstAndRespectsLimit(t *testing.T) {
	s := openTestStore(t)

	base := time.Unix(5000, 0).UTC()
	for i := 0; i < 5; i++ {
		threat := cellular.Threat{
			ThreatID:   string(rune('a' + i)),
			ThreatType: cellular.ThreatSignalStrengthAnomaly,
			Severity:   cellular.SeverityLow,
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
			Confidence: 0.1,
		}
		if err := s.SaveThreat("device-4", threat); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	recent, err := s.RecentThreats(3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 threats, got %d", len(recent))
	}
	if recent[0].ThreatID != string(rune('a'+4)) {
		t.Fatalf("expected newest threat first, got %q", recent[0].ThreatID)
	}
}

func TestRecordEventPersists(t *testing.T) {
	s := openTestStore(t)
	err := s.RecordEvent("device_connected", "device-5", map[string]interface{}{"remote_addr": "10.0.0.1"}, time.Now().UTC())
	if err != nil {
		t.Fatalf("record event: %v", err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM monitoring_events WHERE device_id = ?`, "device-5").Scan(&count); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one persisted event, got %d", count)
	}
}
