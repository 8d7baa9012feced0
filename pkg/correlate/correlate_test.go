package correlate

import (
	"testing"
	"time"

	"github.com/MdrnDme/clutch/pkg/cellular"
	"github.com/MdrnDme/clutch/pkg/logx"
)

type spyFanout struct {
	highPriority []DeviceThreat
	coordinated  int
}

func (s *spyFanout) BroadcastHighPriorityAlert(threat DeviceThreat) {
	s.highPriority = append(s.highPriority, threat)
}
func (s *spyFanout) BroadcastCoordinatedAttack(primary DeviceThreat, related []DeviceThreat) {
	s.coordinated++
}

func imsiThreat(ts time.Time) cellular.Threat {
	return cellular.Threat{
		ThreatID:   "t-" + ts.String(),
		ThreatType: cellular.ThreatIMSICatcherSuspected,
		Severity:   cellular.SeverityHigh,
		Timestamp:  ts,
	}
}

func TestHighPriorityAlwaysFansOut(t *testing.T) {
	spy := &spyFanout{}
	c := New(spy, logx.NewLogger("error", "test"))
	c.Ingest("device-a", cellular.Threat{ThreatType: cellular.ThreatSignalStrengthAnomaly, Severity: cellular.SeverityHigh, Timestamp: time.Unix(0, 0)})
	if len(spy.highPriority) != 1 {
		t.Fatalf("expected one high priority fan-out, got %d", len(spy.highPriority))
	}
}

func TestCoordinatedAttackRequiresTwoOtherDevices(t *testing.T) {
	spy := &spyFanout{}
	c := New(spy, logx.NewLogger("error", "test"))

	base := time.Unix(0, 0)
	c.Ingest("device-a", imsiThreat(base))
	if spy.coordinated != 0 {
		t.Fatalf("expected no coordinated attack with only one device, got %d", spy.coordinated)
	}

	c.Ingest("device-b", imsiThreat(base.Add(time.Minute)))
	if spy.coordinated != 0 {
		t.Fatalf("expected no coordinated attack with only one other device, got %d", spy.coordinated)
	}

	c.Ingest("device-c", imsiThreat(base.Add(2*time.Minute)))
	if spy.coordinated != 1 {
		t.Fatalf("expected exactly one coordinated attack fan-out, got %d", spy.coordinated)
	}
}

func TestCoordinatedAttackDoesNotRealertSameTrio(t *testing.T) {
	spy := &spyFanout{}
	c := New(spy, logx.NewLogger("error", "test"))
	base := time.Unix(0, 0)

	c.Ingest("device-a", imsiThreat(base))
	c.Ingest("device-b", imsiThreat(base.Add(time.Minute)))
	c.Ingest("device-c", imsiThreat(base.Add(2*time.Minute)))
	if spy.coordinated != 1 {
		t.Fatalf("expected one coordinated alert, got %d", spy.coordinated)
	}

	// device-c reports another IMSI threat shortly after; same trio of
	// devices is involved, so this must not re-alert.
	c.Ingest("device-c", imsiThreat(base.Add(3*time.Minute)))
	if spy.coordinated != 1 {
		t.Fatalf("expected no re-alert on the same device trio, got %d", spy.coordinated)
	}
}

func TestFourthDeviceReAlertsWithGrownDeviceSet(t *testing.T) {
	spy := &spyFanout{}
	c := New(spy, logx.NewLogger("error", "test"))
	base := time.Unix(0, 0)

	c.Ingest("device-a", imsiThreat(base))
	c.Ingest("device-b", imsiThreat(base.Add(time.Minute)))
	c.Ingest("device-c", imsiThreat(base.Add(2*time.Minute)))
	if spy.coordinated != 1 {
		t.Fatalf("expected one coordinated alert after the third device, got %d", spy.coordinated)
	}

	c.Ingest("device-d", imsiThreat(base.Add(3*time.Minute)))
	if spy.coordinated != 2 {
		t.Fatalf("expected a second coordinated alert once a fourth device joins, got %d", spy.coordinated)
	}
}

func TestRepeatedThreatsFromOneDeviceDoNotCountAsTwoDevices(t *testing.T) {
	spy := &spyFanout{}
	c := New(spy, logx.NewLogger("error", "test"))
	base := time.Unix(0, 0)

	// device-a fires twice, then device-b fires once: only two distinct
	// devices are involved, so no coordinated alert should fire even
	// though the related-threat count reaches 2.
	c.Ingest("device-a", imsiThreat(base))
	c.Ingest("device-a", imsiThreat(base.Add(time.Minute)))
	c.Ingest("device-b", imsiThreat(base.Add(2*time.Minute)))
	if spy.coordinated != 0 {
		t.Fatalf("expected no coordinated attack with only two distinct devices, got %d", spy.coordinated)
	}

	c.Ingest("device-c", imsiThreat(base.Add(3*time.Minute)))
	if spy.coordinated != 1 {
		t.Fatalf("expected a coordinated attack once a third distinct device appears, got %d", spy.coordinated)
	}
}

func TestOutsideWindowDoesNotCountAsRelated(t *testing.T) {
	spy := &spyFanout{}
	c := New(spy, logx.NewLogger("error", "test"))
	base := time.Unix(0, 0)

	c.Ingest("device-a", imsiThreat(base))
	c.Ingest("device-b", imsiThreat(base.Add(61*time.Minute)))
	c.Ingest("device-c", imsiThreat(base.Add(122*time.Minute)))

	if spy.coordinated != 0 {
		t.Fatalf("expected no coordinated attack when threats fall outside the 60 minute window, got %d", spy.coordinated)
	}
}
