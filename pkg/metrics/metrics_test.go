package metrics

import "testing"

func TestNewRegistryRegistersWithoutPanic(t *testing.T) {
	r := New()
	r.ThreatsDetected.WithLabelValues("IMSI_CATCHER_SUSPECTED", "high").Inc()
	r.DetectorLatency.WithLabelValues("pipeline").Observe(0.01)
	r.ActiveSessions.Set(3)
	r.StorageWriteLatency.Observe(0.002)
	r.ModelTrainingEvents.Inc()
	r.AcquisitionFailures.Inc()

	if r.Handler() == nil {
		t.Fatal("expected non-nil metrics handler")
	}
}
