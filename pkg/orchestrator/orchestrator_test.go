package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/MdrnDme/clutch/pkg/cellular"
	"github.com/MdrnDme/clutch/pkg/ingest"
	"github.com/MdrnDme/clutch/pkg/logx"
)

type recordingSink struct {
	batches [][]cellular.Threat
}

func (r *recordingSink) Emit(threats []cellular.Threat) {
	r.batches = append(r.batches, threats)
}

type singleSource struct {
	m *cellular.Measurement
}

func (s singleSource) Name() string { return "single" }
func (s singleSource) Read(ctx context.Context) (*cellular.Measurement, error) {
	return s.m, nil
}

type emptySource struct{}

func (emptySource) Name() string { return "empty" }
func (emptySource) Read(ctx context.Context) (*cellular.Measurement, error) {
	return nil, nil
}

func TestTickEmitsOnEncryptionDowngrade(t *testing.T) {
	logger := logx.NewLogger("error", "test")
	sample := &cellular.Measurement{
		Timestamp:      time.Unix(0, 0),
		Tower:          cellular.Tower{CellID: "c1", LAC: "1"},
		SignalStrength: -80,
		Technology:     cellular.Tech4G,
		Encryption:     cellular.EncNone,
	}
	sink := &recordingSink{}
	acq := ingest.New(logger, singleSource{m: sample})
	orch := New(DefaultConfig(), acq, sink, logger, nil)

	orch.tick(context.Background())

	if len(sink.batches) != 1 {
		t.Fatalf("expected one emitted batch, got %d", len(sink.batches))
	}
	found := false
	for _, th := range sink.batches[0] {
		if th.ThreatType == cellular.ThreatEncryptionDowngrade {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected ENCRYPTION_DOWNGRADE in emitted batch, got %v", sink.batches[0])
	}
}

func TestTickSkipsWhenNoSampleAvailable(t *testing.T) {
	logger := logx.NewLogger("error", "test")
	sink := &recordingSink{}
	acq := ingest.New(logger, emptySource{})
	orch := New(DefaultConfig(), acq, sink, logger, nil)

	orch.tick(context.Background())

	if len(sink.batches) != 0 {
		t.Fatalf("expected no emitted batches when no sample is available, got %d", len(sink.batches))
	}
}
