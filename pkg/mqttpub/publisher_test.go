package mqttpub

import (
	"context"
	"testing"

	"github.com/MdrnDme/clutch/pkg/cellular"
	"github.com/MdrnDme/clutch/pkg/logx"
)

func TestDisabledPublisherIsNoOp(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	p := New(cfg, logx.NewLogger("error", "test"))

	if err := p.Connect(); err != nil {
		t.Fatalf("Connect on disabled publisher should not error: %v", err)
	}
	if err := p.PublishMeasurement(context.Background(), &cellular.Measurement{}); err != nil {
		t.Fatalf("PublishMeasurement on disabled publisher should not error: %v", err)
	}
	if p.IsConnected() {
		t.Fatalf("expected disabled publisher to report not connected")
	}
}
