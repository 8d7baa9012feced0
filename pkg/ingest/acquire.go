// Package ingest implements the Measurement ingestion boundary (C1): a
// layered-fallback acquisition contract grounded on
// pkg/gps/cellular_data_collector.go's GetServingCell/GetNeighborCells
// (try ubus, then AT commands, then sysfs, degrade to "unavailable"
// rather than synthesizing data).
package ingest

import (
	"context"
	"time"

	"github.com/MdrnDme/clutch/pkg/cellular"
	"github.com/MdrnDme/clutch/pkg/logx"
)

// AcquireTimeout bounds how long a single Acquire call may take.
const AcquireTimeout = 10 * time.Second

// Source is a single collection method an Acquirer tries, in priority
// order. A Source returns (nil, err) when it cannot produce a reading;
// the Acquirer moves on to the next Source rather than failing outright.
type Source interface {
	Name() string
	Read(ctx context.Context) (*cellular.Measurement, error)
}

// Acquirer tries each configured Source in order and returns the first
// successful reading. Per the design decision recorded for the spec's
// acquisition Open Question, there is deliberately no synthetic/
// simulated fallback Source wired into production acquirers: when every
// real Source fails, Acquire returns (nil, nil), never fabricated data.
type Acquirer struct {
	sources []Source
	logger  *logx.Logger
}

// New creates an Acquirer trying sources in the given priority order.
func New(logger *logx.Logger, sources ...Source) *Acquirer {
	return &Acquirer{sources: sources, logger: logger}
}

// Acquire tries every source in order within AcquireTimeout and returns
// the first successful Measurement. Returns (nil, nil) — not an error —
// when no source could produce a reading; callers must treat this as
// "skip this tick", matching the orchestrator's skip-on-unavailable
// semantics.
func (a *Acquirer) Acquire(ctx context.Context) (*cellular.Measurement, error) {
	ctx, cancel := context.WithTimeout(ctx, AcquireTimeout)
	defer cancel()

	for _, src := range a.sources {
		m, err := src.Read(ctx)
		if err == nil && m != nil {
			return m, nil
		}
		if a.logger != nil {
			a.logger.Debug("acquisition source unavailable", "source", src.Name(), "error", errString(err))
		}
	}
	return nil, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
