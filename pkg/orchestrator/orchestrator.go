// Package orchestrator implements the Edge Orchestrator (C7): a
// ticker-based main loop pulling one sample per tick and running it
// through the detection pipeline (C2-C6), grounded on
// cmd/autonomyd/main.go's runMainLoop (time.NewTicker + select over
// ctx.Done(), skip-and-log on a tick's own error rather than aborting
// the loop).
package orchestrator

import (
	"context"
	"time"

	"github.com/MdrnDme/clutch/pkg/anomaly"
	"github.com/MdrnDme/clutch/pkg/cellular"
	"github.com/MdrnDme/clutch/pkg/detect"
	"github.com/MdrnDme/clutch/pkg/ingest"
	"github.com/MdrnDme/clutch/pkg/logx"
	"github.com/MdrnDme/clutch/pkg/metrics"
	"github.com/MdrnDme/clutch/pkg/signature"
	"github.com/MdrnDme/clutch/pkg/towers"
)

// Sink receives every threat the pipeline emits on a tick, in the
// order C4 (rule detectors) -> C5 (signature matcher) -> C6 (anomaly
// model).
type Sink interface {
	Emit(threats []cellular.Threat)
}

// Orchestrator owns the detection context and runs one pipeline pass
// per tick.
type Orchestrator struct {
	acquirer  *ingest.Acquirer
	detectCtx *detect.DetectorContext
	matcher   *signature.Matcher
	model     *anomaly.Model
	sink      Sink
	logger    *logx.Logger
	interval  time.Duration
	metrics   *metrics.Registry

	towerHistory []towers.HistoryPoint
}

// Config configures an Orchestrator.
type Config struct {
	Interval time.Duration
}

// DefaultConfig returns a 10-second tick interval, matching the
// original's default polling cadence.
func DefaultConfig() Config {
	return Config{Interval: 10 * time.Second}
}

// New wires an Orchestrator from its collaborators. reg may be nil, in
// which case metrics are skipped.
func New(cfg Config, acquirer *ingest.Acquirer, sink Sink, logger *logx.Logger, reg *metrics.Registry) *Orchestrator {
	return &Orchestrator{
		acquirer:  acquirer,
		detectCtx: detect.NewContext(),
		matcher:   signature.New(),
		model:     anomaly.New(),
		sink:      sink,
		logger:    logger,
		interval:  cfg.Interval,
		metrics:   reg,
	}
}

// Towers returns every tower observed so far, for export operations (S2).
func (o *Orchestrator) Towers() []*cellular.Tower {
	return o.detectCtx.Towers.All()
}

// Run blocks, ticking every interval until ctx is cancelled. Each tick
// that fails to acquire a sample, or for which no sample is currently
// available, is skipped without stopping the loop.
func (o *Orchestrator) Run(ctx context.Context) {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	o.logger.Info("orchestrator started", "interval", o.interval.String())

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("orchestrator stopped")
			return
		case <-ticker.C:
			o.tick(ctx)
		}
	}
}

func (o *Orchestrator) tick(ctx context.Context) {
	sample, err := o.acquirer.Acquire(ctx)
	if err != nil {
		o.logger.Error("acquisition failed", "error", err.Error())
		if o.metrics != nil {
			o.metrics.AcquisitionFailures.Inc()
		}
		return
	}
	if sample == nil {
		o.logger.Debug("no sample available this tick")
		if o.metrics != nil {
			o.metrics.AcquisitionFailures.Inc()
		}
		return
	}

	o.towerHistory = append(o.towerHistory, towers.HistoryPoint{
		Timestamp: sample.Timestamp,
		TowerKey:  sample.Tower.ID().String(),
	})
	if len(o.towerHistory) > detect.BufferCapacity {
		o.towerHistory = o.towerHistory[len(o.towerHistory)-detect.BufferCapacity:]
	}

	start := time.Now()
	var threats []cellular.Threat
	threats = append(threats, detect.RunDetectors(o.detectCtx, *sample)...)
	threats = append(threats, o.matcher.Evaluate(o.detectCtx.Buffer.All())...)
	threats = append(threats, o.model.Observe(sample, o.detectCtx.Buffer.All(), o.detectCtx.Stats, o.towerHistory)...)
	if o.metrics != nil {
		o.metrics.DetectorLatency.WithLabelValues("pipeline").Observe(time.Since(start).Seconds())
		for _, t := range threats {
			o.metrics.ThreatsDetected.WithLabelValues(string(t.ThreatType), string(t.Severity)).Inc()
		}
	}

	if len(threats) > 0 {
		o.sink.Emit(threats)
	}
}
