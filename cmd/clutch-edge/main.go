// Command clutch-edge runs the edge agent: it acquires cellular
// measurements, runs them through the detection pipeline, and forwards
// any threats over MQTT, grounded on cmd/autonomyd/main.go's flag
// parsing, pidfile, and logger bootstrap conventions.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/MdrnDme/clutch/pkg/cellular"
	"github.com/MdrnDme/clutch/pkg/config"
	"github.com/MdrnDme/clutch/pkg/geocode"
	"github.com/MdrnDme/clutch/pkg/ingest"
	"github.com/MdrnDme/clutch/pkg/logx"
	"github.com/MdrnDme/clutch/pkg/metrics"
	"github.com/MdrnDme/clutch/pkg/mqttpub"
	"github.com/MdrnDme/clutch/pkg/orchestrator"
	"github.com/MdrnDme/clutch/pkg/pidfile"
)

const (
	appName    = "clutch-edge"
	appVersion = "1.0.0"
)

var (
	configPath = flag.String("config", "clutch-edge.json", "Path to JSON configuration file")
	pidPath    = flag.String("pid-file", "/tmp/clutch-edge.pid", "Path to PID file")
	interval   = flag.Int("interval", 0, "Override the tick interval in seconds")
	reportPath = flag.String("report", "", "Write a summary report to this path on shutdown")
	exportPath = flag.String("export", "", "Write a full data export to this path on shutdown")
	force      = flag.Bool("force", false, "Force start by removing a stale PID file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("%s version %s\n", appName, appVersion)
		os.Exit(0)
	}

	cfg, err := config.LoadEdgeConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *interval > 0 {
		cfg.IntervalSeconds = *interval
	}

	logger := logx.NewLogger(cfg.LogLevel, appName)

	pid := pidfile.New(*pidPath)
	running, existingPID, err := pid.CheckRunning()
	if err != nil {
		logger.Error("failed to check for a running instance", "error", err.Error())
		os.Exit(1)
	}
	if running {
		if !*force {
			fmt.Fprintf(os.Stderr, "%s is already running with PID %d; use --force to override\n", appName, existingPID)
			os.Exit(1)
		}
		if err := pid.ForceRemove(); err != nil {
			logger.Error("failed to remove stale PID file", "error", err.Error())
			os.Exit(1)
		}
	}
	if err := pid.Create(); err != nil {
		logger.Error("failed to create PID file", "error", err.Error())
		os.Exit(1)
	}
	defer pid.Remove()

	reg := metrics.New()

	geocoder, err := geocode.New(cfg.Geocode)
	if err != nil {
		logger.Error("failed to initialize geocoder", "error", err.Error())
		os.Exit(1)
	}

	publisher := mqttpub.New(cfg.MQTT, logger)
	if err := publisher.Connect(); err != nil {
		logger.Warn("mqtt connect failed, continuing without telemetry publishing", "error", err.Error())
	}
	defer publisher.Disconnect()

	sink := &combinedSink{publisher: publisher, geocoder: geocoder, logger: logger}

	acquirer := ingest.New(logger, ingest.UbusSource{})

	orchCfg := orchestrator.Config{Interval: cfg.Interval()}
	orch := orchestrator.New(orchCfg, acquirer, sink, logger, reg)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	logger.Info("clutch-edge starting", "version", appVersion, "interval", cfg.Interval().String())
	orch.Run(ctx)

	if *reportPath != "" {
		report := orch.Report(sink.All())
		if err := orchestrator.WriteReport(*reportPath, report); err != nil {
			logger.Error("failed to write report", "error", err.Error())
			os.Exit(1)
		}
	}
	if *exportPath != "" {
		if err := orchestrator.WriteExport(*exportPath, orch.Towers(), sink.All(), cfg); err != nil {
			logger.Error("failed to write export", "error", err.Error())
			os.Exit(1)
		}
	}

	logger.Info("clutch-edge stopped cleanly")
	os.Exit(0)
}

// combinedSink forwards threats over MQTT and retains an in-memory
// history for the --report/--export commands.
type combinedSink struct {
	publisher *mqttpub.Publisher
	geocoder  *geocode.Geocoder
	logger    *logx.Logger

	mu      sync.Mutex
	history []cellular.Threat
}

const maxSinkHistory = 1000

func (s *combinedSink) Emit(threats []cellular.Threat) {
	for i := range threats {
		if threats[i].Location != nil {
			place := s.geocoder.Reverse(context.Background(), *threats[i].Location)
			if place != "" {
				threats[i].Description = threats[i].Description + " near " + place
			}
		}
	}

	s.mu.Lock()
	s.history = append(s.history, threats...)
	if len(s.history) > maxSinkHistory {
		s.history = s.history[len(s.history)-maxSinkHistory:]
	}
	s.mu.Unlock()

	for _, t := range threats {
		threat := t
		if err := s.publisher.PublishThreat(context.Background(), &threat); err != nil {
			s.logger.Warn("failed to publish threat", "error", err.Error(), "threat_id", threat.ThreatID)
		}
	}
}

func (s *combinedSink) All() []cellular.Threat {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]cellular.Threat, len(s.history))
	copy(out, s.history)
	return out
}
