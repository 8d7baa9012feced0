// Command clutch-server runs the central correlation server: it accepts
// websocket connections from edge agents, persists reported threats,
// and correlates activity across devices, grounded on
// cmd/autonomyd/main.go's flag parsing, pidfile, and logger bootstrap
// conventions.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MdrnDme/clutch/pkg/config"
	"github.com/MdrnDme/clutch/pkg/logx"
	"github.com/MdrnDme/clutch/pkg/metrics"
	"github.com/MdrnDme/clutch/pkg/pidfile"
	"github.com/MdrnDme/clutch/pkg/session"
	"github.com/MdrnDme/clutch/pkg/store"
)

const (
	appName    = "clutch-server"
	appVersion = "1.0.0"
)

var (
	configPath = flag.String("config", "clutch-server.json", "Path to JSON configuration file")
	pidPath    = flag.String("pid-file", "/tmp/clutch-server.pid", "Path to PID file")
	host       = flag.String("host", "", "Override the listen host")
	port       = flag.Int("port", 0, "Override the listen port")
	ssl        = flag.Bool("ssl", false, "Enable TLS (requires --tls-cert and --tls-key)")
	tlsCert    = flag.String("tls-cert", "", "Path to the TLS certificate")
	tlsKey     = flag.String("tls-key", "", "Path to the TLS key")
	debug      = flag.Bool("debug", false, "Enable debug logging")
	force      = flag.Bool("force", false, "Force start by removing a stale PID file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("%s version %s\n", appName, appVersion)
		os.Exit(0)
	}

	cfg, err := config.LoadServerConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *host != "" {
		cfg.Session.Host = *host
	}
	if *port != 0 {
		cfg.Session.Port = *port
	}
	if *ssl {
		cfg.Session.TLSEnabled = true
	}
	if *tlsCert != "" {
		cfg.Session.TLSCertFile = *tlsCert
	}
	if *tlsKey != "" {
		cfg.Session.TLSKeyFile = *tlsKey
	}
	if *debug {
		cfg.LogLevel = "debug"
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

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open threat store", "error", err.Error())
		os.Exit(1)
	}
	defer st.Close()

	reg := metrics.New()

	srv, err := session.New(cfg.Session, st, logger, reg)
	if err != nil {
		logger.Error("failed to initialize session server", "error", err.Error())
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("clutch-server listening", "version", appVersion, "host", cfg.Session.Host, "port", cfg.Session.Port, "tls", cfg.Session.TLSEnabled)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logger.Error("server exited unexpectedly", "error", err.Error())
			os.Exit(1)
		}
	}

	logger.Info("clutch-server stopped cleanly")
	os.Exit(0)
}
