// Package metrics exposes ambient Prometheus instrumentation for the
// edge agent and server, grounded on cmd/autonomyd/main.go's
// metrics-server lifecycle (NewServer/Start/UpdateMetrics) using
// github.com/prometheus/client_golang.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every metric this system emits.
type Registry struct {
	ThreatsDetected    *prometheus.CounterVec
	DetectorLatency    *prometheus.HistogramVec
	ActiveSessions     prometheus.Gauge
	StorageWriteLatency prometheus.Histogram
	ModelTrainingEvents prometheus.Counter
	AcquisitionFailures prometheus.Counter
}

// New creates and registers every metric.
func New() *Registry {
	return &Registry{
		ThreatsDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "clutch_threats_detected_total",
			Help: "Count of threats detected, by threat_type and severity.",
		}, []string{"threat_type", "severity"}),

		DetectorLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clutch_detector_duration_seconds",
			Help:    "Time spent running a detector pass, by detector name.",
			Buckets: prometheus.DefBuckets,
		}, []string{"detector"}),

		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "clutch_active_sessions",
			Help: "Number of currently registered device sessions.",
		}),

		StorageWriteLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "clutch_storage_write_duration_seconds",
			Help:    "Time spent writing a threat row to the store.",
			Buckets: prometheus.DefBuckets,
		}),

		ModelTrainingEvents: promauto.NewCounter(prometheus.CounterOpts{
			Name: "clutch_anomaly_model_training_events_total",
			Help: "Count of anomaly model (re)training runs.",
		}),

		AcquisitionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "clutch_acquisition_failures_total",
			Help: "Count of ticks where every measurement source failed or was exhausted.",
		}),
	}
}

// Handler returns the /metrics HTTP handler.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}
