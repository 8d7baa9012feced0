package logx

import (
	"fmt"
	"sync"
	"time"
)

// PerformanceLogger tracks latency and error-rate metrics for the
// detector pipeline and the server's storage/session operations.
type PerformanceLogger struct {
	logger       *Logger
	metrics      map[string]*PerformanceMetric
	metricsMutex sync.RWMutex
}

// PerformanceMetric tracks performance data for a single named
// operation (a detector, a store write, a session send).
type PerformanceMetric struct {
	Name          string
	Count         int64
	TotalDuration time.Duration
	MinDuration   time.Duration
	MaxDuration   time.Duration
	AvgDuration   time.Duration
	LastExecuted  time.Time
	ErrorCount    int64
	SuccessRate   float64
}

// NewPerformanceLogger creates a new performance logger.
func NewPerformanceLogger(logger *Logger) *PerformanceLogger {
	return &PerformanceLogger{
		logger:  logger,
		metrics: make(map[string]*PerformanceMetric),
	}
}

// Track runs fn, timing it under the named metric, and logs a warning
// if it errors or runs slowly.
func (pl *PerformanceLogger) Track(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	pl.record(name, time.Since(start), err)
	return err
}

func (pl *PerformanceLogger) record(name string, duration time.Duration, err error) {
	pl.metricsMutex.Lock()
	defer pl.metricsMutex.Unlock()

	metric, exists := pl.metrics[name]
	if !exists {
		metric = &PerformanceMetric{Name: name, MinDuration: time.Hour}
		pl.metrics[name] = metric
	}

	metric.Count++
	metric.TotalDuration += duration
	metric.LastExecuted = time.Now()
	if duration < metric.MinDuration {
		metric.MinDuration = duration
	}
	if duration > metric.MaxDuration {
		metric.MaxDuration = duration
	}
	metric.AvgDuration = metric.TotalDuration / time.Duration(metric.Count)

	if err != nil {
		metric.ErrorCount++
	}
	metric.SuccessRate = float64(metric.Count-metric.ErrorCount) / float64(metric.Count) * 100

	if err != nil {
		pl.logger.Error("operation failed", "metric", name, "duration", duration.String(), "error", err.Error())
		return
	}
	if duration > 100*time.Millisecond {
		pl.logger.Warn("slow operation", "metric", name, "duration", duration.String())
	}
}

// GetMetric returns a copy of a named metric, or nil if unseen.
func (pl *PerformanceLogger) GetMetric(name string) *PerformanceMetric {
	pl.metricsMutex.RLock()
	defer pl.metricsMutex.RUnlock()

	m, ok := pl.metrics[name]
	if !ok {
		return nil
	}
	cp := *m
	return &cp
}

// LogSlowOperations logs every tracked operation whose average duration
// exceeds threshold.
func (pl *PerformanceLogger) LogSlowOperations(threshold time.Duration) {
	pl.metricsMutex.RLock()
	defer pl.metricsMutex.RUnlock()

	for name, metric := range pl.metrics {
		if metric.AvgDuration > threshold {
			pl.logger.Warn("slow operation detected",
				"metric", name,
				"avg_duration", metric.AvgDuration.String(),
				"threshold", threshold.String(),
				"total_operations", metric.Count,
			)
		}
	}
}

// LogMetrics logs a summary line per tracked operation.
func (pl *PerformanceLogger) LogMetrics() {
	pl.metricsMutex.RLock()
	defer pl.metricsMutex.RUnlock()

	for name, metric := range pl.metrics {
		pl.logger.Info("performance metric summary",
			"metric", name,
			"total_operations", metric.Count,
			"avg_duration", metric.AvgDuration.String(),
			"success_rate", fmt.Sprintf("%.2f%%", metric.SuccessRate),
			"error_count", metric.ErrorCount,
		)
	}
}
