package application

import (
	"log/slog"
	"time"

	"urna/contexts/electoral-core/polling-station/ports"
)

// ModuleName is the "module" attribute stamped on every log line.
const ModuleName = "electoral-core/polling-station"

// ResolveLogger guarantees a non-nil logger for application/worker code paths.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// ResolveMetrics guarantees a non-nil metrics sink.
func ResolveMetrics(metrics ports.Metrics) ports.Metrics {
	if metrics == nil {
		return noopMetrics{}
	}
	return metrics
}

type noopMetrics struct{}

func (noopMetrics) ObserveAuthorization(bool, error) {}
func (noopMetrics) ObserveCast(bool, error, time.Duration) {}
func (noopMetrics) ObserveResolution(string, error) {}
