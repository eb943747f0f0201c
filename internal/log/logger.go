// Package log configures the gateway's structured JSON logging. Every line
// carries the service name so aggregated logs from mixed deployments stay
// attributable; subsystems attach a component field, and per-job log sites
// attach the scan identity with WithScan.
package log

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

const serviceName = "scopegw"

var (
	once   sync.Once
	logger *slog.Logger
)

// Setup initializes the global logger at the given level. Later calls are
// no-ops; the first configuration wins for the life of the process.
func Setup(level string) {
	once.Do(func() {
		handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: parseLevel(level),
		})
		logger = slog.New(handler).With(slog.String("service", serviceName))
		slog.SetDefault(logger)
	})
}

// parseLevel maps a config log level to slog. Unrecognized values fall back
// to INFO rather than failing startup.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Get returns the configured logger, initializing at INFO if Setup has not
// run yet.
func Get() *slog.Logger {
	if logger == nil {
		Setup("INFO")
	}
	return logger
}

// WithComponent returns a logger for one gateway subsystem (api, scan,
// policy, webhook, ...).
func WithComponent(name string) *slog.Logger {
	return Get().With(slog.String("component", name))
}

// WithScan returns a logger carrying a scan job's identity. job_id and tool
// are the fields operators grep for when tracing one scan end to end.
func WithScan(jobID, tool string) *slog.Logger {
	return Get().With(slog.String("job_id", jobID), slog.String("tool", tool))
}
