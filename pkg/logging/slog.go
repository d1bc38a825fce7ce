package logging

import (
	"log/slog"
	"os"
)

// New builds the process-wide JSON logger. The service name is attached so
// shop-service and delivery-worker lines stay distinguishable in shared sinks.
func New(service string) *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("LOG_DEBUG") != "" {
		level = slog.LevelDebug
	}
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(h).With("service", service)
}
