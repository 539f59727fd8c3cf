// Package logger provides a configured zerolog logger.
package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New returns a zerolog.Logger tagged with the service name. The level is
// taken from CONCIERGE_LOG_LEVEL (debug, info, warn, error); default info.
func New(serviceName string) zerolog.Logger {
	level := zerolog.InfoLevel
	if v := os.Getenv("CONCIERGE_LOG_LEVEL"); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}
	return zerolog.New(os.Stdout).Level(level).With().
		Str("service", serviceName).
		Timestamp().
		Logger()
}
