package bootstrap

import (
	"gridbot/internal/core"
	"gridbot/internal/logging"
)

// InitLogger builds the process-wide logger from the configured level.
func InitLogger(cfg *Config) (core.ILogger, error) {
	level := cfg.LogLevel
	if level == "" {
		level = "INFO"
	}
	return logging.NewZapLogger(level)
}
