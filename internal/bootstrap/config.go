package bootstrap

import (
	"fmt"

	"gridbot/internal/config"
)

// Config is an alias for the project's main configuration struct.
type Config = config.Config

// LoadConfig delegates to the project's config loader, then runs
// cross-section sanity checks Validate doesn't cover on its own.
func LoadConfig(path string) (*Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := checkPreFlight(cfg); err != nil {
		return nil, fmt.Errorf("pre-flight checks failed: %w", err)
	}
	return cfg, nil
}

// checkPreFlight catches configuration combinations that are individually
// valid but jointly useless or unsafe.
func checkPreFlight(cfg *Config) error {
	if cfg.PairRotation.Enabled && len(cfg.Grids) < 2 {
		return fmt.Errorf("pairRotation.enabled requires at least two grids configured")
	}
	if cfg.PositionStopLoss.Enabled && cfg.PositionStopLoss.ThresholdPct == "" {
		return fmt.Errorf("positionStopLoss.enabled requires thresholdPct")
	}
	if cfg.TrendFilter.Enabled && cfg.TrendFilter.ShortWindow >= cfg.TrendFilter.LongWindow {
		return fmt.Errorf("trendFilter.shortWindow must be less than longWindow")
	}
	return nil
}
