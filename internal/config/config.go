// Package config loads the YAML configuration document into typed
// values with per-section validation, following a
// load-expand-unmarshal-validate pipeline.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the top-level document.
type Config struct {
	Exchange           ExchangeConfig           `yaml:"exchange"`
	Grids              []GridConfig             `yaml:"grids"`
	Grid               *GridConfig              `yaml:"grid"` // legacy single-grid form, wrapped into Grids
	Risk               RiskConfig               `yaml:"risk"`
	Pool               PoolConfig               `yaml:"pool"`
	PaperTrading       PaperTradingConfig       `yaml:"paperTrading"`
	Dashboard          DashboardConfig          `yaml:"dashboard"`
	TrendFilter        TrendFilterConfig        `yaml:"trendFilter"`
	PositionStopLoss   PositionStopLossConfig   `yaml:"positionStopLoss"`
	PairRotation       PairRotationConfig       `yaml:"pairRotation"`
	StrategyAllocation StrategyAllocationConfig `yaml:"strategyAllocation"`
	MomentumRider      MomentumRiderConfig      `yaml:"momentumRider"`
	DipSniper          DipSniperConfig          `yaml:"dipSniper"`
	Alerting           AlertingConfig           `yaml:"alerting"`
	LogLevel           string                   `yaml:"logLevel"`
	DBPath             string                   `yaml:"dbPath"`
	PollIntervalMs     int                      `yaml:"pollIntervalMs"`
	SnapshotSecs       int                      `yaml:"snapshotSecs"`
}

// AlertingConfig wires the optional Slack/Telegram alert channels.
type AlertingConfig struct {
	SlackWebhookURL   Secret `yaml:"slackWebhookUrl"`
	TelegramBotToken  Secret `yaml:"telegramBotToken"`
	TelegramChatID    string `yaml:"telegramChatId"`
}

// ExchangeConfig names the venue and its transport knobs.
type ExchangeConfig struct {
	Name        string `yaml:"name"`
	Sandbox     bool   `yaml:"sandbox"`
	RateLimitMs int    `yaml:"rateLimitMs"`
	APIKey      Secret `yaml:"apiKey"`
	SecretKey   Secret `yaml:"secretKey"`
}

// GridConfig is the YAML shape of core.GridConfig, decimals as strings so
// yaml.v3 never round-trips them through float64.
type GridConfig struct {
	Symbol         string         `yaml:"symbol"`
	Lower          string         `yaml:"lower"`
	Upper          string         `yaml:"upper"`
	NumLevels      int            `yaml:"numLevels"`
	Spacing        string         `yaml:"spacing"`
	OrderSizeQuote string         `yaml:"orderSizeQuote"`
	OrderSizeBase  string         `yaml:"orderSizeBase"`
	Trailing       TrailingConfig `yaml:"trailing"`
}

// TrailingConfig is the YAML shape of core.TrailingConfig.
type TrailingConfig struct {
	Enabled      bool   `yaml:"enabled"`
	TriggerPct   string `yaml:"triggerPct"`
	RebalancePct string `yaml:"rebalancePct"`
	CooldownSecs int    `yaml:"cooldownSecs"`
}

// RiskConfig mirrors risk.Config with string decimals.
type RiskConfig struct {
	MaxPositionQuote        string `yaml:"maxPositionQuote"`
	MaxPositionQuotePerPair string `yaml:"maxPositionQuotePerPair"`
	MaxOpenOrders           int    `yaml:"maxOpenOrders"`
	StopLossPct             string `yaml:"stopLossPct"`
	TakeProfitPct           string `yaml:"takeProfitPct"`
	MaxDrawdownPct          string `yaml:"maxDrawdownPct"`
	SentimentGateEnabled    bool   `yaml:"sentimentGateEnabled"`
	ExtremeFearThreshold    int    `yaml:"extremeFearThreshold"`
	SentimentRefreshSecs    int    `yaml:"sentimentRefreshSecs"`
}

// PoolConfig is the shared capital allocation.
type PoolConfig struct {
	InitialBalanceQuote string `yaml:"initialBalanceQuote"`
}

// PaperTradingConfig configures the simulator adapter.
type PaperTradingConfig struct {
	Enabled             bool   `yaml:"enabled"`
	InitialBalanceQuote string `yaml:"initialBalanceQuote"`
	InitialBalanceBase  string `yaml:"initialBalanceBase"`
	SimulatedFeePct     string `yaml:"simulatedFeePct"`
	RecenterOnStart     bool   `yaml:"recenterOnStart"`
}

// DashboardConfig configures the push-channel HTTP server.
type DashboardConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	EnableControls bool   `yaml:"enableControls"`
}

// TrendFilterConfig configures signals.TrendFilter.
type TrendFilterConfig struct {
	Enabled     bool `yaml:"enabled"`
	ShortWindow int  `yaml:"shortWindow"`
	LongWindow  int  `yaml:"longWindow"`
}

// PositionStopLossConfig configures signals.PositionStopLoss.
type PositionStopLossConfig struct {
	Enabled      bool   `yaml:"enabled"`
	ThresholdPct string `yaml:"thresholdPct"`
	CooldownSecs int    `yaml:"cooldownSecs"`
}

// PairRotationConfig configures signals.PairRotator.
type PairRotationConfig struct {
	Enabled        bool   `yaml:"enabled"`
	IntervalSecs   int    `yaml:"intervalSecs"`
	MinTrades      int    `yaml:"minTrades"`
	PauseThreshold string `yaml:"pauseThreshold"`
}

// StrategyAllocationConfig holds the grid / momentum / dip-sniper shares
// of the shared pool; the three percentages must sum to 100. They are
// only validated: ToOrchestratorConfig does not read them, so no
// strategy's capital is limited to its share.
type StrategyAllocationConfig struct {
	GridPct      float64 `yaml:"gridPct"`
	MomentumPct  float64 `yaml:"momentumPct"`
	DipSniperPct float64 `yaml:"dipSniperPct"`
}

// MomentumRiderConfig configures strategy.MomentumRider.
type MomentumRiderConfig struct {
	Enabled           bool   `yaml:"enabled"`
	PositionSizeQuote string `yaml:"positionSizeQuote"`
	MinTrendConfirms  int    `yaml:"minTrendConfirms"`
}

// DipSniperConfig configures strategy.DipSniper.
type DipSniperConfig struct {
	Enabled           bool   `yaml:"enabled"`
	PositionSizeQuote string `yaml:"positionSizeQuote"`
	LookbackCount     int    `yaml:"lookbackCount"`
	DipThresholdPct   string `yaml:"dipThresholdPct"`
	TakeProfitPct     string `yaml:"takeProfitPct"`
	StopLossPct       string `yaml:"stopLossPct"`
	CooldownSecs      int    `yaml:"cooldownSecs"`
}

// ValidationError names the offending field and what's wrong with it.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config: field %q: %s", e.Field, e.Message)
}

// Load reads filename, expands GRIDBOT_-prefixed environment references,
// unmarshals, wraps a legacy single `grid:` block into Grids, and
// validates every section.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", filename, err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", filename, err)
	}

	if cfg.Grid != nil {
		cfg.Grids = append(cfg.Grids, *cfg.Grid)
		cfg.Grid = nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate runs every section's own Validate method and joins failures.
func (c *Config) Validate() error {
	var msgs []string
	for _, fn := range []func() error{
		c.validateExchange,
		c.validateGrids,
		c.validateRisk,
		c.validatePool,
		c.validateStrategyAllocation,
	} {
		if err := fn(); err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	if len(msgs) > 0 {
		return fmt.Errorf("config: validation failed:\n%s", strings.Join(msgs, "\n"))
	}
	return nil
}

func (c *Config) validateExchange() error {
	if c.Exchange.Name == "" {
		return ValidationError{Field: "exchange.name", Message: "required"}
	}
	return nil
}

func (c *Config) validateGrids() error {
	if len(c.Grids) == 0 {
		return ValidationError{Field: "grids", Message: "at least one grid must be configured"}
	}
	seen := make(map[string]struct{})
	for _, g := range c.Grids {
		if g.Symbol == "" {
			return ValidationError{Field: "grids[].symbol", Message: "required"}
		}
		if _, dup := seen[g.Symbol]; dup {
			return ValidationError{Field: "grids[].symbol", Message: fmt.Sprintf("duplicate symbol %q", g.Symbol)}
		}
		seen[g.Symbol] = struct{}{}
		if g.NumLevels < 2 || g.NumLevels > 200 {
			return ValidationError{Field: "grids[].numLevels", Message: "must be in [2,200]"}
		}
		if g.Spacing != "arithmetic" && g.Spacing != "geometric" {
			return ValidationError{Field: "grids[].spacing", Message: "must be arithmetic or geometric"}
		}
		if _, err := decimal.NewFromString(g.Lower); err != nil {
			return ValidationError{Field: "grids[].lower", Message: "must be a decimal"}
		}
		if _, err := decimal.NewFromString(g.Upper); err != nil {
			return ValidationError{Field: "grids[].upper", Message: "must be a decimal"}
		}
		hasQuote := g.OrderSizeQuote != ""
		hasBase := g.OrderSizeBase != ""
		if hasQuote == hasBase {
			return ValidationError{Field: "grids[].orderSize{Quote,Base}", Message: "exactly one must be set"}
		}
	}
	return nil
}

func (c *Config) validateRisk() error {
	if c.Risk.MaxOpenOrders <= 0 {
		return ValidationError{Field: "risk.maxOpenOrders", Message: "must be positive"}
	}
	return nil
}

// validateStrategyAllocation requires the three percentages to sum to
// 100, skipping the check entirely when the document leaves the section
// at its zero value.
func (c *Config) validateStrategyAllocation() error {
	a := c.StrategyAllocation
	if a.GridPct == 0 && a.MomentumPct == 0 && a.DipSniperPct == 0 {
		return nil
	}
	total := a.GridPct + a.MomentumPct + a.DipSniperPct
	if total < 99.99 || total > 100.01 {
		return ValidationError{Field: "strategyAllocation", Message: fmt.Sprintf("gridPct+momentumPct+dipSniperPct must sum to 100, got %g", total)}
	}
	return nil
}

func (c *Config) validatePool() error {
	if c.Pool.InitialBalanceQuote == "" {
		return ValidationError{Field: "pool.initialBalanceQuote", Message: "required"}
	}
	if _, err := decimal.NewFromString(c.Pool.InitialBalanceQuote); err != nil {
		return ValidationError{Field: "pool.initialBalanceQuote", Message: "must be a decimal"}
	}
	return nil
}

// expandEnvVars only expands GRIDBOT_-prefixed references, leaving any
// other ${VAR} form in the document untouched for a later expander.
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		if !strings.HasPrefix(key, "GRIDBOT_") {
			return "${" + key + "}"
		}
		return os.Getenv(key)
	})
}
