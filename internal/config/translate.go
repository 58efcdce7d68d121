package config

import (
	"fmt"
	"time"

	"gridbot/internal/core"
	"gridbot/internal/orchestrator"
	"gridbot/internal/risk"

	"github.com/shopspring/decimal"
)

// decimalOrZero parses s as a decimal, treating an empty string as zero
// rather than an error — most of these fields are optional knobs.
func decimalOrZero(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func toGridConfig(g GridConfig) (core.GridConfig, error) {
	lower, err := decimal.NewFromString(g.Lower)
	if err != nil {
		return core.GridConfig{}, fmt.Errorf("config: grid %s: lower: %w", g.Symbol, err)
	}
	upper, err := decimal.NewFromString(g.Upper)
	if err != nil {
		return core.GridConfig{}, fmt.Errorf("config: grid %s: upper: %w", g.Symbol, err)
	}
	orderSizeQuote, err := decimalOrZero(g.OrderSizeQuote)
	if err != nil {
		return core.GridConfig{}, fmt.Errorf("config: grid %s: orderSizeQuote: %w", g.Symbol, err)
	}
	orderSizeBase, err := decimalOrZero(g.OrderSizeBase)
	if err != nil {
		return core.GridConfig{}, fmt.Errorf("config: grid %s: orderSizeBase: %w", g.Symbol, err)
	}
	triggerPct, err := decimalOrZero(g.Trailing.TriggerPct)
	if err != nil {
		return core.GridConfig{}, fmt.Errorf("config: grid %s: trailing.triggerPct: %w", g.Symbol, err)
	}
	rebalancePct, err := decimalOrZero(g.Trailing.RebalancePct)
	if err != nil {
		return core.GridConfig{}, fmt.Errorf("config: grid %s: trailing.rebalancePct: %w", g.Symbol, err)
	}

	return core.GridConfig{
		Symbol:         g.Symbol,
		Lower:          lower,
		Upper:          upper,
		NumLevels:      g.NumLevels,
		Spacing:        core.Spacing(g.Spacing),
		OrderSizeQuote: orderSizeQuote,
		OrderSizeBase:  orderSizeBase,
		Trailing: core.TrailingConfig{
			Enabled:      g.Trailing.Enabled,
			TriggerPct:   triggerPct,
			RebalancePct: rebalancePct,
			CooldownSecs: g.Trailing.CooldownSecs,
		},
	}, nil
}

func toRiskConfig(r RiskConfig) (risk.Config, error) {
	maxPositionQuote, err := decimalOrZero(r.MaxPositionQuote)
	if err != nil {
		return risk.Config{}, fmt.Errorf("config: risk.maxPositionQuote: %w", err)
	}
	maxPositionQuotePerPair, err := decimalOrZero(r.MaxPositionQuotePerPair)
	if err != nil {
		return risk.Config{}, fmt.Errorf("config: risk.maxPositionQuotePerPair: %w", err)
	}
	stopLossPct, err := decimalOrZero(r.StopLossPct)
	if err != nil {
		return risk.Config{}, fmt.Errorf("config: risk.stopLossPct: %w", err)
	}
	takeProfitPct, err := decimalOrZero(r.TakeProfitPct)
	if err != nil {
		return risk.Config{}, fmt.Errorf("config: risk.takeProfitPct: %w", err)
	}
	maxDrawdownPct, err := decimalOrZero(r.MaxDrawdownPct)
	if err != nil {
		return risk.Config{}, fmt.Errorf("config: risk.maxDrawdownPct: %w", err)
	}

	return risk.Config{
		MaxOpenOrders:           r.MaxOpenOrders,
		StopLossPct:             stopLossPct,
		TakeProfitPct:           takeProfitPct,
		MaxDrawdownPct:          maxDrawdownPct,
		MaxPositionQuotePerPair: maxPositionQuotePerPair,
		MaxPositionQuote:        maxPositionQuote,
		SentimentGateEnabled:    r.SentimentGateEnabled,
		ExtremeFearThreshold:    r.ExtremeFearThreshold,
	}, nil
}

// ToOrchestratorConfig translates the YAML document into the core-typed
// shape orchestrator.New needs, applying defaults for knobs the document
// leaves unset.
func (c *Config) ToOrchestratorConfig() (orchestrator.Config, error) {
	grids := make([]core.GridConfig, 0, len(c.Grids))
	for _, g := range c.Grids {
		gc, err := toGridConfig(g)
		if err != nil {
			return orchestrator.Config{}, err
		}
		grids = append(grids, gc)
	}

	riskCfg, err := toRiskConfig(c.Risk)
	if err != nil {
		return orchestrator.Config{}, err
	}

	initialBalance, err := decimal.NewFromString(c.Pool.InitialBalanceQuote)
	if err != nil {
		return orchestrator.Config{}, fmt.Errorf("config: pool.initialBalanceQuote: %w", err)
	}

	stopLossThreshold, err := decimalOrZero(c.PositionStopLoss.ThresholdPct)
	if err != nil {
		return orchestrator.Config{}, fmt.Errorf("config: positionStopLoss.thresholdPct: %w", err)
	}
	pauseThreshold, err := decimalOrZero(c.PairRotation.PauseThreshold)
	if err != nil {
		return orchestrator.Config{}, fmt.Errorf("config: pairRotation.pauseThreshold: %w", err)
	}

	pollMs := c.PollIntervalMs
	if pollMs <= 0 {
		pollMs = 2000
	}
	snapshotSecs := c.SnapshotSecs
	if snapshotSecs <= 0 {
		snapshotSecs = 30
	}

	var sentimentRefresh time.Duration
	if c.Risk.SentimentGateEnabled {
		secs := c.Risk.SentimentRefreshSecs
		if secs <= 0 {
			secs = 900 // 15 minutes: the Fear & Greed Index updates once a day, no need to poll faster
		}
		sentimentRefresh = time.Duration(secs) * time.Second
	}

	pairRotationEvery := 1
	if c.PairRotation.IntervalSecs > 0 {
		pairRotationEvery = (c.PairRotation.IntervalSecs * 1000) / pollMs
		if pairRotationEvery < 1 {
			pairRotationEvery = 1
		}
	}

	momentumSize, err := decimalOrZero(c.MomentumRider.PositionSizeQuote)
	if err != nil {
		return orchestrator.Config{}, fmt.Errorf("config: momentumRider.positionSizeQuote: %w", err)
	}
	dipSize, err := decimalOrZero(c.DipSniper.PositionSizeQuote)
	if err != nil {
		return orchestrator.Config{}, fmt.Errorf("config: dipSniper.positionSizeQuote: %w", err)
	}
	dipThreshold, err := decimalOrZero(c.DipSniper.DipThresholdPct)
	if err != nil {
		return orchestrator.Config{}, fmt.Errorf("config: dipSniper.dipThresholdPct: %w", err)
	}
	dipTakeProfit, err := decimalOrZero(c.DipSniper.TakeProfitPct)
	if err != nil {
		return orchestrator.Config{}, fmt.Errorf("config: dipSniper.takeProfitPct: %w", err)
	}
	dipStopLoss, err := decimalOrZero(c.DipSniper.StopLossPct)
	if err != nil {
		return orchestrator.Config{}, fmt.Errorf("config: dipSniper.stopLossPct: %w", err)
	}

	return orchestrator.Config{
		Grids:               grids,
		Risk:                riskCfg,
		InitialBalanceQuote: initialBalance,

		PollInterval:     time.Duration(pollMs) * time.Millisecond,
		SnapshotInterval: time.Duration(snapshotSecs) * time.Second,

		TrendFilterEnabled: c.TrendFilter.Enabled,
		TrendShortWindow:   c.TrendFilter.ShortWindow,
		TrendLongWindow:    c.TrendFilter.LongWindow,

		StopLossEnabled:      c.PositionStopLoss.Enabled,
		StopLossThresholdPct: stopLossThreshold,
		StopLossCooldownSecs: c.PositionStopLoss.CooldownSecs,

		PairRotationEnabled:     c.PairRotation.Enabled,
		PairRotationEveryNTicks: pairRotationEvery,
		PairRotationMinTrades:   c.PairRotation.MinTrades,
		PairRotationPauseThresh: pauseThreshold,

		SentimentRefreshInterval: sentimentRefresh,

		RecenterOnStart: c.PaperTrading.Enabled && c.PaperTrading.RecenterOnStart,

		MomentumEnabled:           c.MomentumRider.Enabled,
		MomentumPositionSizeQuote: momentumSize,
		MomentumMinTrendConfirms:  c.MomentumRider.MinTrendConfirms,

		DipSniperEnabled:           c.DipSniper.Enabled,
		DipSniperPositionSizeQuote: dipSize,
		DipSniperLookbackCount:     c.DipSniper.LookbackCount,
		DipSniperDipThresholdPct:   dipThreshold,
		DipSniperTakeProfitPct:     dipTakeProfit,
		DipSniperStopLossPct:       dipStopLoss,
		DipSniperCooldownSecs:      c.DipSniper.CooldownSecs,
	}, nil
}
