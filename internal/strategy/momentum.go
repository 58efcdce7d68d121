// Package strategy implements the ancillary, opportunistic strategies
// that trade out of the same shared capital pool GridEngine draws from:
// MomentumRider (trend-following) and DipSniper (mean-reversion on sharp
// drops). Neither owns its own balance; both gate entries through
// PositionTracker.CanAffordBuy exactly like a grid level would.
package strategy

import (
	"context"
	"sync"

	"gridbot/internal/core"
	"gridbot/internal/position"
	"gridbot/internal/signals"

	"github.com/shopspring/decimal"
)

// MomentumConfig configures MomentumRider.
type MomentumConfig struct {
	PositionSizeQuote decimal.Decimal
	MinTrendConfirms  int
}

// MomentumRider buys once TrendFilter has confirmed an UP trend for
// MinTrendConfirms consecutive ticks and no position is held, then
// market-sells the full position the instant the trend flips to DOWN.
type MomentumRider struct {
	cfg       MomentumConfig
	exchange  core.ExchangeAdapter
	positions *position.Tracker
	trend     *signals.TrendFilter
	logger    core.ILogger

	mu         sync.Mutex
	upConfirms map[string]int
}

// NewMomentumRider builds a rider. trend may be nil, in which case it
// always observes TrendNeutral and never trades.
func NewMomentumRider(cfg MomentumConfig, exchange core.ExchangeAdapter, positions *position.Tracker, trend *signals.TrendFilter, logger core.ILogger) *MomentumRider {
	return &MomentumRider{
		cfg:        cfg,
		exchange:   exchange,
		positions:  positions,
		trend:      trend,
		logger:     logger.WithField("component", "momentum_rider"),
		upConfirms: make(map[string]int),
	}
}

// Evaluate runs one symbol's decision for the current tick's price.
func (m *MomentumRider) Evaluate(ctx context.Context, symbol string, price decimal.Decimal) {
	if !price.IsPositive() {
		return
	}

	trend := signals.TrendNeutral
	if m.trend != nil {
		trend = m.trend.Trend(symbol)
	}
	pair := m.positions.Pair(symbol)
	hasPosition := pair.BaseBalance.IsPositive()

	m.mu.Lock()
	if trend == signals.TrendUp {
		m.upConfirms[symbol]++
	} else {
		m.upConfirms[symbol] = 0
	}
	confirms := m.upConfirms[symbol]
	m.mu.Unlock()

	switch {
	case hasPosition && trend == signals.TrendDown:
		m.sell(ctx, symbol, pair.BaseBalance, price, pair.AvgEntryPrice)
	case !hasPosition && trend == signals.TrendUp && confirms >= m.cfg.MinTrendConfirms && m.positions.CanAffordBuy(m.cfg.PositionSizeQuote):
		amount := m.cfg.PositionSizeQuote.Div(price)
		m.buy(ctx, symbol, amount, price)
	}
}

func (m *MomentumRider) buy(ctx context.Context, symbol string, amount, price decimal.Decimal) {
	order, err := m.exchange.PlaceMarket(ctx, symbol, core.Buy, amount)
	if err != nil {
		m.logger.Error("momentum buy failed", "symbol", symbol, "error", err)
		return
	}
	if err := m.positions.RecordFill(symbol, core.Buy, order.FilledAmount, order.AvgFillPrice, order.Fee); err != nil {
		m.logger.Error("momentum buy record fill failed", "symbol", symbol, "error", err)
		return
	}
	m.logger.Info("momentum buy", "symbol", symbol, "amount", order.FilledAmount.String(), "price", order.AvgFillPrice.String())
}

func (m *MomentumRider) sell(ctx context.Context, symbol string, amount, price, entry decimal.Decimal) {
	order, err := m.exchange.PlaceMarket(ctx, symbol, core.Sell, amount)
	if err != nil {
		m.logger.Error("momentum sell failed", "symbol", symbol, "error", err)
		return
	}
	if err := m.positions.RecordFill(symbol, core.Sell, order.FilledAmount, order.AvgFillPrice, order.Fee); err != nil {
		m.logger.Error("momentum sell record fill failed", "symbol", symbol, "error", err)
		return
	}
	pnl := order.AvgFillPrice.Sub(entry).Mul(order.FilledAmount)
	m.logger.Info("momentum sell", "symbol", symbol, "amount", order.FilledAmount.String(), "price", order.AvgFillPrice.String(), "estPnl", pnl.String())
}
