package strategy

import (
	"context"
	"sync"
	"time"

	"gridbot/internal/core"
	"gridbot/internal/position"

	"github.com/shopspring/decimal"
)

// DipSniperConfig configures DipSniper.
type DipSniperConfig struct {
	PositionSizeQuote decimal.Decimal
	LookbackCount     int
	DipThresholdPct   decimal.Decimal // negative, e.g. -3 for a 3% drop
	TakeProfitPct     decimal.Decimal
	StopLossPct       decimal.Decimal
	CooldownSecs      int
}

type dipPosition struct {
	entryPrice      decimal.Decimal
	amount          decimal.Decimal
	takeProfitPrice decimal.Decimal
	stopLossPrice   decimal.Decimal
}

// DipSniper watches a bounded price window per symbol, buys on a sharp
// drop off the window high, and exits at a fixed take-profit or
// stop-loss before entering a cooldown.
type DipSniper struct {
	cfg       DipSniperConfig
	exchange  core.ExchangeAdapter
	positions *position.Tracker
	logger    core.ILogger

	mu            sync.Mutex
	windows       map[string][]decimal.Decimal
	active        map[string]dipPosition
	cooldownUntil map[string]time.Time
}

// NewDipSniper builds a sniper with empty windows and no active positions.
func NewDipSniper(cfg DipSniperConfig, exchange core.ExchangeAdapter, positions *position.Tracker, logger core.ILogger) *DipSniper {
	return &DipSniper{
		cfg:           cfg,
		exchange:      exchange,
		positions:     positions,
		logger:        logger.WithField("component", "dip_sniper"),
		windows:       make(map[string][]decimal.Decimal),
		active:        make(map[string]dipPosition),
		cooldownUntil: make(map[string]time.Time),
	}
}

// Evaluate records the current price into symbol's window, then either
// checks an active position's exit or looks for a fresh dip entry.
func (d *DipSniper) Evaluate(ctx context.Context, symbol string, price decimal.Decimal) {
	if !price.IsPositive() {
		return
	}
	d.recordPrice(symbol, price)

	d.mu.Lock()
	pos, active := d.active[symbol]
	d.mu.Unlock()

	if active {
		d.checkExit(ctx, symbol, pos, price)
		return
	}
	if d.inCooldown(symbol) {
		return
	}
	if d.detectDip(symbol) {
		d.enter(ctx, symbol, price)
	}
}

func (d *DipSniper) recordPrice(symbol string, price decimal.Decimal) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w := append(d.windows[symbol], price)
	if len(w) > d.cfg.LookbackCount {
		w = w[len(w)-d.cfg.LookbackCount:]
	}
	d.windows[symbol] = w
}

func (d *DipSniper) detectDip(symbol string) bool {
	d.mu.Lock()
	window := append([]decimal.Decimal(nil), d.windows[symbol]...)
	d.mu.Unlock()

	if len(window) < d.cfg.LookbackCount {
		return false
	}

	windowHigh := window[0]
	for _, p := range window[:len(window)-1] {
		if p.GreaterThan(windowHigh) {
			windowHigh = p
		}
	}
	current := window[len(window)-1]
	if !windowHigh.IsPositive() {
		return false
	}

	pctChange := current.Sub(windowHigh).Div(windowHigh).Mul(decimal.NewFromInt(100))
	if pctChange.LessThanOrEqual(d.cfg.DipThresholdPct) {
		d.logger.Info("dip detected", "symbol", symbol, "pctChange", pctChange.String(), "windowHigh", windowHigh.String(), "current", current.String())
		return true
	}
	return false
}

func (d *DipSniper) enter(ctx context.Context, symbol string, price decimal.Decimal) {
	if !d.positions.CanAffordBuy(d.cfg.PositionSizeQuote) {
		return
	}
	amount := d.cfg.PositionSizeQuote.Div(price)

	order, err := d.exchange.PlaceMarket(ctx, symbol, core.Buy, amount)
	if err != nil {
		d.logger.Error("dip sniper buy failed", "symbol", symbol, "error", err)
		return
	}
	if err := d.positions.RecordFill(symbol, core.Buy, order.FilledAmount, order.AvgFillPrice, order.Fee); err != nil {
		d.logger.Error("dip sniper buy record fill failed", "symbol", symbol, "error", err)
		return
	}

	fillPrice := order.AvgFillPrice
	hundred := decimal.NewFromInt(100)
	pos := dipPosition{
		entryPrice:      fillPrice,
		amount:          order.FilledAmount,
		takeProfitPrice: fillPrice.Mul(decimal.NewFromInt(1).Add(d.cfg.TakeProfitPct.Div(hundred))),
		stopLossPrice:   fillPrice.Mul(decimal.NewFromInt(1).Sub(d.cfg.StopLossPct.Div(hundred))),
	}

	d.mu.Lock()
	d.active[symbol] = pos
	d.mu.Unlock()

	d.logger.Info("dip sniper buy", "symbol", symbol, "amount", pos.amount.String(), "price", fillPrice.String(),
		"takeProfit", pos.takeProfitPrice.String(), "stopLoss", pos.stopLossPrice.String())
}

func (d *DipSniper) checkExit(ctx context.Context, symbol string, pos dipPosition, price decimal.Decimal) {
	var reason string
	switch {
	case price.GreaterThanOrEqual(pos.takeProfitPrice):
		reason = "take_profit"
	case price.LessThanOrEqual(pos.stopLossPrice):
		reason = "stop_loss"
	default:
		return
	}
	d.exit(ctx, symbol, pos, reason)
}

func (d *DipSniper) exit(ctx context.Context, symbol string, pos dipPosition, reason string) {
	order, err := d.exchange.PlaceMarket(ctx, symbol, core.Sell, pos.amount)
	if err != nil {
		d.logger.Error("dip sniper sell failed", "symbol", symbol, "error", err)
		return
	}
	if err := d.positions.RecordFill(symbol, core.Sell, order.FilledAmount, order.AvgFillPrice, order.Fee); err != nil {
		d.logger.Error("dip sniper sell record fill failed", "symbol", symbol, "error", err)
		return
	}

	pnl := order.AvgFillPrice.Sub(pos.entryPrice).Mul(order.FilledAmount).Sub(order.Fee)
	d.logger.Info("dip sniper sell", "symbol", symbol, "reason", reason, "entry", pos.entryPrice.String(), "exit", order.AvgFillPrice.String(), "pnl", pnl.String())

	d.mu.Lock()
	delete(d.active, symbol)
	d.cooldownUntil[symbol] = time.Now().Add(time.Duration(d.cfg.CooldownSecs) * time.Second)
	d.mu.Unlock()
}

func (d *DipSniper) inCooldown(symbol string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	until, ok := d.cooldownUntil[symbol]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(d.cooldownUntil, symbol)
		return false
	}
	return true
}
