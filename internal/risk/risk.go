// Package risk implements RiskSupervisor: the single gate every order
// placement passes through, plus the stop-loss/take-profit/drawdown
// checks that can flip the global or per-pair halt bits GridEngine and
// the Orchestrator respect.
package risk

import (
	"context"
	"sync"

	"gridbot/internal/alert"
	"gridbot/internal/core"
	"gridbot/internal/ordermanager"
	"gridbot/internal/position"
	"gridbot/internal/signals"

	"github.com/shopspring/decimal"
)

// Config holds every threshold RiskSupervisor checks against.
type Config struct {
	MaxOpenOrders           int
	StopLossPct             decimal.Decimal
	TakeProfitPct           decimal.Decimal
	MaxDrawdownPct          decimal.Decimal
	MaxPositionQuotePerPair decimal.Decimal
	MaxPositionQuote        decimal.Decimal

	SentimentGateEnabled bool
	ExtremeFearThreshold int
}

// Supervisor is the control plane's risk gate. One instance is shared
// across every pair; per-pair state lives in the pairHalt set.
type Supervisor struct {
	mu         sync.Mutex
	cfg        Config
	globalHalt bool
	pairHalt   map[string]struct{}
	peakEquity decimal.Decimal

	orderManager *ordermanager.Manager
	positions    *position.Tracker
	trend        *signals.TrendFilter
	sentiment    *signals.SentimentGate
	alerter      *alert.AlertManager
	logger       core.ILogger
}

// New builds a Supervisor. sentiment and alerter may be nil: a nil
// sentiment gate means the extreme-fear veto never fires; a nil alerter
// means halt transitions are logged only, never pushed externally.
func New(cfg Config, orderManager *ordermanager.Manager, positions *position.Tracker, trend *signals.TrendFilter, sentiment *signals.SentimentGate, alerter *alert.AlertManager, logger core.ILogger) *Supervisor {
	return &Supervisor{
		cfg:          cfg,
		pairHalt:     make(map[string]struct{}),
		orderManager: orderManager,
		positions:    positions,
		trend:        trend,
		sentiment:    sentiment,
		alerter:      alerter,
		logger:       logger.WithField("component", "risk_supervisor"),
	}
}

// CanPlaceOrder applies every admission check in order; the first
// failing check rejects the order.
func (s *Supervisor) CanPlaceOrder(symbol string, side core.Side, price, amount decimal.Decimal) bool {
	s.mu.Lock()
	globalHalt := s.globalHalt
	_, pairHalted := s.pairHalt[symbol]
	s.mu.Unlock()

	if globalHalt {
		return false
	}
	if pairHalted {
		return false
	}
	if s.orderManager.OpenOrderCount(symbol) >= s.cfg.MaxOpenOrders {
		return false
	}

	if side == core.Buy {
		if s.trend != nil && !s.trend.ShouldAllowBuy(symbol) {
			return false
		}
		if s.sentiment != nil && s.cfg.SentimentGateEnabled && s.sentiment.ExtremeFear(s.cfg.ExtremeFearThreshold) {
			return false
		}

		cost := amount.Mul(price)
		if !s.positions.CanAffordBuy(cost) {
			return false
		}

		if s.cfg.MaxPositionQuotePerPair.IsPositive() {
			if s.positions.PairPositionQuoteValue(symbol).GreaterThanOrEqual(s.cfg.MaxPositionQuotePerPair) {
				return false
			}
		}
		if s.cfg.MaxPositionQuote.IsPositive() {
			if s.positions.TotalPositionQuoteValue().GreaterThanOrEqual(s.cfg.MaxPositionQuote) {
				return false
			}
		}
	}

	return true
}

// CheckStopLoss tests price <= lower*(1 - stopLossPct/100); on true it
// halts the pair and fires a best-effort alert.
func (s *Supervisor) CheckStopLoss(symbol string, price, lower decimal.Decimal) bool {
	threshold := lower.Mul(decimal.NewFromInt(1).Sub(s.cfg.StopLossPct.Div(decimal.NewFromInt(100))))
	if price.GreaterThan(threshold) {
		return false
	}
	s.haltPair(symbol, "stop_loss", price)
	return true
}

// CheckTakeProfit tests price >= upper*(1 + takeProfitPct/100); on true
// it halts the pair the same as CheckStopLoss.
func (s *Supervisor) CheckTakeProfit(symbol string, price, upper decimal.Decimal) bool {
	threshold := upper.Mul(decimal.NewFromInt(1).Add(s.cfg.TakeProfitPct.Div(decimal.NewFromInt(100))))
	if price.LessThan(threshold) {
		return false
	}
	s.haltPair(symbol, "take_profit", price)
	return true
}

func (s *Supervisor) haltPair(symbol, reason string, price decimal.Decimal) {
	s.mu.Lock()
	s.pairHalt[symbol] = struct{}{}
	s.mu.Unlock()

	s.logger.Warn("pair halted", "symbol", symbol, "reason", reason, "price", price.String())
	if s.alerter != nil {
		s.alerter.Alert(context.Background(), "Pair halted", symbol+" halted: "+reason, alert.Warning,
			map[string]string{"symbol": symbol, "reason": reason, "price": price.String()})
	}
}

// CheckDrawdown tracks the running equity peak and halts globally once
// the drawdown from peak reaches maxDrawdownPct. A zero maxDrawdownPct
// disables the halt.
func (s *Supervisor) CheckDrawdown(totalEquity decimal.Decimal) bool {
	s.mu.Lock()
	if totalEquity.GreaterThan(s.peakEquity) {
		s.peakEquity = totalEquity
	}
	peak := s.peakEquity
	s.mu.Unlock()

	if !peak.IsPositive() || !s.cfg.MaxDrawdownPct.IsPositive() {
		return false
	}
	drawdownPct := peak.Sub(totalEquity).Div(peak).Mul(decimal.NewFromInt(100))
	if drawdownPct.LessThan(s.cfg.MaxDrawdownPct) {
		return false
	}

	s.mu.Lock()
	s.globalHalt = true
	s.mu.Unlock()

	s.logger.Error("global halt: max drawdown reached", "peak", peak.String(), "equity", totalEquity.String(), "drawdownPct", drawdownPct.String())
	if s.alerter != nil {
		s.alerter.Alert(context.Background(), "Global halt", "max drawdown reached", alert.Critical,
			map[string]string{"peak": peak.String(), "equity": totalEquity.String(), "drawdownPct": drawdownPct.String()})
	}
	return true
}

// ResetHalt clears both the global bit and the per-pair halt set.
func (s *Supervisor) ResetHalt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globalHalt = false
	s.pairHalt = make(map[string]struct{})
}

// IsPairHalted reports whether symbol is currently in the per-pair halt set.
func (s *Supervisor) IsPairHalted(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pairHalt[symbol]
	return ok
}

// IsGlobalHalted reports the global halt bit.
func (s *Supervisor) IsGlobalHalted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.globalHalt
}
