package signals

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// PositionStopLoss watches a pair's unrealized loss against its position
// notional and flags when the full base balance should be dumped at
// market, followed by a cooldown during which the pair's grid is skipped.
type PositionStopLoss struct {
	thresholdPct decimal.Decimal
	cooldownSecs int

	mu       sync.Mutex
	cooldown map[string]time.Time // symbol -> cooldown expiry
}

// NewPositionStopLoss builds a stop-loss watcher. thresholdPct is the
// percentage unrealized loss (relative to position notional) that
// triggers a dump; cooldownSecs is how long the pair is skipped after.
func NewPositionStopLoss(thresholdPct decimal.Decimal, cooldownSecs int) *PositionStopLoss {
	return &PositionStopLoss{
		thresholdPct: thresholdPct,
		cooldownSecs: cooldownSecs,
		cooldown:     make(map[string]time.Time),
	}
}

// ShouldTrigger reports whether unrealizedPnl against a position of
// base*avgEntry notional crosses the configured loss threshold. Callers
// execute the stop (market-sell the full base balance) and then call
// StartCooldown.
func (s *PositionStopLoss) ShouldTrigger(unrealizedPnl, base, avgEntry decimal.Decimal) bool {
	if !unrealizedPnl.IsNegative() {
		return false
	}
	notional := base.Mul(avgEntry)
	if !notional.IsPositive() {
		return false
	}
	lossPct := unrealizedPnl.Abs().Div(notional).Mul(decimal.NewFromInt(100))
	return lossPct.GreaterThanOrEqual(s.thresholdPct)
}

// StartCooldown marks symbol as skipped for cooldownSecs wall seconds.
func (s *PositionStopLoss) StartCooldown(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cooldown[symbol] = time.Now().Add(time.Duration(s.cooldownSecs) * time.Second)
}

// InCooldown reports whether symbol's grid should still be skipped.
func (s *PositionStopLoss) InCooldown(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.cooldown[symbol]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(s.cooldown, symbol)
		return false
	}
	return true
}
