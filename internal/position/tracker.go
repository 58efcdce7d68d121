// Package position implements the pooled, multi-pair PositionTracker: a
// state machine over fills that never touches the venue except GetTicker
// for unrealized-P&L refresh.
//
// LOCK ORDERING: Tracker.mu guards both the shared PoolState and every
// pair's PairPositionState. There is exactly one lock because the pool
// and every pair are updated together inside recordFill (pool.totalFees
// and the pair's balances move in the same step) — splitting it into a
// pool lock plus per-pair locks would only reintroduce an ordering rule
// to document and get wrong. Writers include the tick's fill processing
// and the worker-pool goroutines that run stop-loss dumps and ancillary
// strategies; all of them take this one lock.
package position

import (
	"context"
	"fmt"
	"sync"

	"gridbot/internal/core"
	"gridbot/internal/journal"
	apperrors "gridbot/pkg/errors"

	"github.com/shopspring/decimal"
)

// Tracker owns the pool and every configured pair's position state.
type Tracker struct {
	mu    sync.Mutex
	pool  core.PoolState
	pairs map[string]*core.PairPositionState

	exchange core.ExchangeAdapter
	store    *journal.Store
	logger   core.ILogger
}

// New builds a Tracker seeded with the pool's initial quote balance and
// one empty PairPositionState per configured symbol.
func New(initialBalanceQuote decimal.Decimal, symbols []string, exchange core.ExchangeAdapter, store *journal.Store, logger core.ILogger) *Tracker {
	pairs := make(map[string]*core.PairPositionState, len(symbols))
	for _, s := range symbols {
		pairs[s] = &core.PairPositionState{Symbol: s}
	}
	return &Tracker{
		pool:     core.PoolState{AvailableQuote: initialBalanceQuote},
		pairs:    pairs,
		exchange: exchange,
		store:    store,
		logger:   logger.WithField("component", "position_tracker"),
	}
}

// Restore replaces the in-memory pool/pair state with values recovered
// from the journal, used on process restart.
func (t *Tracker) Restore(pool core.PoolState, pairs map[string]core.PairPositionState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pool = pool
	for symbol, p := range pairs {
		cp := p
		t.pairs[symbol] = &cp
	}
}

func (t *Tracker) pairLocked(symbol string) *core.PairPositionState {
	p, ok := t.pairs[symbol]
	if !ok {
		p = &core.PairPositionState{Symbol: symbol}
		t.pairs[symbol] = p
	}
	return p
}

// RecordFill applies one fill to the pool and the pair's position,
// using the standard weighted-average-entry buy/sell accounting.
func (t *Tracker) RecordFill(symbol string, side core.Side, amount, price, fee decimal.Decimal) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	pair := t.pairLocked(symbol)

	switch side {
	case core.Buy:
		costBefore := pair.BaseBalance.Mul(pair.AvgEntryPrice)
		costAfter := costBefore.Add(amount.Mul(price))
		pair.BaseBalance = pair.BaseBalance.Add(amount)
		t.pool.AvailableQuote = t.pool.AvailableQuote.Sub(amount.Mul(price)).Sub(fee)
		if pair.BaseBalance.IsPositive() {
			pair.AvgEntryPrice = costAfter.Div(pair.BaseBalance)
		}

	case core.Sell:
		profit := price.Sub(pair.AvgEntryPrice).Mul(amount).Sub(fee)
		pair.RealizedPnl = pair.RealizedPnl.Add(profit)
		pair.BaseBalance = pair.BaseBalance.Sub(amount)
		t.pool.AvailableQuote = t.pool.AvailableQuote.Add(amount.Mul(price)).Sub(fee)
		if profit.IsPositive() {
			t.pool.SecuredProfits = t.pool.SecuredProfits.Add(profit)
			t.pool.AvailableQuote = t.pool.AvailableQuote.Sub(profit)
		}

	default:
		return fmt.Errorf("position: unknown side %q", side)
	}

	t.pool.TotalFees = t.pool.TotalFees.Add(fee)
	pair.TradeCount++
	t.pool.TotalTradeCount++

	if t.pool.AvailableQuote.IsNegative() {
		return fmt.Errorf("position: available quote went negative for %s: %w", symbol, apperrors.ErrInvariantViolation)
	}
	if pair.BaseBalance.IsNegative() {
		return fmt.Errorf("position: base balance went negative for %s: %w", symbol, apperrors.ErrInvariantViolation)
	}
	if pair.BaseBalance.IsPositive() && !pair.AvgEntryPrice.IsPositive() {
		return fmt.Errorf("position: base balance positive with non-positive avg entry for %s: %w", symbol, apperrors.ErrInvariantViolation)
	}

	return nil
}

// CanAffordBuy reports whether the pool has enough available quote for a
// prospective buy of the given notional cost.
func (t *Tracker) CanAffordBuy(costQuote decimal.Decimal) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pool.AvailableQuote.GreaterThanOrEqual(costQuote)
}

// UpdateUnrealized refreshes one pair's unrealized P&L from the current
// ticker; zero when the pair holds no base balance.
func (t *Tracker) UpdateUnrealized(ctx context.Context, symbol string) error {
	ticker, err := t.exchange.GetTicker(ctx, symbol)
	if err != nil {
		return fmt.Errorf("position: updateUnrealized %s: %w", symbol, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	pair := t.pairLocked(symbol)
	if pair.BaseBalance.IsZero() {
		pair.UnrealizedPnl = decimal.Zero
		return nil
	}
	pair.UnrealizedPnl = ticker.Last.Sub(pair.AvgEntryPrice).Mul(pair.BaseBalance)
	return nil
}

// SaveSnapshot writes one persisted row per pair, capturing the pool's
// contribution to each pair's total equity at this instant.
func (t *Tracker) SaveSnapshot(ctx context.Context) error {
	t.mu.Lock()
	snaps := make([]core.EquitySnapshot, 0, len(t.pairs))
	for symbol, pair := range t.pairs {
		snaps = append(snaps, core.EquitySnapshot{
			Symbol:         symbol,
			BaseBalance:    pair.BaseBalance,
			QuoteBalance:   t.pool.AvailableQuote,
			AvgEntry:       pair.AvgEntryPrice,
			UnrealizedPnl:  pair.UnrealizedPnl,
			RealizedPnl:    pair.RealizedPnl,
			SecuredProfits: t.pool.SecuredProfits,
			TotalEquity:    t.totalEquityLocked(),
		})
	}
	poolSnapshot := t.pool
	t.mu.Unlock()

	for _, snap := range snaps {
		if err := t.store.SaveSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("position: save snapshot %s: %w", snap.Symbol, err)
		}
	}
	return t.store.SavePoolState(ctx, poolSnapshot)
}

// TotalEquityQuote is pool.available + pool.secured + Σ(pair.base·pair.avgEntry + pair.unrealized).
func (t *Tracker) TotalEquityQuote() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalEquityLocked()
}

func (t *Tracker) totalEquityLocked() decimal.Decimal {
	total := t.pool.AvailableQuote.Add(t.pool.SecuredProfits)
	for _, pair := range t.pairs {
		total = total.Add(pair.BaseBalance.Mul(pair.AvgEntryPrice)).Add(pair.UnrealizedPnl)
	}
	return total
}

// Pair returns a copy of one pair's current state.
func (t *Tracker) Pair(symbol string) core.PairPositionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return *t.pairLocked(symbol)
}

// Pool returns a copy of the current pool state.
func (t *Tracker) Pool() core.PoolState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pool
}

// PairPositionQuoteValue returns pair.base * pair.avgEntry, used by
// RiskSupervisor's per-pair and global position ceilings.
func (t *Tracker) PairPositionQuoteValue(symbol string) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	pair := t.pairLocked(symbol)
	return pair.BaseBalance.Mul(pair.AvgEntryPrice)
}

// TotalPositionQuoteValue sums PairPositionQuoteValue across every pair.
func (t *Tracker) TotalPositionQuoteValue() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := decimal.Zero
	for _, pair := range t.pairs {
		total = total.Add(pair.BaseBalance.Mul(pair.AvgEntryPrice))
	}
	return total
}
