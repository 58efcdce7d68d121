// Package gridengine implements the per-pair grid state machine:
// initializing a lattice of levels, mirroring fills to the opposite side,
// cancelling the whole ladder, and trailing the range with price.
package gridengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gridbot/internal/core"
	"gridbot/internal/gridmath"
	"gridbot/internal/journal"
	"gridbot/internal/ordermanager"
	"gridbot/internal/position"
	"gridbot/internal/risk"

	"github.com/shopspring/decimal"
)

// Engine owns one symbol's grid lattice and trailing state.
type Engine struct {
	mu sync.Mutex

	symbol string
	cfg    core.GridConfig
	levels []core.GridLevel

	trailingShiftCount int
	lastShiftAt        time.Time

	risk      *risk.Supervisor
	orders    *ordermanager.Manager
	positions *position.Tracker
	store     *journal.Store
	exchange  core.ExchangeAdapter
	logger    core.ILogger
}

// New builds an Engine for one pair's grid configuration. Fills
// discovered by CheckAndProcessFills are recorded against positions and
// appended to store as trade rows before the mirror order is placed.
func New(cfg core.GridConfig, riskSupervisor *risk.Supervisor, orders *ordermanager.Manager, positions *position.Tracker, store *journal.Store, exchange core.ExchangeAdapter, logger core.ILogger) *Engine {
	return &Engine{
		symbol:    cfg.Symbol,
		cfg:       cfg,
		risk:      riskSupervisor,
		orders:    orders,
		positions: positions,
		store:     store,
		exchange:  exchange,
		logger:    logger.WithField("component", "grid_engine").WithField("symbol", cfg.Symbol),
	}
}

// RestoreLevels seeds the lattice from persisted state on restart,
// standing in for a fresh InitializeGrid call.
func (e *Engine) RestoreLevels(levels []core.GridLevel) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.levels = levels
}

// Levels returns a snapshot of the current lattice.
func (e *Engine) Levels() []core.GridLevel {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]core.GridLevel, len(e.levels))
	copy(out, e.levels)
	return out
}

// TrailingShiftCount reports how many times checkTrailing has shifted
// the range.
func (e *Engine) TrailingShiftCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.trailingShiftCount
}

func (e *Engine) amountFor(price decimal.Decimal) (decimal.Decimal, error) {
	return gridmath.Amount(e.cfg.OrderSizeQuote, e.cfg.OrderSizeBase, price)
}

// InitializeGrid computes the lattice from the current price and admits
// every level through RiskSupervisor; a level refused or failing to
// place is left pending, it never aborts the rest of the lattice.
func (e *Engine) InitializeGrid(ctx context.Context) error {
	ticker, err := e.exchange.GetTicker(ctx, e.symbol)
	if err != nil {
		return fmt.Errorf("gridengine: initializeGrid %s: %w", e.symbol, err)
	}

	e.mu.Lock()
	cfg := e.cfg
	e.mu.Unlock()

	prices, err := gridmath.Levels(cfg.Lower, cfg.Upper, cfg.NumLevels, cfg.Spacing)
	if err != nil {
		return fmt.Errorf("gridengine: initializeGrid %s: %w", e.symbol, err)
	}
	sided := gridmath.Sides(prices, ticker.Last)

	levels := make([]core.GridLevel, len(sided))
	for i, lp := range sided {
		levels[i] = core.GridLevel{Index: i, Price: lp.Price, Side: lp.Side, Status: core.LevelPending}
	}

	for i := range levels {
		lvl := &levels[i]
		amount, err := e.amountFor(lvl.Price)
		if err != nil {
			e.logger.Error("amount calculation failed, leaving level pending", "index", lvl.Index, "error", err)
			continue
		}
		if !e.risk.CanPlaceOrder(e.symbol, lvl.Side, lvl.Price, amount) {
			continue
		}
		order, err := e.orders.PlaceGridOrder(ctx, e.symbol, lvl.Side, amount, lvl.Price, lvl.Index)
		if err != nil {
			e.logger.Error("placeGridOrder failed, leaving level pending", "index", lvl.Index, "error", err)
			continue
		}
		lvl.Status = core.LevelPlaced
		lvl.VenueOrderID = order.VenueOrderID
	}

	e.mu.Lock()
	e.levels = levels
	e.mu.Unlock()
	return nil
}

// CheckAndProcessFills polls OrderManager for newly filled orders and
// mirrors each one to the opposite side of the lattice. A fill that
// fails to record (an invariant violation) stops processing further
// fills this call and propagates the error — the Orchestrator treats
// this as fatal.
func (e *Engine) CheckAndProcessFills(ctx context.Context) (int, error) {
	filled, err := e.orders.CheckFills(ctx, e.symbol)
	if err != nil {
		return 0, fmt.Errorf("gridengine: checkAndProcessFills %s: %w", e.symbol, err)
	}

	for _, order := range filled {
		idx, ok := e.levelIndexForOrder(order.VenueOrderID)
		if !ok {
			e.logger.Warn("fill for unknown level, ignoring", "orderID", order.VenueOrderID)
			continue
		}
		if err := e.onFill(ctx, idx, order); err != nil {
			return len(filled), err
		}
	}
	return len(filled), nil
}

func (e *Engine) levelIndexForOrder(venueOrderID string) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.levels {
		if e.levels[i].VenueOrderID == venueOrderID {
			return i, true
		}
	}
	return 0, false
}

// onFill marks the level filled, records the fill against positions and
// the trade journal, then, if the mirror index is in range, admits and
// places the opposite side at the mirror level's price.
func (e *Engine) onFill(ctx context.Context, idx int, order core.Order) error {
	e.mu.Lock()
	e.levels[idx].Status = core.LevelFilled
	side := e.levels[idx].Side
	n := len(e.levels)
	e.mu.Unlock()

	before := e.positions.Pair(e.symbol)
	if err := e.positions.RecordFill(e.symbol, side, order.FilledAmount, order.AvgFillPrice, order.Fee); err != nil {
		return fmt.Errorf("gridengine: onFill %s: %w", e.symbol, err)
	}
	after := e.positions.Pair(e.symbol)

	if e.store != nil {
		trade := journal.Trade{
			VenueOrderID: order.VenueOrderID,
			Symbol:       e.symbol,
			Side:         side,
			Price:        order.AvgFillPrice,
			Amount:       order.FilledAmount,
			Fee:          order.Fee,
			RealizedPnl:  after.RealizedPnl.Sub(before.RealizedPnl),
			Ts:           time.Now().UnixNano(),
		}
		if err := e.store.AppendTrade(ctx, trade); err != nil {
			e.logger.Error("append trade failed", "orderID", order.VenueOrderID, "error", err)
		}
	}

	mirror := idx + 1
	if side == core.Sell {
		mirror = idx - 1
	}
	if mirror < 0 || mirror >= n {
		return nil // edge of grid: capital pools here until price revisits
	}

	e.mu.Lock()
	mirrorPrice := e.levels[mirror].Price
	mirrorBusy := e.levels[mirror].Status == core.LevelPlaced
	e.mu.Unlock()
	if mirrorBusy {
		return nil // a level holds at most one live order
	}

	oppositeSide := side.Opposite()
	amount, err := e.amountFor(mirrorPrice)
	if err != nil {
		e.logger.Error("mirror amount calculation failed", "mirrorIndex", mirror, "error", err)
		return nil
	}
	if !e.risk.CanPlaceOrder(e.symbol, oppositeSide, mirrorPrice, amount) {
		return nil
	}

	placed, err := e.orders.PlaceGridOrder(ctx, e.symbol, oppositeSide, amount, mirrorPrice, mirror)
	if err != nil {
		e.logger.Error("mirror placeGridOrder failed", "mirrorIndex", mirror, "error", err)
		return nil
	}

	e.mu.Lock()
	e.levels[mirror].Side = oppositeSide
	e.levels[mirror].Status = core.LevelPlaced
	e.levels[mirror].VenueOrderID = placed.VenueOrderID
	e.mu.Unlock()
	return nil
}

// CancelAllGridOrders cancels every currently-placed level at the venue.
// Cancellation errors are logged, never raised.
func (e *Engine) CancelAllGridOrders(ctx context.Context) int {
	e.mu.Lock()
	placed := make([]int, 0, len(e.levels))
	for i := range e.levels {
		if e.levels[i].Status == core.LevelPlaced {
			placed = append(placed, i)
		}
	}
	e.mu.Unlock()

	count := 0
	for _, idx := range placed {
		e.mu.Lock()
		id := e.levels[idx].VenueOrderID
		e.mu.Unlock()

		if _, err := e.orders.Cancel(ctx, id, e.symbol); err != nil {
			e.logger.Error("cancel failed during cancelAllGridOrders", "index", idx, "orderID", id, "error", err)
		}
		e.mu.Lock()
		e.levels[idx].Status = core.LevelCancelled
		e.mu.Unlock()
		count++
	}
	return count
}

// CheckTrailing shifts the range up or down when price nears an edge,
// gated by cfg.Trailing.Enabled and a per-engine cooldown. Returns true
// iff a shift occurred.
func (e *Engine) CheckTrailing(ctx context.Context, currentPrice decimal.Decimal) (bool, error) {
	e.mu.Lock()
	cfg := e.cfg
	lastShift := e.lastShiftAt
	e.mu.Unlock()

	if !cfg.Trailing.Enabled {
		return false, nil
	}
	if time.Since(lastShift) < time.Duration(cfg.Trailing.CooldownSecs)*time.Second {
		return false, nil
	}

	rangeSpan := cfg.Upper.Sub(cfg.Lower)
	if !rangeSpan.IsPositive() {
		return false, nil
	}
	pos := currentPrice.Sub(cfg.Lower).Div(rangeSpan)

	trigger := cfg.Trailing.TriggerPct.Div(decimal.NewFromInt(100))
	rebalance := cfg.Trailing.RebalancePct.Div(decimal.NewFromInt(100))
	shiftAmount := rangeSpan.Mul(rebalance)

	var newLower, newUpper decimal.Decimal
	switch {
	case pos.GreaterThanOrEqual(trigger):
		newLower = cfg.Lower.Add(shiftAmount)
		newUpper = cfg.Upper.Add(shiftAmount)
	case pos.LessThanOrEqual(decimal.NewFromInt(1).Sub(trigger)):
		newLower = cfg.Lower.Sub(shiftAmount)
		newUpper = cfg.Upper.Sub(shiftAmount)
	default:
		return false, nil
	}

	if !newLower.IsPositive() {
		e.logger.Warn("trailing shift rejected: newLower would be non-positive", "newLower", newLower.String())
		return false, nil
	}

	e.CancelAllGridOrders(ctx)

	e.mu.Lock()
	e.cfg.Lower = newLower
	e.cfg.Upper = newUpper
	e.mu.Unlock()

	if err := e.InitializeGrid(ctx); err != nil {
		return false, fmt.Errorf("gridengine: checkTrailing reinitialize %s: %w", e.symbol, err)
	}

	e.mu.Lock()
	e.trailingShiftCount++
	e.lastShiftAt = time.Now()
	e.mu.Unlock()

	e.logger.Info("grid trailed", "symbol", e.symbol, "newLower", newLower.String(), "newUpper", newUpper.String())
	return true, nil
}

// Config returns the engine's current grid configuration (post any
// trailing shifts).
func (e *Engine) Config() core.GridConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}
