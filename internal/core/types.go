package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Decimal is the fixed-point type used for every price, amount, and
// balance in the system. No float64 is used for money.
type Decimal = decimal.Decimal

// Side is which direction an order or grid level trades.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Spacing is the grid level placement rule.
type Spacing string

const (
	Arithmetic Spacing = "arithmetic"
	Geometric  Spacing = "geometric"
)

// OrderStatus is the monotonic lifecycle state of an Order.
type OrderStatus string

const (
	OrderOpen            OrderStatus = "open"
	OrderPartiallyFilled OrderStatus = "partially_filled"
	OrderFilled          OrderStatus = "filled"
	OrderCancelled       OrderStatus = "cancelled"
)

// Terminal reports whether the status can never change again.
func (s OrderStatus) Terminal() bool {
	return s == OrderFilled || s == OrderCancelled
}

// LevelStatus is a grid level's per-level state machine.
type LevelStatus string

const (
	LevelPending   LevelStatus = "pending"
	LevelPlaced    LevelStatus = "placed"
	LevelFilled    LevelStatus = "filled"
	LevelCancelled LevelStatus = "cancelled"
)

// TradingPair is the identity key for all per-pair state. Created at
// startup from configuration, never mutated, destroyed only on exit.
type TradingPair struct {
	Symbol string
}

// TrailingConfig gates GridEngine.checkTrailing.
type TrailingConfig struct {
	Enabled      bool
	TriggerPct   decimal.Decimal // ∈[50,95]
	RebalancePct decimal.Decimal // ∈[10,100]
	CooldownSecs int
}

// GridConfig fully describes one pair's grid lattice and sizing rule.
type GridConfig struct {
	Symbol        string
	Lower         decimal.Decimal
	Upper         decimal.Decimal
	NumLevels     int // ∈[2,200]
	Spacing       Spacing
	OrderSizeQuote decimal.Decimal // zero value means "unset"
	OrderSizeBase  decimal.Decimal // zero value means "unset"
	Trailing      TrailingConfig
}

// HasOrderSizeQuote reports whether OrderSizeQuote was configured.
func (c GridConfig) HasOrderSizeQuote() bool { return c.OrderSizeQuote.IsPositive() }

// HasOrderSizeBase reports whether OrderSizeBase was configured.
func (c GridConfig) HasOrderSizeBase() bool { return c.OrderSizeBase.IsPositive() }

// GridLevel is one rung of the ladder; holds at most one live order.
type GridLevel struct {
	Index       int
	Price       decimal.Decimal
	Side        Side
	Status      LevelStatus
	VenueOrderID string // set when the level's order is placed; not cleared when it fills or is cancelled
}

// Order is the exchange-side record of one placed order. Unique by
// VenueOrderID; once Status is Terminal() it never changes again.
type Order struct {
	VenueOrderID  string
	Symbol        string
	Side          Side
	Price         decimal.Decimal
	Amount        decimal.Decimal
	FilledAmount  decimal.Decimal
	AvgFillPrice  decimal.Decimal
	Fee           decimal.Decimal
	Status        OrderStatus
	LevelIndex    int
	Ts            time.Time
}

// PairPositionState is one pair's balance and P&L bookkeeping.
// Invariant: BaseBalance > 0 implies AvgEntryPrice > 0.
type PairPositionState struct {
	Symbol         string
	BaseBalance    decimal.Decimal
	AvgEntryPrice  decimal.Decimal
	RealizedPnl    decimal.Decimal
	UnrealizedPnl  decimal.Decimal
	TradeCount     int64
}

// PoolState is the shared quote-currency capital allocated to one
// strategy allocation.
type PoolState struct {
	AvailableQuote  decimal.Decimal
	SecuredProfits  decimal.Decimal
	TotalFees       decimal.Decimal
	TotalTradeCount int64
}

// EquitySnapshot is one persisted row: per-pair equity at a point in time.
type EquitySnapshot struct {
	Ts             time.Time
	Symbol         string
	BaseBalance    decimal.Decimal
	QuoteBalance   decimal.Decimal
	AvgEntry       decimal.Decimal
	Price          decimal.Decimal
	UnrealizedPnl  decimal.Decimal
	RealizedPnl    decimal.Decimal
	SecuredProfits decimal.Decimal
	TotalEquity    decimal.Decimal
}

// BotStatus is the Orchestrator's top-level lifecycle state.
type BotStatus string

const (
	StatusIdle     BotStatus = "IDLE"
	StatusStarting BotStatus = "STARTING"
	StatusRunning  BotStatus = "RUNNING"
	StatusError    BotStatus = "ERROR"
	StatusStopped  BotStatus = "STOPPED"
)
