// Package signals implements the defensive, read-only checks GridEngine
// and RiskSupervisor consult before admitting or rebalancing an order:
// TrendFilter, PositionStopLoss, PairRotator, and SentimentGate.
package signals

import (
	"github.com/shopspring/decimal"
)

// Trend is the directional signal a TrendFilter reports for a symbol.
type Trend int

const (
	TrendNeutral Trend = iota
	TrendUp
	TrendDown
)

func (t Trend) String() string {
	switch t {
	case TrendUp:
		return "UP"
	case TrendDown:
		return "DOWN"
	default:
		return "NEUTRAL"
	}
}

// ring is a fixed-capacity circular buffer of decimals, the bounded
// window TrendFilter keeps per symbol.
type ring struct {
	buf   []decimal.Decimal
	next  int
	count int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]decimal.Decimal, capacity)}
}

func (r *ring) push(v decimal.Decimal) {
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

func (r *ring) full() bool { return r.count == len(r.buf) }

// sma averages the most recent n samples (n <= r.count); the caller is
// responsible for only asking for windows the buffer can satisfy.
func (r *ring) sma(n int) decimal.Decimal {
	if n <= 0 || n > r.count {
		return decimal.Zero
	}
	sum := decimal.Zero
	// next-1 is the most recently pushed slot; walk backwards n steps.
	idx := (r.next - 1 + len(r.buf)) % len(r.buf)
	for i := 0; i < n; i++ {
		sum = sum.Add(r.buf[idx])
		idx = (idx - 1 + len(r.buf)) % len(r.buf)
	}
	return sum.Div(decimal.NewFromInt(int64(n)))
}

// TrendFilter tracks a bounded price history per symbol and classifies
// the relationship between a short and long simple moving average.
type TrendFilter struct {
	shortWindow int
	longWindow  int
	history     map[string]*ring
}

// NewTrendFilter builds a filter with the given short/long SMA window
// sizes; longWindow also sizes the ring buffer's capacity.
func NewTrendFilter(shortWindow, longWindow int) *TrendFilter {
	return &TrendFilter{
		shortWindow: shortWindow,
		longWindow:  longWindow,
		history:     make(map[string]*ring),
	}
}

// Push records a newly polled price for symbol.
func (f *TrendFilter) Push(symbol string, price decimal.Decimal) {
	r, ok := f.history[symbol]
	if !ok {
		r = newRing(f.longWindow)
		f.history[symbol] = r
	}
	r.push(price)
}

// Trend reports NEUTRAL until the buffer holds longWindow samples, then
// compares SMA(short) to SMA(long).
func (f *TrendFilter) Trend(symbol string) Trend {
	r, ok := f.history[symbol]
	if !ok || !r.full() {
		return TrendNeutral
	}
	short := r.sma(f.shortWindow)
	long := r.sma(f.longWindow)
	switch {
	case short.GreaterThan(long):
		return TrendUp
	case short.LessThan(long):
		return TrendDown
	default:
		return TrendNeutral
	}
}

// ShouldAllowBuy is false only when the trend reads DOWN.
func (f *TrendFilter) ShouldAllowBuy(symbol string) bool {
	return f.Trend(symbol) != TrendDown
}
