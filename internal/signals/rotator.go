package signals

import (
	"sync"

	"github.com/shopspring/decimal"
)

var trendBonus = map[Trend]decimal.Decimal{
	TrendUp:      decimal.NewFromFloat(0.5),
	TrendDown:    decimal.NewFromFloat(-0.5),
	TrendNeutral: decimal.Zero,
}

const tradeCountWeight = 0.01

// PairStats is the subset of PositionTracker/journal state PairRotator
// needs to score one pair.
type PairStats struct {
	Symbol        string
	RealizedPnl   decimal.Decimal
	UnrealizedPnl decimal.Decimal
	TradeCount    int
	Trend         Trend
}

// Score computes realized + unrealized + 0.01*tradeCount + trendBonus.
func Score(s PairStats) decimal.Decimal {
	score := s.RealizedPnl.Add(s.UnrealizedPnl)
	score = score.Add(decimal.NewFromFloat(tradeCountWeight).Mul(decimal.NewFromInt(int64(s.TradeCount))))
	score = score.Add(trendBonus[s.Trend])
	return score
}

// PairRotator scores pairs on a slow cadence and tracks which pairs are
// paused below pauseThreshold, excluding them from ticks until a manual
// Resume.
type PairRotator struct {
	minTrades      int
	pauseThreshold decimal.Decimal

	mu     sync.Mutex
	paused map[string]struct{}
}

// NewPairRotator builds a rotator. minTrades is the minimum trade count a
// pair must have before it is eligible for scoring/pausing; pauseThreshold
// is the score floor below which a pair is paused.
func NewPairRotator(minTrades int, pauseThreshold decimal.Decimal) *PairRotator {
	return &PairRotator{
		minTrades:      minTrades,
		pauseThreshold: pauseThreshold,
		paused:         make(map[string]struct{}),
	}
}

// Evaluate scores every pair with at least minTrades trades and returns
// the symbols newly falling below pauseThreshold this call. Pairs already
// paused, or below minTrades, are skipped.
func (r *PairRotator) Evaluate(stats []PairStats) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var newlyPaused []string
	for _, s := range stats {
		if _, already := r.paused[s.Symbol]; already {
			continue
		}
		if s.TradeCount < r.minTrades {
			continue
		}
		if Score(s).LessThan(r.pauseThreshold) {
			r.paused[s.Symbol] = struct{}{}
			newlyPaused = append(newlyPaused, s.Symbol)
		}
	}
	return newlyPaused
}

// IsPaused reports whether symbol is currently excluded from ticks.
func (r *PairRotator) IsPaused(symbol string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.paused[symbol]
	return ok
}

// Resume manually re-admits a paused symbol to subsequent ticks.
func (r *PairRotator) Resume(symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.paused, symbol)
}
