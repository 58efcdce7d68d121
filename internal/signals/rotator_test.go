package signals

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestPairRotatorSkipsBelowMinTrades(t *testing.T) {
	r := NewPairRotator(5, decimal.NewFromInt(0))
	stats := []PairStats{{Symbol: "BTC/USD", RealizedPnl: decimal.NewFromInt(-100), TradeCount: 1}}
	require.Empty(t, r.Evaluate(stats))
	require.False(t, r.IsPaused("BTC/USD"))
}

func TestPairRotatorPausesBelowThreshold(t *testing.T) {
	r := NewPairRotator(1, decimal.NewFromInt(0))
	stats := []PairStats{{Symbol: "BTC/USD", RealizedPnl: decimal.NewFromInt(-5), TradeCount: 3, Trend: TrendDown}}
	paused := r.Evaluate(stats)
	require.Equal(t, []string{"BTC/USD"}, paused)
	require.True(t, r.IsPaused("BTC/USD"))
}

func TestPairRotatorDoesNotRepauseAlreadyPaused(t *testing.T) {
	r := NewPairRotator(1, decimal.NewFromInt(0))
	stats := []PairStats{{Symbol: "BTC/USD", RealizedPnl: decimal.NewFromInt(-5), TradeCount: 3}}
	require.NotEmpty(t, r.Evaluate(stats))
	require.Empty(t, r.Evaluate(stats))
}

func TestPairRotatorResume(t *testing.T) {
	r := NewPairRotator(1, decimal.NewFromInt(0))
	r.Evaluate([]PairStats{{Symbol: "BTC/USD", RealizedPnl: decimal.NewFromInt(-5), TradeCount: 3}})
	require.True(t, r.IsPaused("BTC/USD"))
	r.Resume("BTC/USD")
	require.False(t, r.IsPaused("BTC/USD"))
}

func TestScoreCombinesComponents(t *testing.T) {
	s := PairStats{
		RealizedPnl:   decimal.NewFromInt(10),
		UnrealizedPnl: decimal.NewFromInt(5),
		TradeCount:    100,
		Trend:         TrendUp,
	}
	// 10 + 5 + 0.01*100 + 0.5 = 16.5
	require.True(t, Score(s).Equal(decimal.NewFromFloat(16.5)))
}
