package signals

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestPositionStopLossTriggersAtThreshold(t *testing.T) {
	sl := NewPositionStopLoss(decimal.NewFromInt(10), 60)

	// 100 base*avgEntry notional, -10 unrealized = 10% loss.
	require.True(t, sl.ShouldTrigger(decimal.NewFromInt(-10), decimal.NewFromInt(1), decimal.NewFromInt(100)))
	require.False(t, sl.ShouldTrigger(decimal.NewFromInt(-9), decimal.NewFromInt(1), decimal.NewFromInt(100)))
}

func TestPositionStopLossIgnoresProfitablePositions(t *testing.T) {
	sl := NewPositionStopLoss(decimal.NewFromInt(10), 60)
	require.False(t, sl.ShouldTrigger(decimal.NewFromInt(50), decimal.NewFromInt(1), decimal.NewFromInt(100)))
}

func TestPositionStopLossCooldownExpires(t *testing.T) {
	sl := NewPositionStopLoss(decimal.NewFromInt(10), 0)
	sl.StartCooldown("BTC/USD")
	require.False(t, sl.InCooldown("BTC/USD"))
}

func TestPositionStopLossCooldownHoldsForSymbolOnly(t *testing.T) {
	sl := NewPositionStopLoss(decimal.NewFromInt(10), 60)
	sl.StartCooldown("BTC/USD")
	require.True(t, sl.InCooldown("BTC/USD"))
	require.False(t, sl.InCooldown("ETH/USD"))

	// Simulate expiry by installing an already-past deadline directly.
	sl.mu.Lock()
	sl.cooldown["BTC/USD"] = time.Now().Add(-time.Second)
	sl.mu.Unlock()
	require.False(t, sl.InCooldown("BTC/USD"))
}
