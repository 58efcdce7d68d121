package risk

import (
	"context"
	"path/filepath"
	"testing"

	"gridbot/internal/core"
	"gridbot/internal/exchange"
	"gridbot/internal/journal"
	"gridbot/internal/logging"
	"gridbot/internal/ordermanager"
	"gridbot/internal/position"
	"gridbot/internal/signals"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestSupervisor(t *testing.T, cfg Config) (*Supervisor, *ordermanager.Manager, *position.Tracker, *exchange.Paper) {
	t.Helper()
	logger, err := logging.NewZapLogger("ERROR")
	require.NoError(t, err)
	store, err := journal.Open(context.Background(), filepath.Join(t.TempDir(), "j.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	paper := exchange.NewPaper(exchange.PaperConfig{InitialBalanceQuote: decimal.NewFromInt(100000)}, logger)
	om := ordermanager.New(paper, store, logger)
	pt := position.New(decimal.NewFromInt(100000), []string{"BTC/USD"}, paper, store, logger)
	trend := signals.NewTrendFilter(2, 5)

	sup := New(cfg, om, pt, trend, nil, nil, logger)
	return sup, om, pt, paper
}

func TestCanPlaceOrderRejectsWhenGloballyHalted(t *testing.T) {
	sup, _, _, _ := newTestSupervisor(t, Config{MaxOpenOrders: 10})
	sup.CheckDrawdown(decimal.NewFromInt(100))
	require.True(t, sup.CanPlaceOrder("BTC/USD", core.Buy, decimal.NewFromInt(100), decimal.NewFromInt(1)))

	cfg := Config{MaxOpenOrders: 10, MaxDrawdownPct: decimal.NewFromInt(1)}
	sup2, _, _, _ := newTestSupervisor(t, cfg)
	sup2.CheckDrawdown(decimal.NewFromInt(100))
	require.True(t, sup2.CheckDrawdown(decimal.NewFromInt(90)))
	require.False(t, sup2.CanPlaceOrder("BTC/USD", core.Buy, decimal.NewFromInt(100), decimal.NewFromInt(1)))
}

func TestCanPlaceOrderRejectsWhenPairHalted(t *testing.T) {
	sup, _, _, _ := newTestSupervisor(t, Config{MaxOpenOrders: 10, StopLossPct: decimal.NewFromInt(5)})
	require.True(t, sup.CheckStopLoss("BTC/USD", decimal.NewFromInt(94), decimal.NewFromInt(100)))
	require.True(t, sup.IsPairHalted("BTC/USD"))
	require.False(t, sup.CanPlaceOrder("BTC/USD", core.Buy, decimal.NewFromInt(100), decimal.NewFromInt(1)))
}

func TestCanPlaceOrderRejectsAtMaxOpenOrders(t *testing.T) {
	sup, om, _, _ := newTestSupervisor(t, Config{MaxOpenOrders: 1})
	ctx := context.Background()
	_, err := om.PlaceGridOrder(ctx, "BTC/USD", core.Buy, decimal.NewFromFloat(0.01), decimal.NewFromInt(59000), 0)
	require.NoError(t, err)
	require.False(t, sup.CanPlaceOrder("BTC/USD", core.Buy, decimal.NewFromInt(100), decimal.NewFromInt(1)))
}

func TestCanPlaceOrderRejectsBuyWhenTrendDown(t *testing.T) {
	sup, _, _, _ := newTestSupervisor(t, Config{MaxOpenOrders: 10})
	for _, p := range []float64{30, 30, 30, 20, 10} {
		sup.trend.Push("BTC/USD", decimal.NewFromFloat(p))
	}
	require.False(t, sup.CanPlaceOrder("BTC/USD", core.Buy, decimal.NewFromInt(100), decimal.NewFromInt(1)))
	require.True(t, sup.CanPlaceOrder("BTC/USD", core.Sell, decimal.NewFromInt(100), decimal.NewFromInt(1)))
}

func TestCanPlaceOrderRejectsBuyWhenInsufficientFunds(t *testing.T) {
	sup, _, _, _ := newTestSupervisor(t, Config{MaxOpenOrders: 10})
	require.False(t, sup.CanPlaceOrder("BTC/USD", core.Buy, decimal.NewFromInt(1000000), decimal.NewFromInt(1)))
}

func TestCanPlaceOrderRejectsBuyAtPositionCeiling(t *testing.T) {
	sup, _, pt, _ := newTestSupervisor(t, Config{MaxOpenOrders: 10, MaxPositionQuotePerPair: decimal.NewFromInt(1000)})
	require.NoError(t, pt.RecordFill("BTC/USD", core.Buy, decimal.NewFromFloat(0.1), decimal.NewFromInt(20000), decimal.Zero))
	require.False(t, sup.CanPlaceOrder("BTC/USD", core.Buy, decimal.NewFromInt(1), decimal.NewFromInt(1)))
}

func TestResetHaltClearsBothBits(t *testing.T) {
	sup, _, _, _ := newTestSupervisor(t, Config{MaxOpenOrders: 10, StopLossPct: decimal.NewFromInt(5), MaxDrawdownPct: decimal.NewFromInt(1)})
	sup.CheckStopLoss("BTC/USD", decimal.NewFromInt(94), decimal.NewFromInt(100))
	sup.CheckDrawdown(decimal.NewFromInt(100))
	sup.CheckDrawdown(decimal.NewFromInt(90))
	require.True(t, sup.IsPairHalted("BTC/USD"))
	require.True(t, sup.IsGlobalHalted())

	sup.ResetHalt()
	require.False(t, sup.IsPairHalted("BTC/USD"))
	require.False(t, sup.IsGlobalHalted())
}
