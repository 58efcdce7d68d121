package position

import (
	"context"
	"path/filepath"
	"testing"

	"gridbot/internal/core"
	"gridbot/internal/exchange"
	"gridbot/internal/journal"
	"gridbot/internal/logging"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T, initial decimal.Decimal, symbols []string) (*Tracker, *exchange.Paper) {
	t.Helper()
	logger, err := logging.NewZapLogger("ERROR")
	require.NoError(t, err)
	store, err := journal.Open(context.Background(), filepath.Join(t.TempDir(), "j.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	paper := exchange.NewPaper(exchange.PaperConfig{InitialBalanceQuote: initial}, logger)
	return New(initial, symbols, paper, store, logger), paper
}

func TestRecordFillBuyUpdatesAvgEntryAndAvailable(t *testing.T) {
	tr, _ := newTestTracker(t, decimal.NewFromInt(10000), []string{"BTC/USD"})

	err := tr.RecordFill("BTC/USD", core.Buy, decimal.NewFromFloat(0.1), decimal.NewFromInt(50000), decimal.NewFromFloat(0.5))
	require.NoError(t, err)

	pair := tr.Pair("BTC/USD")
	require.True(t, pair.BaseBalance.Equal(decimal.NewFromFloat(0.1)))
	require.True(t, pair.AvgEntryPrice.Equal(decimal.NewFromInt(50000)))

	pool := tr.Pool()
	want := decimal.NewFromInt(10000).Sub(decimal.NewFromFloat(0.1).Mul(decimal.NewFromInt(50000))).Sub(decimal.NewFromFloat(0.5))
	require.True(t, pool.AvailableQuote.Equal(want), "got %s want %s", pool.AvailableQuote, want)
	require.True(t, pool.TotalFees.Equal(decimal.NewFromFloat(0.5)))
}

func TestRecordFillSellRealizesProfitAndSecures(t *testing.T) {
	tr, _ := newTestTracker(t, decimal.NewFromInt(10000), []string{"BTC/USD"})

	require.NoError(t, tr.RecordFill("BTC/USD", core.Buy, decimal.NewFromFloat(0.1), decimal.NewFromInt(50000), decimal.Zero))
	require.NoError(t, tr.RecordFill("BTC/USD", core.Sell, decimal.NewFromFloat(0.1), decimal.NewFromInt(51000), decimal.NewFromFloat(1)))

	pair := tr.Pair("BTC/USD")
	wantProfit := decimal.NewFromInt(51000).Sub(decimal.NewFromInt(50000)).Mul(decimal.NewFromFloat(0.1)).Sub(decimal.NewFromFloat(1))
	require.True(t, pair.RealizedPnl.Equal(wantProfit), "got %s want %s", pair.RealizedPnl, wantProfit)
	require.True(t, pair.BaseBalance.IsZero())

	pool := tr.Pool()
	require.True(t, pool.SecuredProfits.Equal(wantProfit))
}

func TestCanAffordBuy(t *testing.T) {
	tr, _ := newTestTracker(t, decimal.NewFromInt(1000), []string{"BTC/USD"})
	require.True(t, tr.CanAffordBuy(decimal.NewFromInt(500)))
	require.True(t, tr.CanAffordBuy(decimal.NewFromInt(1000)))
	require.False(t, tr.CanAffordBuy(decimal.NewFromInt(1001)))
}

func TestUpdateUnrealizedZeroWhenFlat(t *testing.T) {
	tr, paper := newTestTracker(t, decimal.NewFromInt(1000), []string{"BTC/USD"})
	paper.SimulatePrices(map[string]decimal.Decimal{"BTC/USD": decimal.NewFromInt(60000)})

	require.NoError(t, tr.UpdateUnrealized(context.Background(), "BTC/USD"))
	pair := tr.Pair("BTC/USD")
	require.True(t, pair.UnrealizedPnl.IsZero())
}

func TestUpdateUnrealizedReflectsPriceMove(t *testing.T) {
	tr, paper := newTestTracker(t, decimal.NewFromInt(10000), []string{"BTC/USD"})
	require.NoError(t, tr.RecordFill("BTC/USD", core.Buy, decimal.NewFromFloat(0.1), decimal.NewFromInt(50000), decimal.Zero))

	paper.SimulatePrices(map[string]decimal.Decimal{"BTC/USD": decimal.NewFromInt(55000)})
	require.NoError(t, tr.UpdateUnrealized(context.Background(), "BTC/USD"))

	pair := tr.Pair("BTC/USD")
	want := decimal.NewFromInt(55000).Sub(decimal.NewFromInt(50000)).Mul(decimal.NewFromFloat(0.1))
	require.True(t, pair.UnrealizedPnl.Equal(want), "got %s want %s", pair.UnrealizedPnl, want)
}

// TestUniversalLedgerInvariant exercises the ledger invariant: available
// + secured + sum(base*avgEntry) + sum(realized) - secured equals
// initialBalance - totalFees, to within a tiny epsilon, across a mixed
// sequence of buys and sells.
func TestUniversalLedgerInvariant(t *testing.T) {
	initial := decimal.NewFromInt(100000)
	tr, _ := newTestTracker(t, initial, []string{"BTC/USD", "ETH/USD"})

	type fill struct {
		symbol string
		side   core.Side
		amount string
		price  string
		fee    string
	}
	fills := []fill{
		{"BTC/USD", core.Buy, "0.2", "50000", "1"},
		{"BTC/USD", core.Buy, "0.1", "51000", "0.5"},
		{"BTC/USD", core.Sell, "0.15", "52000", "0.6"},
		{"ETH/USD", core.Buy, "2", "3000", "0.3"},
		{"ETH/USD", core.Sell, "1", "3200", "0.2"},
		{"BTC/USD", core.Sell, "0.15", "49000", "0.4"},
	}

	totalFees := decimal.Zero
	for _, f := range fills {
		amount, _ := decimal.NewFromString(f.amount)
		price, _ := decimal.NewFromString(f.price)
		fee, _ := decimal.NewFromString(f.fee)
		require.NoError(t, tr.RecordFill(f.symbol, f.side, amount, price, fee))
		totalFees = totalFees.Add(fee)
	}

	pool := tr.Pool()
	positionValue := tr.TotalPositionQuoteValue()
	realizedSum := tr.Pair("BTC/USD").RealizedPnl.Add(tr.Pair("ETH/USD").RealizedPnl)

	ledger := pool.AvailableQuote.Add(pool.SecuredProfits).Add(positionValue).Add(realizedSum).Sub(pool.SecuredProfits)
	want := initial.Sub(totalFees)

	diff := ledger.Sub(want).Abs()
	epsilon := decimal.NewFromFloat(1e-6)
	require.True(t, diff.LessThanOrEqual(epsilon), "ledger=%s want=%s diff=%s", ledger, want, diff)
}
