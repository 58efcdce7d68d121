package strategy

import (
	"context"
	"path/filepath"
	"testing"

	"gridbot/internal/exchange"
	"gridbot/internal/journal"
	"gridbot/internal/logging"
	"gridbot/internal/position"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newDipSniperHarness(t *testing.T, symbol string, cfg DipSniperConfig) (*DipSniper, *exchange.Paper, *position.Tracker) {
	t.Helper()
	logger, err := logging.NewZapLogger("ERROR")
	require.NoError(t, err)

	store, err := journal.Open(context.Background(), filepath.Join(t.TempDir(), "j.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	paper := exchange.NewPaper(exchange.PaperConfig{InitialBalanceQuote: decimal.NewFromInt(1000)}, logger)
	positions := position.New(decimal.NewFromInt(1000), []string{symbol}, paper, store, logger)
	sniper := NewDipSniper(cfg, paper, positions, logger)
	return sniper, paper, positions
}

func feed(ctx context.Context, sniper *DipSniper, paper *exchange.Paper, symbol string, prices []int64) {
	for _, p := range prices {
		price := decimal.NewFromInt(p)
		paper.SimulatePrices(map[string]decimal.Decimal{symbol: price})
		sniper.Evaluate(ctx, symbol, price)
	}
}

func TestDipSniperEntersOnSharpDrop(t *testing.T) {
	symbol := "BTC/USD"
	cfg := DipSniperConfig{
		PositionSizeQuote: decimal.NewFromInt(100),
		LookbackCount:     5,
		DipThresholdPct:   decimal.NewFromInt(-3),
		TakeProfitPct:     decimal.NewFromInt(2),
		StopLossPct:       decimal.NewFromInt(2),
		CooldownSecs:      30,
	}
	sniper, paper, positions := newDipSniperHarness(t, symbol, cfg)
	ctx := context.Background()

	// Window fills at a flat 100, then a sharp drop crosses -3%.
	feed(ctx, sniper, paper, symbol, []int64{100, 100, 100, 100, 96})

	require.True(t, positions.Pair(symbol).BaseBalance.IsPositive(), "expected entry on a >3%% drop off the window high")
}

func TestDipSniperExitsOnTakeProfitThenCoolsDown(t *testing.T) {
	symbol := "ETH/USD"
	cfg := DipSniperConfig{
		PositionSizeQuote: decimal.NewFromInt(100),
		LookbackCount:     5,
		DipThresholdPct:   decimal.NewFromInt(-3),
		TakeProfitPct:     decimal.NewFromInt(2),
		StopLossPct:       decimal.NewFromInt(2),
		CooldownSecs:      3600,
	}
	sniper, paper, positions := newDipSniperHarness(t, symbol, cfg)
	ctx := context.Background()

	feed(ctx, sniper, paper, symbol, []int64{100, 100, 100, 100, 96})
	require.True(t, positions.Pair(symbol).BaseBalance.IsPositive())

	// 96 * 1.02 = 97.92; 98 crosses take-profit.
	price := decimal.NewFromInt(98)
	paper.SimulatePrices(map[string]decimal.Decimal{symbol: price})
	sniper.Evaluate(ctx, symbol, price)

	require.True(t, positions.Pair(symbol).BaseBalance.IsZero(), "expected take-profit exit to flatten the position")

	// Still within cooldown: a fresh dip must not re-enter.
	feed(ctx, sniper, paper, symbol, []int64{98, 98, 98, 98, 94})
	require.True(t, positions.Pair(symbol).BaseBalance.IsZero(), "expected cooldown to block re-entry")
}

func TestDipSniperExitsOnStopLoss(t *testing.T) {
	symbol := "SOL/USD"
	cfg := DipSniperConfig{
		PositionSizeQuote: decimal.NewFromInt(100),
		LookbackCount:     5,
		DipThresholdPct:   decimal.NewFromInt(-3),
		TakeProfitPct:     decimal.NewFromInt(2),
		StopLossPct:       decimal.NewFromInt(2),
		CooldownSecs:      30,
	}
	sniper, paper, positions := newDipSniperHarness(t, symbol, cfg)
	ctx := context.Background()

	feed(ctx, sniper, paper, symbol, []int64{100, 100, 100, 100, 96})
	require.True(t, positions.Pair(symbol).BaseBalance.IsPositive())

	// 96 * 0.98 = 94.08; 94 crosses stop-loss.
	price := decimal.NewFromInt(94)
	paper.SimulatePrices(map[string]decimal.Decimal{symbol: price})
	sniper.Evaluate(ctx, symbol, price)

	require.True(t, positions.Pair(symbol).BaseBalance.IsZero(), "expected stop-loss exit to flatten the position")
}
