package backtest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gridbot/internal/core"
	"gridbot/internal/logging"
	"gridbot/internal/risk"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func writeCandleCSV(t *testing.T, rows [][]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "candles.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.WriteString("ts,open,high,low,close,volume\n")
	require.NoError(t, err)
	for _, row := range rows {
		_, err := f.WriteString(row[0] + "," + row[1] + "," + row[2] + "," + row[3] + "," + row[4] + "," + row[5] + "\n")
		require.NoError(t, err)
	}
	return path
}

func TestLoadCandlesParsesRows(t *testing.T) {
	path := writeCandleCSV(t, [][]string{
		{"1700000000", "100", "101", "99", "100.5", "10"},
		{"1700000060", "100.5", "102", "100", "101", "12"},
	})

	candles, err := LoadCandles(path)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	require.Equal(t, int64(1700000000), candles[0].Ts)
	require.True(t, candles[0].Close.Equal(decimal.NewFromFloat(100.5)))
	require.True(t, candles[1].High.Equal(decimal.NewFromInt(102)))
}

func TestRunReplaysCandlesAndReportsEquity(t *testing.T) {
	logger, err := logging.NewZapLogger("ERROR")
	require.NoError(t, err)

	candles := []core.Candle{
		{Ts: 1, Close: decimal.NewFromInt(100)},
		{Ts: 2, Close: decimal.NewFromInt(90)},
		{Ts: 3, Close: decimal.NewFromInt(110)},
	}

	cfg := Config{
		Grid: core.GridConfig{
			Symbol:         "BTC/USD",
			Lower:          decimal.NewFromInt(80),
			Upper:          decimal.NewFromInt(120),
			NumLevels:      5,
			Spacing:        core.Arithmetic,
			OrderSizeQuote: decimal.NewFromInt(10),
		},
		Risk: risk.Config{
			MaxOpenOrders:    10,
			MaxPositionQuote: decimal.NewFromInt(100000),
		},
		InitialBalanceQuote: decimal.NewFromInt(100000),
	}

	result, err := Run(context.Background(), cfg, candles, logger)
	require.NoError(t, err)
	require.Equal(t, "BTC/USD", result.Symbol)
	require.Len(t, result.EquityCurve, 3)
	require.True(t, result.StartEquity.IsPositive())
	require.True(t, result.FinalEquity.IsPositive())
}

func TestRunRejectsEmptyCandleTape(t *testing.T) {
	logger, err := logging.NewZapLogger("ERROR")
	require.NoError(t, err)
	_, err = Run(context.Background(), Config{}, nil, logger)
	require.Error(t, err)
}
