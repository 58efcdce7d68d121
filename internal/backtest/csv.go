// Package backtest replays a historical candle tape through the
// control plane's own GridEngine and Paper adapter: the only thing
// that differs from live paper trading is where price updates come
// from.
package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"gridbot/internal/core"

	"github.com/shopspring/decimal"
)

// LoadCandles reads a CSV tape with header ts,open,high,low,close,volume.
// ts is a Unix seconds timestamp; the OHLCV columns are decimal strings.
func LoadCandles(path string) ([]core.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("backtest: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("backtest: read header: %w", err)
	}
	if len(header) < 6 {
		return nil, fmt.Errorf("backtest: expected 6 columns (ts,open,high,low,close,volume), got %d", len(header))
	}

	var candles []core.Candle
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("backtest: read row: %w", err)
		}
		c, err := parseRow(row)
		if err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func parseRow(row []string) (core.Candle, error) {
	ts, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return core.Candle{}, fmt.Errorf("backtest: parse ts %q: %w", row[0], err)
	}
	open, err := decimal.NewFromString(row[1])
	if err != nil {
		return core.Candle{}, fmt.Errorf("backtest: parse open %q: %w", row[1], err)
	}
	high, err := decimal.NewFromString(row[2])
	if err != nil {
		return core.Candle{}, fmt.Errorf("backtest: parse high %q: %w", row[2], err)
	}
	low, err := decimal.NewFromString(row[3])
	if err != nil {
		return core.Candle{}, fmt.Errorf("backtest: parse low %q: %w", row[3], err)
	}
	closePrice, err := decimal.NewFromString(row[4])
	if err != nil {
		return core.Candle{}, fmt.Errorf("backtest: parse close %q: %w", row[4], err)
	}
	volume, err := decimal.NewFromString(row[5])
	if err != nil {
		return core.Candle{}, fmt.Errorf("backtest: parse volume %q: %w", row[5], err)
	}

	return core.Candle{Ts: ts, Open: open, High: high, Low: low, Close: closePrice, Volume: volume}, nil
}
