package backtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gridbot/internal/alert"
	"gridbot/internal/core"
	"gridbot/internal/exchange"
	"gridbot/internal/gridengine"
	"gridbot/internal/journal"
	"gridbot/internal/ordermanager"
	"gridbot/internal/position"
	"gridbot/internal/risk"

	"github.com/shopspring/decimal"
)

// Config bundles the single-pair setup a backtest run needs: the grid
// to replay, the risk limits to enforce, and the simulated starting
// capital. Signals (TrendFilter, SentimentGate, PairRotator) are out
// of scope here — a backtest replays one pair's tape against the
// GridEngine's own fill logic, not the Orchestrator's multi-pair loop.
type Config struct {
	Grid                core.GridConfig
	Risk                risk.Config
	InitialBalanceQuote decimal.Decimal
	SimulatedFeePct     decimal.Decimal
}

// EquityPoint is one sample of the equity curve, taken after each
// candle is applied.
type EquityPoint struct {
	Ts     int64
	Equity decimal.Decimal
}

// Result is the terminal report of one backtest run.
type Result struct {
	Symbol        string
	FinalEquity   decimal.Decimal
	StartEquity   decimal.Decimal
	FillCount     int
	MaxDrawdown   decimal.Decimal // fraction, e.g. 0.12 for 12%
	EquityCurve   []EquityPoint
	FinalPosition core.PairPositionState
}

// Run replays candles through a fresh GridEngine and Paper adapter, a
// journal in a temporary file, and a risk supervisor, then reports a
// summary.
func Run(ctx context.Context, cfg Config, candles []core.Candle, logger core.ILogger) (Result, error) {
	if len(candles) == 0 {
		return Result{}, fmt.Errorf("backtest: no candles supplied")
	}
	symbol := cfg.Grid.Symbol

	// A real temp file rather than ":memory:": database/sql pools
	// connections, and a second connection to ":memory:" opens a second,
	// empty database instead of sharing the first.
	scratchDir, err := os.MkdirTemp("", "gridbot-backtest-*")
	if err != nil {
		return Result{}, fmt.Errorf("backtest: create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratchDir)

	store, err := journal.Open(ctx, filepath.Join(scratchDir, "journal.db"), logger)
	if err != nil {
		return Result{}, fmt.Errorf("backtest: open journal: %w", err)
	}
	defer store.Close()

	exch := exchange.NewPaper(exchange.PaperConfig{
		InitialBalanceQuote: cfg.InitialBalanceQuote,
		SimulatedFeePct:     cfg.SimulatedFeePct,
	}, logger)

	// Seed the first tick's price so InitializeGrid can read a ticker.
	exch.SimulatePrices(map[string]decimal.Decimal{symbol: candles[0].Close})

	orders := ordermanager.New(exch, store, logger)
	positions := position.New(cfg.InitialBalanceQuote, []string{symbol}, exch, store, logger)
	alerter := alert.NewAlertManager(logger)
	riskSup := risk.New(cfg.Risk, orders, positions, nil, nil, alerter, logger)

	eng := gridengine.New(cfg.Grid, riskSup, orders, positions, store, exch, logger)
	if err := eng.InitializeGrid(ctx); err != nil {
		return Result{}, fmt.Errorf("backtest: initialize grid: %w", err)
	}

	startEquity := positions.TotalEquityQuote()
	peak := startEquity
	maxDrawdown := decimal.Zero
	fillCount := 0
	curve := make([]EquityPoint, 0, len(candles))

	for _, candle := range candles {
		exch.SimulatePrices(map[string]decimal.Decimal{symbol: candle.Close})

		filled, err := eng.CheckAndProcessFills(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("backtest: process fills at ts=%d: %w", candle.Ts, err)
		}
		fillCount += filled

		if err := positions.UpdateUnrealized(ctx, symbol); err != nil {
			return Result{}, fmt.Errorf("backtest: update unrealized at ts=%d: %w", candle.Ts, err)
		}

		equity := positions.TotalEquityQuote()
		curve = append(curve, EquityPoint{Ts: candle.Ts, Equity: equity})

		if equity.GreaterThan(peak) {
			peak = equity
		}
		if peak.IsPositive() {
			drawdown := peak.Sub(equity).Div(peak)
			if drawdown.GreaterThan(maxDrawdown) {
				maxDrawdown = drawdown
			}
		}
	}

	return Result{
		Symbol:        symbol,
		StartEquity:   startEquity,
		FinalEquity:   positions.TotalEquityQuote(),
		FillCount:     fillCount,
		MaxDrawdown:   maxDrawdown,
		EquityCurve:   curve,
		FinalPosition: positions.Pair(symbol),
	}, nil
}
