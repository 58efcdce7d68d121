package main

import (
	"context"
	"flag"
	"fmt"

	"gridbot/internal/backtest"
	"gridbot/internal/bootstrap"

	"github.com/shopspring/decimal"
)

func backtestCmd(args []string) error {
	fs := flag.NewFlagSet("backtest", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML config document")
	dataPath := fs.String("data", "", "CSV candle tape: ts,open,high,low,close,volume")
	initialBalance := fs.String("initial-balance", "", "override the grid's initial quote balance")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dataPath == "" {
		return fmt.Errorf("backtest: --data is required")
	}

	cfg, err := bootstrap.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if len(cfg.Grids) == 0 {
		return fmt.Errorf("backtest: config has no grids configured")
	}
	logger, err := bootstrap.InitLogger(cfg)
	if err != nil {
		return err
	}

	orchCfg, err := cfg.ToOrchestratorConfig()
	if err != nil {
		return fmt.Errorf("backtest: translate config: %w", err)
	}
	gridCfg := orchCfg.Grids[0]

	startBalance := orchCfg.InitialBalanceQuote
	if *initialBalance != "" {
		startBalance, err = decimal.NewFromString(*initialBalance)
		if err != nil {
			return fmt.Errorf("backtest: --initial-balance: %w", err)
		}
	}

	candles, err := backtest.LoadCandles(*dataPath)
	if err != nil {
		return err
	}

	result, err := backtest.Run(context.Background(), backtest.Config{
		Grid:                gridCfg,
		Risk:                orchCfg.Risk,
		InitialBalanceQuote: startBalance,
	}, candles, logger)
	if err != nil {
		return err
	}

	printReport(result)
	return nil
}

func printReport(r backtest.Result) {
	fmt.Printf("backtest report: %s\n", r.Symbol)
	fmt.Printf("  candles processed:   %d\n", len(r.EquityCurve))
	fmt.Printf("  fills:               %d\n", r.FillCount)
	fmt.Printf("  start equity:        %s\n", r.StartEquity.StringFixed(2))
	fmt.Printf("  final equity:        %s\n", r.FinalEquity.StringFixed(2))
	pnl := r.FinalEquity.Sub(r.StartEquity)
	fmt.Printf("  net P&L:             %s\n", pnl.StringFixed(2))
	fmt.Printf("  max drawdown:        %s%%\n", r.MaxDrawdown.Mul(decimal.NewFromInt(100)).StringFixed(2))
	fmt.Printf("  final base balance:  %s\n", r.FinalPosition.BaseBalance.StringFixed(8))
}
