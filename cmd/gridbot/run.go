package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"gridbot/internal/alert"
	"gridbot/internal/bootstrap"
	"gridbot/internal/config"
	"gridbot/internal/core"
	"gridbot/internal/dashboard"
	"gridbot/internal/exchange"
	"gridbot/internal/journal"
	"gridbot/internal/orchestrator"
	"gridbot/internal/telemetry"

	"github.com/shopspring/decimal"
)

func runCmd(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML config document")
	dashboardOn := fs.Bool("dashboard", true, "serve the dashboard push channel")
	noDashboard := fs.Bool("no-dashboard", false, "disable the dashboard push channel")
	if err := fs.Parse(args); err != nil {
		return err
	}

	app, err := bootstrap.NewApp(*configPath)
	if err != nil {
		return err
	}
	logger := app.Logger

	tracing, err := telemetry.Setup("gridbot")
	if err != nil {
		return fmt.Errorf("telemetry setup: %w", err)
	}

	dbPath := app.Cfg.DBPath
	if dbPath == "" {
		dbPath = "gridbot.db"
	}
	store, err := journal.Open(context.Background(), dbPath, logger)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	exch, err := buildExchange(app.Cfg, logger)
	if err != nil {
		store.Close()
		return fmt.Errorf("build exchange: %w", err)
	}

	alerter := buildAlerter(app.Cfg, logger)

	orchCfg, err := app.Cfg.ToOrchestratorConfig()
	if err != nil {
		store.Close()
		return fmt.Errorf("translate config: %w", err)
	}

	orch := orchestrator.New(orchCfg, exch, store, alerter, logger)
	orch.SetPriceFeed(exchange.NewCoinbasePriceFeed(logger))

	runners := []bootstrap.Runner{orchestratorRunner{orch}}
	if *dashboardOn && !*noDashboard {
		dash := dashboard.New(dashboard.Config{
			Addr:           fmt.Sprintf("%s:%d", app.Cfg.Dashboard.Host, app.Cfg.Dashboard.Port),
			AllowedOrigins: []string{"*"},
		}, orch, logger)
		runners = append(runners, dashboardRunner{dash})
	}

	runErr := app.Run(runners...)

	app.Shutdown(10*time.Second, cleanupFunc(store, tracing))

	return runErr
}

// orchestratorRunner adapts *orchestrator.Orchestrator to bootstrap.Runner.
type orchestratorRunner struct {
	orch *orchestrator.Orchestrator
}

func (r orchestratorRunner) Run(ctx context.Context) error {
	if err := r.orch.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return r.orch.Stop(context.Background())
}

// dashboardRunner adapts *dashboard.Server to bootstrap.Runner.
type dashboardRunner struct {
	srv *dashboard.Server
}

func (r dashboardRunner) Run(ctx context.Context) error {
	return r.srv.Start(ctx)
}

func cleanupFunc(store *journal.Store, tracing *telemetry.Tracing) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := tracing.Shutdown(ctx); err != nil {
			return err
		}
		return store.Close()
	}
}

func buildAlerter(cfg *config.Config, logger core.ILogger) *alert.AlertManager {
	am := alert.NewAlertManager(logger)
	if webhook := string(cfg.Alerting.SlackWebhookURL); webhook != "" {
		am.AddChannel(alert.NewSlackChannel(webhook))
	}
	if token := string(cfg.Alerting.TelegramBotToken); token != "" {
		am.AddChannel(alert.NewTelegramChannel(token, cfg.Alerting.TelegramChatID))
	}
	return am
}

// buildExchange constructs the control plane's ExchangeAdapter. Only the
// paper simulator ships in this binary — Live's VenueClient is supplied
// by the caller outside the control plane; a config naming a live venue
// without an injected VenueClient is a configuration error.
func buildExchange(cfg *config.Config, logger core.ILogger) (core.ExchangeAdapter, error) {
	if !cfg.PaperTrading.Enabled {
		return nil, fmt.Errorf("exchange %q requires an externally-supplied VenueClient; only paperTrading.enabled is wired in this binary", cfg.Exchange.Name)
	}

	initQuote, err := decimalOrZero(cfg.PaperTrading.InitialBalanceQuote)
	if err != nil {
		return nil, fmt.Errorf("paperTrading.initialBalanceQuote: %w", err)
	}
	initBase, err := decimalOrZero(cfg.PaperTrading.InitialBalanceBase)
	if err != nil {
		return nil, fmt.Errorf("paperTrading.initialBalanceBase: %w", err)
	}
	fee, err := decimalOrZero(cfg.PaperTrading.SimulatedFeePct)
	if err != nil {
		return nil, fmt.Errorf("paperTrading.simulatedFeePct: %w", err)
	}

	return exchange.NewPaper(exchange.PaperConfig{
		InitialBalanceQuote: initQuote,
		InitialBalanceBase:  initBase,
		SimulatedFeePct:     fee,
	}, logger), nil
}

func decimalOrZero(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
