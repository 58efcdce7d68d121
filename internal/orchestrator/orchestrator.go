// Package orchestrator owns every subsystem and drives the single main
// loop: a cooperative per-tick state machine with concurrent I/O fan-out
// restricted to price refresh, startup reconciliation, and ancillary
// strategy evaluation.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gridbot/internal/alert"
	"gridbot/internal/concurrency"
	"gridbot/internal/core"
	"gridbot/internal/exchange"
	"gridbot/internal/gridengine"
	"gridbot/internal/journal"
	"gridbot/internal/ordermanager"
	"gridbot/internal/position"
	"gridbot/internal/risk"
	"gridbot/internal/signals"
	"gridbot/internal/strategy"
	apperrors "gridbot/pkg/errors"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Config is everything the Orchestrator needs to build its subsystems;
// internal/config.Config is translated into this shape by the caller
// (cmd/gridbot), keeping this package free of YAML concerns.
type Config struct {
	Grids               []core.GridConfig
	Risk                risk.Config
	InitialBalanceQuote decimal.Decimal

	PollInterval     time.Duration
	SnapshotInterval time.Duration

	TrendFilterEnabled bool
	TrendShortWindow   int
	TrendLongWindow    int

	StopLossEnabled      bool
	StopLossThresholdPct decimal.Decimal
	StopLossCooldownSecs int

	PairRotationEnabled      bool
	PairRotationEveryNTicks  int
	PairRotationMinTrades    int
	PairRotationPauseThresh  decimal.Decimal

	SentimentRefreshInterval time.Duration // 0 disables the sentiment gate entirely

	RecenterOnStart bool // re-center each grid around the current live price before first init; Paper-only in practice

	MomentumEnabled           bool
	MomentumPositionSizeQuote decimal.Decimal
	MomentumMinTrendConfirms  int

	DipSniperEnabled           bool
	DipSniperPositionSizeQuote decimal.Decimal
	DipSniperLookbackCount     int
	DipSniperDipThresholdPct   decimal.Decimal
	DipSniperTakeProfitPct     decimal.Decimal
	DipSniperStopLossPct       decimal.Decimal
	DipSniperCooldownSecs      int
}

type reconfigureRequest struct {
	cfg  core.GridConfig
	done chan error
}

// Orchestrator owns PositionTracker, OrderManager, RiskSupervisor, the
// defensive signals, and one GridEngine per configured pair.
type Orchestrator struct {
	cfg Config

	exchange  core.ExchangeAdapter
	priceFeed exchange.PriceFeed
	store     *journal.Store
	alerter   *alert.AlertManager
	logger    core.ILogger

	orders    *ordermanager.Manager
	positions *position.Tracker
	riskSup   *risk.Supervisor
	trend     *signals.TrendFilter
	stopLoss  *signals.PositionStopLoss
	rotator   *signals.PairRotator
	sentiment *signals.SentimentGate
	pool      *concurrency.WorkerPool
	momentum  *strategy.MomentumRider
	dipSniper *strategy.DipSniper

	mu      sync.Mutex
	status  core.BotStatus
	engines map[string]*gridengine.Engine
	symbols []string

	cmdCh  chan reconfigureRequest
	stopCh chan struct{}
	doneCh chan struct{}

	tickCount int64
}

// New builds an Orchestrator in the IDLE state. alerter may be nil.
func New(cfg Config, exch core.ExchangeAdapter, store *journal.Store, alerter *alert.AlertManager, logger core.ILogger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		exchange: exch,
		store:    store,
		alerter:  alerter,
		logger:   logger.WithField("component", "orchestrator"),
		status:   core.StatusIdle,
		engines:  make(map[string]*gridengine.Engine),
		cmdCh:    make(chan reconfigureRequest, 8),
	}
}

// SetPriceFeed wires an upstream price source used to drive the paper
// simulator's tape; a nil or unset feed leaves Paper mode static, since
// nothing else ever advances its prices. Has no effect against Live.
func (o *Orchestrator) SetPriceFeed(pf exchange.PriceFeed) {
	o.priceFeed = pf
}

// Status reports the current lifecycle state.
func (o *Orchestrator) Status() core.BotStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

func (o *Orchestrator) setStatus(s core.BotStatus) {
	o.mu.Lock()
	o.status = s
	o.mu.Unlock()
}

// Start builds every subsystem, initializes or restores each pair's
// grid, transitions IDLE → STARTING → RUNNING, and spawns the loop.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.setStatus(core.StatusStarting)

	if err := o.exchange.Connect(ctx); err != nil {
		o.setStatus(core.StatusError)
		return fmt.Errorf("orchestrator: connect exchange: %w", err)
	}

	symbols := make([]string, 0, len(o.cfg.Grids))
	for _, g := range o.cfg.Grids {
		symbols = append(symbols, g.Symbol)
	}

	o.orders = ordermanager.New(o.exchange, o.store, o.logger)
	o.positions = position.New(o.cfg.InitialBalanceQuote, symbols, o.exchange, o.store, o.logger)
	o.restorePositions(ctx)

	if o.cfg.TrendFilterEnabled {
		o.trend = signals.NewTrendFilter(o.cfg.TrendShortWindow, o.cfg.TrendLongWindow)
	}
	if o.cfg.StopLossEnabled {
		o.stopLoss = signals.NewPositionStopLoss(o.cfg.StopLossThresholdPct, o.cfg.StopLossCooldownSecs)
	}
	if o.cfg.PairRotationEnabled {
		o.rotator = signals.NewPairRotator(o.cfg.PairRotationMinTrades, o.cfg.PairRotationPauseThresh)
	}
	if o.cfg.SentimentRefreshInterval > 0 {
		o.sentiment = signals.NewSentimentGate(o.logger)
	}
	if o.cfg.MomentumEnabled {
		mcfg := strategy.MomentumConfig{PositionSizeQuote: o.cfg.MomentumPositionSizeQuote, MinTrendConfirms: o.cfg.MomentumMinTrendConfirms}
		o.momentum = strategy.NewMomentumRider(mcfg, o.exchange, o.positions, o.trend, o.logger)
	}
	if o.cfg.DipSniperEnabled {
		dcfg := strategy.DipSniperConfig{
			PositionSizeQuote: o.cfg.DipSniperPositionSizeQuote,
			LookbackCount:     o.cfg.DipSniperLookbackCount,
			DipThresholdPct:   o.cfg.DipSniperDipThresholdPct,
			TakeProfitPct:     o.cfg.DipSniperTakeProfitPct,
			StopLossPct:       o.cfg.DipSniperStopLossPct,
			CooldownSecs:      o.cfg.DipSniperCooldownSecs,
		}
		o.dipSniper = strategy.NewDipSniper(dcfg, o.exchange, o.positions, o.logger)
	}

	o.riskSup = risk.New(o.cfg.Risk, o.orders, o.positions, o.trend, o.sentiment, o.alerter, o.logger)
	o.pool = concurrency.NewWorkerPool(concurrency.PoolConfig{Name: "orchestrator"}, o.logger)

	o.mu.Lock()
	o.symbols = symbols
	o.mu.Unlock()

	o.primePrices(ctx, symbols)

	var pairErrs []string
	o.pool.SubmitEach(len(o.cfg.Grids), func(i int) {
		g := o.cfg.Grids[i]
		if err := o.bringUpPair(ctx, g); err != nil {
			o.logger.Error("failed to bring up pair, continuing with remaining pairs", "symbol", g.Symbol, "error", err)
			o.mu.Lock()
			pairErrs = append(pairErrs, g.Symbol)
			o.mu.Unlock()
		}
	})

	o.stopCh = make(chan struct{})
	o.doneCh = make(chan struct{})
	o.setStatus(core.StatusRunning)
	o.saveBotState(ctx)

	go o.loop(ctx)

	o.logger.Info("orchestrator started", "pairs", len(o.cfg.Grids), "failedPairs", len(pairErrs))
	return nil
}

// primePrices seeds Paper's simulated tape from priceFeed before any grid
// is initialized, so InitializeGrid's first GetTicker call has a price to
// read instead of failing with "no simulated price yet". No-op against
// Live or when no feed is wired.
func (o *Orchestrator) primePrices(ctx context.Context, symbols []string) {
	paper, ok := o.exchange.(*exchange.Paper)
	if !ok || o.priceFeed == nil {
		return
	}
	prices := make(map[string]decimal.Decimal, len(symbols))
	for _, symbol := range symbols {
		price, err := o.priceFeed.FetchPrice(ctx, symbol)
		if err != nil {
			o.logger.Warn("price feed priming failed", "symbol", symbol, "error", err)
			continue
		}
		prices[symbol] = price
	}
	paper.SimulatePrices(prices)
}

func (o *Orchestrator) restorePositions(ctx context.Context) {
	pool, ok, err := o.store.LoadPoolState(ctx)
	if err != nil || !ok {
		return
	}
	pairs := make(map[string]core.PairPositionState)
	for _, symbol := range o.symbolsSnapshot() {
		// Per-pair state is not separately persisted outside snapshots;
		// the pool figure is authoritative across restarts and every
		// pair starts again from an empty position.
		pairs[symbol] = core.PairPositionState{Symbol: symbol}
	}
	o.positions.Restore(pool, pairs)
}

func (o *Orchestrator) symbolsSnapshot() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.symbols))
	copy(out, o.symbols)
	return out
}

// bringUpPair restores a pair's persisted lattice, or re-centers (if
// configured, paper-only) and initializes a fresh one, then registers
// the resulting engine.
func (o *Orchestrator) bringUpPair(ctx context.Context, g core.GridConfig) error {
	persisted, err := o.store.Levels(ctx, g.Symbol)
	if err == nil && len(persisted) > 0 {
		eng := gridengine.New(g, o.riskSup, o.orders, o.positions, o.store, o.exchange, o.logger)
		var liveIDs []string
		for _, lvl := range persisted {
			if lvl.Status == core.LevelPlaced && lvl.VenueOrderID != "" {
				liveIDs = append(liveIDs, lvl.VenueOrderID)
			}
		}
		o.orders.RestoreLiveIDs(g.Symbol, liveIDs)
		eng.RestoreLevels(persisted)
		if err := o.orders.ReconcileWithExchange(ctx, g.Symbol); err != nil {
			o.logger.Warn("reconcile failed on restore, continuing with restored levels", "symbol", g.Symbol, "error", err)
		}
		return o.finishBringUp(ctx, g.Symbol, eng)
	}

	grid := g
	if o.cfg.RecenterOnStart {
		if _, isPaper := o.exchange.(*exchange.Paper); isPaper {
			grid = recenter(ctx, o.exchange, grid)
		}
	}
	eng := gridengine.New(grid, o.riskSup, o.orders, o.positions, o.store, o.exchange, o.logger)
	if err := eng.InitializeGrid(ctx); err != nil {
		return err
	}
	return o.finishBringUp(ctx, g.Symbol, eng)
}

func (o *Orchestrator) finishBringUp(ctx context.Context, symbol string, eng *gridengine.Engine) error {
	o.persistLevels(ctx, symbol, eng)
	if err := o.store.SaveGridConfig(ctx, eng.Config(), eng.TrailingShiftCount()); err != nil {
		o.logger.Error("failed to persist grid config", "symbol", symbol, "error", err)
	}

	o.mu.Lock()
	o.engines[symbol] = eng
	o.mu.Unlock()
	return nil
}

// recenter shifts [lower,upper] to be centered on the current ticker
// price, preserving the range width, for a fresh paper-trading start.
func recenter(ctx context.Context, exch core.ExchangeAdapter, g core.GridConfig) core.GridConfig {
	ticker, err := exch.GetTicker(ctx, g.Symbol)
	if err != nil {
		return g
	}
	width := g.Upper.Sub(g.Lower)
	half := width.Div(decimal.NewFromInt(2))
	g.Lower = ticker.Last.Sub(half)
	g.Upper = ticker.Last.Add(half)
	return g
}

func (o *Orchestrator) persistLevels(ctx context.Context, symbol string, eng *gridengine.Engine) {
	for _, lvl := range eng.Levels() {
		if err := o.store.UpsertLevel(ctx, symbol, lvl); err != nil {
			o.logger.Error("failed to persist grid level", "symbol", symbol, "index", lvl.Index, "error", err)
		}
	}
}

func (o *Orchestrator) saveBotState(ctx context.Context) {
	st := journal.BotState{Status: o.Status(), GlobalHalt: o.riskSup.IsGlobalHalted(), PeakEquity: o.positions.TotalEquityQuote()}
	if err := o.store.SaveBotState(ctx, st); err != nil {
		o.logger.Error("failed to save bot state", "error", err)
	}
}

// Reconfigure swaps one pair's grid configuration. Safe to call while
// RUNNING: it is serialized against the loop via cmdCh, drained only at
// tick start.
func (o *Orchestrator) Reconfigure(ctx context.Context, cfg core.GridConfig) error {
	req := reconfigureRequest{cfg: cfg, done: make(chan error, 1)}
	select {
	case o.cmdCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) drainReconfigure(ctx context.Context) {
	for {
		select {
		case req := <-o.cmdCh:
			req.done <- o.applyReconfigure(ctx, req.cfg)
		default:
			return
		}
	}
}

func (o *Orchestrator) applyReconfigure(ctx context.Context, cfg core.GridConfig) error {
	o.mu.Lock()
	eng, ok := o.engines[cfg.Symbol]
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("orchestrator: reconfigure: unknown symbol %s", cfg.Symbol)
	}

	eng.CancelAllGridOrders(ctx)
	newEng := gridengine.New(cfg, o.riskSup, o.orders, o.positions, o.store, o.exchange, o.logger)
	if err := newEng.InitializeGrid(ctx); err != nil {
		return fmt.Errorf("orchestrator: reconfigure %s: %w", cfg.Symbol, err)
	}

	o.mu.Lock()
	o.engines[cfg.Symbol] = newEng
	o.mu.Unlock()

	o.persistLevels(ctx, cfg.Symbol, newEng)
	if err := o.store.SaveGridConfig(ctx, newEng.Config(), newEng.TrailingShiftCount()); err != nil {
		o.logger.Error("failed to persist reconfigured grid", "symbol", cfg.Symbol, "error", err)
	}
	return nil
}

// loop runs the poll-interval tick until Stop fires, plus an independent
// slow-timer sentiment refresh.
func (o *Orchestrator) loop(ctx context.Context) {
	defer close(o.doneCh)

	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	var sentimentTicker *time.Ticker
	if o.sentiment != nil {
		sentimentTicker = time.NewTicker(o.cfg.SentimentRefreshInterval)
		defer sentimentTicker.Stop()
	}

	lastSnapshot := time.Now()

	for {
		select {
		case <-o.stopCh:
			return
		case <-ctx.Done():
			return
		case <-sentimentTickerC(sentimentTicker):
			o.sentiment.Refresh(ctx)
		case <-ticker.C:
			if err := o.tick(ctx); err != nil {
				o.emergencyShutdown(ctx, err.Error())
				return
			}
			if time.Since(lastSnapshot) >= o.cfg.SnapshotInterval {
				if err := o.positions.SaveSnapshot(ctx); err != nil {
					o.logger.Error("snapshot failed", "error", err)
				}
				lastSnapshot = time.Now()
			}
		}
	}
}

func sentimentTickerC(t *time.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

// tick executes exactly one pass of the run loop: drain pending
// reconfiguration, refresh prices, run every pair's grid step, run the
// ancillary strategies sharing the pair's price feed, then evaluate
// rotation on its own slower cadence. An error return means an invariant
// violation or a drawdown breach was detected and the caller must
// escalate to emergency shutdown.
func (o *Orchestrator) tick(ctx context.Context) error {
	o.mu.Lock()
	o.tickCount++
	o.mu.Unlock()
	o.drainReconfigure(ctx)

	prices, err := o.refreshPrices(ctx)
	if err != nil {
		o.logger.Warn("price refresh had failures this tick", "error", err)
	}
	for symbol, price := range prices {
		if o.trend != nil {
			o.trend.Push(symbol, price)
		}
	}

	for _, symbol := range o.symbolsSnapshot() {
		if err := o.tickPair(ctx, symbol); err != nil {
			return err
		}
	}

	o.runAncillaryStrategies(ctx, prices)

	if o.rotator != nil && o.cfg.PairRotationEveryNTicks > 0 && o.tickCount%int64(o.cfg.PairRotationEveryNTicks) == 0 {
		o.evaluateRotation(ctx)
	}

	equity := o.positions.TotalEquityQuote()
	if o.riskSup.CheckDrawdown(equity) {
		return fmt.Errorf("orchestrator: max drawdown breached at equity %s", equity.String())
	}

	return nil
}

// refreshPrices advances Paper's simulated tape from the upstream price
// feed (if wired) before reading tickers back, since nothing else ever
// moves Paper's price; against Live the upstream-fetch step is skipped
// and GetTicker reads the venue directly.
func (o *Orchestrator) refreshPrices(ctx context.Context) (map[string]decimal.Decimal, error) {
	symbols := o.symbolsSnapshot()
	o.simulateUpstreamPrices(ctx, symbols)

	prices := make(map[string]decimal.Decimal, len(symbols))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			ticker, err := o.exchange.GetTicker(gctx, symbol)
			if err != nil {
				o.logger.Warn("getTicker failed this tick", "symbol", symbol, "error", err)
				return nil // per-pair failure isolation: do not abort the fan-out
			}
			mu.Lock()
			prices[symbol] = ticker.Last
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	return prices, err
}

// simulateUpstreamPrices fetches each symbol's upstream price and ticks
// Paper's tape with it; a no-op against Live or when no feed is wired.
func (o *Orchestrator) simulateUpstreamPrices(ctx context.Context, symbols []string) {
	paper, ok := o.exchange.(*exchange.Paper)
	if !ok || o.priceFeed == nil {
		return
	}

	prices := make(map[string]decimal.Decimal, len(symbols))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			price, err := o.priceFeed.FetchPrice(gctx, symbol)
			if err != nil {
				o.logger.Warn("price feed fetch failed this tick", "symbol", symbol, "error", err)
				return nil
			}
			mu.Lock()
			prices[symbol] = price
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	paper.SimulatePrices(prices)
}

// runAncillaryStrategies dispatches MomentumRider and DipSniper
// evaluation across every pair that has a fresh price this tick,
// concurrently through the same worker pool the grid pairs use; both
// strategies draw on PositionTracker's shared pool allocation rather
// than a dedicated balance of their own.
func (o *Orchestrator) runAncillaryStrategies(ctx context.Context, prices map[string]decimal.Decimal) {
	if o.momentum == nil && o.dipSniper == nil {
		return
	}
	symbols := make([]string, 0, len(prices))
	for symbol := range prices {
		symbols = append(symbols, symbol)
	}
	o.pool.SubmitEach(len(symbols), func(i int) {
		symbol := symbols[i]
		price := prices[symbol]
		if o.momentum != nil {
			o.momentum.Evaluate(ctx, symbol, price)
		}
		if o.dipSniper != nil {
			o.dipSniper.Evaluate(ctx, symbol, price)
		}
	})
}

// tickPair runs the per-pair step: skip if paused/cooling down,
// stop-loss/take-profit, fill processing, trailing.
func (o *Orchestrator) tickPair(ctx context.Context, symbol string) error {
	if o.rotator != nil && o.rotator.IsPaused(symbol) {
		return nil
	}
	if o.stopLoss != nil && o.stopLoss.InCooldown(symbol) {
		return nil
	}

	o.mu.Lock()
	eng, ok := o.engines[symbol]
	o.mu.Unlock()
	if !ok {
		return nil
	}

	pair := o.positions.Pair(symbol)
	if o.stopLoss != nil && o.stopLoss.ShouldTrigger(pair.UnrealizedPnl, pair.BaseBalance, pair.AvgEntryPrice) {
		o.executeStopLossDump(ctx, symbol, eng, pair)
		return nil
	}

	cfg := eng.Config()
	if !cfg.Trailing.Enabled {
		if ticker, err := o.exchange.GetTicker(ctx, symbol); err == nil {
			if o.riskSup.CheckStopLoss(symbol, ticker.Last, cfg.Lower) || o.riskSup.CheckTakeProfit(symbol, ticker.Last, cfg.Upper) {
				eng.CancelAllGridOrders(ctx)
				o.persistLevels(ctx, symbol, eng)
				return nil
			}
		}
	}

	if _, err := eng.CheckAndProcessFills(ctx); err != nil {
		if errors.Is(err, apperrors.ErrInvariantViolation) {
			return err
		}
		o.logger.Error("checkAndProcessFills failed, skipping pair this tick", "symbol", symbol, "error", err)
		return nil
	}
	o.persistLevels(ctx, symbol, eng)

	if cfg.Trailing.Enabled {
		ticker, err := o.exchange.GetTicker(ctx, symbol)
		if err == nil {
			if shifted, err := eng.CheckTrailing(ctx, ticker.Last); err != nil {
				o.logger.Error("checkTrailing failed", "symbol", symbol, "error", err)
			} else if shifted {
				o.persistLevels(ctx, symbol, eng)
				if err := o.store.SaveGridConfig(ctx, eng.Config(), eng.TrailingShiftCount()); err != nil {
					o.logger.Error("failed to persist trailed grid config", "symbol", symbol, "error", err)
				}
			}
		}
	}

	return nil
}

// executeStopLossDump market-sells the full base balance, cancels the
// grid, and starts the cooldown, dispatched through the worker pool so a
// slow market order on one pair doesn't stall the tick for the rest.
func (o *Orchestrator) executeStopLossDump(ctx context.Context, symbol string, eng *gridengine.Engine, pair core.PairPositionState) {
	eng.CancelAllGridOrders(ctx)
	o.persistLevels(ctx, symbol, eng)

	if err := o.pool.Submit(func() {
		order, err := o.exchange.PlaceMarket(ctx, symbol, core.Sell, pair.BaseBalance)
		if err != nil {
			o.logger.Error("stop-loss market sell failed", "symbol", symbol, "error", err)
			return
		}
		if err := o.positions.RecordFill(symbol, core.Sell, order.FilledAmount, order.AvgFillPrice, order.Fee); err != nil {
			o.logger.Error("stop-loss record fill failed", "symbol", symbol, "error", err)
		}
		if o.alerter != nil {
			o.alerter.Alert(ctx, "Stop-loss executed", symbol+" position dumped at market", alert.Warning,
				map[string]string{"symbol": symbol, "amount": pair.BaseBalance.String()})
		}
	}); err != nil {
		o.logger.Error("failed to submit stop-loss dump", "symbol", symbol, "error", err)
	}

	o.stopLoss.StartCooldown(symbol)
}

func (o *Orchestrator) evaluateRotation(ctx context.Context) {
	symbols := o.symbolsSnapshot()
	stats := make([]signals.PairStats, 0, len(symbols))
	for _, symbol := range symbols {
		pair := o.positions.Pair(symbol)
		trend := signals.TrendNeutral
		if o.trend != nil {
			trend = o.trend.Trend(symbol)
		}
		stats = append(stats, signals.PairStats{
			Symbol:        symbol,
			RealizedPnl:   pair.RealizedPnl,
			UnrealizedPnl: pair.UnrealizedPnl,
			TradeCount:    int(pair.TradeCount),
			Trend:         trend,
		})
	}
	for _, symbol := range o.rotator.Evaluate(stats) {
		o.logger.Warn("pair rotator paused symbol", "symbol", symbol)
		o.mu.Lock()
		eng, ok := o.engines[symbol]
		o.mu.Unlock()
		if ok {
			eng.CancelAllGridOrders(ctx)
			o.persistLevels(ctx, symbol, eng)
		}
		o.dumpPairOnRotation(ctx, symbol)
	}
}

// dumpPairOnRotation market-sells the full base balance of a pair the
// rotator just paused, mirroring executeStopLossDump's dispatch pattern:
// a slow market order on one pair must not stall the tick for the rest.
func (o *Orchestrator) dumpPairOnRotation(ctx context.Context, symbol string) {
	pair := o.positions.Pair(symbol)
	if !pair.BaseBalance.IsPositive() {
		return
	}
	if err := o.pool.Submit(func() {
		order, err := o.exchange.PlaceMarket(ctx, symbol, core.Sell, pair.BaseBalance)
		if err != nil {
			o.logger.Error("rotation market sell failed", "symbol", symbol, "error", err)
			return
		}
		if err := o.positions.RecordFill(symbol, core.Sell, order.FilledAmount, order.AvgFillPrice, order.Fee); err != nil {
			o.logger.Error("rotation record fill failed", "symbol", symbol, "error", err)
			return
		}
		if o.alerter != nil {
			o.alerter.Alert(ctx, "Pair rotated out", symbol+" position dumped at market", alert.Warning,
				map[string]string{"symbol": symbol, "amount": pair.BaseBalance.String()})
		}
	}); err != nil {
		o.logger.Error("failed to submit rotation dump", "symbol", symbol, "error", err)
	}
}

// emergencyShutdown halts everything and fires a critical alert; reason
// is typically an invariant-violation message or a drawdown breach message.
func (o *Orchestrator) emergencyShutdown(ctx context.Context, reason string) {
	o.logger.Error("emergency shutdown", "reason", reason)
	o.setStatus(core.StatusError)
	for _, symbol := range o.symbolsSnapshot() {
		o.mu.Lock()
		eng, ok := o.engines[symbol]
		o.mu.Unlock()
		if ok {
			eng.CancelAllGridOrders(ctx)
		}
	}
	o.saveBotState(ctx)
	if o.alerter != nil {
		o.alerter.Alert(ctx, "Emergency shutdown", reason, alert.Critical, map[string]string{"reason": reason})
	}
}

// Stop signals the loop to exit, waits for the current tick to finish,
// cancels every engine's open orders, writes a final snapshot, and
// closes the exchange connection. The journal is left open — the caller
// that opened it is responsible for closing it.
func (o *Orchestrator) Stop(ctx context.Context) error {
	if o.stopCh != nil {
		close(o.stopCh)
		<-o.doneCh
	}

	for _, symbol := range o.symbolsSnapshot() {
		o.mu.Lock()
		eng, ok := o.engines[symbol]
		o.mu.Unlock()
		if ok {
			eng.CancelAllGridOrders(ctx)
		}
	}

	if o.positions != nil {
		if err := o.positions.SaveSnapshot(ctx); err != nil {
			o.logger.Error("final snapshot failed", "error", err)
		}
	}

	o.setStatus(core.StatusStopped)
	if o.store != nil {
		o.saveBotState(ctx)
	}

	if o.pool != nil {
		o.pool.Stop()
	}

	return o.exchange.Close(ctx)
}
