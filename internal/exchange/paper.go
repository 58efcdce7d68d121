// Package exchange provides two ExchangeAdapter implementations: Live (a
// thin, retrying wrapper over an out-of-scope venue transport) and Paper
// (a deterministic in-memory simulator).
package exchange

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gridbot/internal/core"
	apperrors "gridbot/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaperConfig configures the simulator's starting balances and fee rate.
type PaperConfig struct {
	InitialBalanceQuote decimal.Decimal
	InitialBalanceBase  decimal.Decimal
	SimulatedFeePct     decimal.Decimal // e.g. 0.001 for 0.1%
}

// Paper is a deterministic in-memory order book. simulatePrices walks
// resting limit orders and fills any crossed by the supplied tape; it
// never touches a network.
type Paper struct {
	mu sync.Mutex

	cfg PaperConfig

	openOrders map[string]*core.Order // venueOrderID -> order
	lastPrice  map[string]decimal.Decimal

	quoteBalance decimal.Decimal
	baseBalance  map[string]decimal.Decimal // symbol -> base asset balance

	logger core.ILogger
}

// NewPaper builds a Paper adapter seeded with the configured balances.
func NewPaper(cfg PaperConfig, logger core.ILogger) *Paper {
	return &Paper{
		cfg:          cfg,
		openOrders:   make(map[string]*core.Order),
		lastPrice:    make(map[string]decimal.Decimal),
		quoteBalance: cfg.InitialBalanceQuote,
		baseBalance:  make(map[string]decimal.Decimal),
		logger:       logger.WithField("component", "paper_exchange"),
	}
}

func (p *Paper) Connect(ctx context.Context) error { return nil }
func (p *Paper) Close(ctx context.Context) error   { return nil }

func (p *Paper) GetTicker(ctx context.Context, symbol string) (core.Ticker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.lastPrice[symbol]
	if !ok {
		return core.Ticker{}, fmt.Errorf("exchange: no simulated price for %s yet: %w", symbol, apperrors.ErrServiceUnavailable)
	}
	return core.Ticker{Symbol: symbol, Last: last, Bid: last, Ask: last, Ts: time.Now().UnixMilli()}, nil
}

func (p *Paper) GetBalance(ctx context.Context) (map[string]core.Balance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := map[string]core.Balance{
		"quote": {Free: p.quoteBalance, Used: decimal.Zero, Total: p.quoteBalance},
	}
	for symbol, bal := range p.baseBalance {
		out[symbol] = core.Balance{Free: bal, Used: decimal.Zero, Total: bal}
	}
	return out, nil
}

// PlaceLimit records a resting order; it is filled later by
// SimulatePrices, never at placement time.
func (p *Paper) PlaceLimit(ctx context.Context, symbol string, side core.Side, amount, price decimal.Decimal) (core.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	order := core.Order{
		VenueOrderID: uuid.NewString(),
		Symbol:       symbol,
		Side:         side,
		Price:        price,
		Amount:       amount,
		Status:       core.OrderOpen,
		Ts:           time.Now(),
	}
	p.openOrders[order.VenueOrderID] = &order
	return order, nil
}

// PlaceMarket fills immediately at the last simulated price.
func (p *Paper) PlaceMarket(ctx context.Context, symbol string, side core.Side, amount decimal.Decimal) (core.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	last, ok := p.lastPrice[symbol]
	if !ok {
		return core.Order{}, fmt.Errorf("exchange: no simulated price for %s yet: %w", symbol, apperrors.ErrServiceUnavailable)
	}

	fee := amount.Mul(last).Mul(p.cfg.SimulatedFeePct)
	order := core.Order{
		VenueOrderID: uuid.NewString(),
		Symbol:       symbol,
		Side:         side,
		Price:        last,
		Amount:       amount,
		FilledAmount: amount,
		AvgFillPrice: last,
		Fee:          fee,
		Status:       core.OrderFilled,
		Ts:           time.Now(),
	}
	p.applyBalanceLocked(order)
	return order, nil
}

func (p *Paper) Cancel(ctx context.Context, orderID, symbol string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	order, ok := p.openOrders[orderID]
	if !ok {
		return true, nil // not-found is treated as already-cancelled success
	}
	order.Status = core.OrderCancelled
	delete(p.openOrders, orderID)
	return true, nil
}

func (p *Paper) GetOrder(ctx context.Context, orderID, symbol string) (core.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if order, ok := p.openOrders[orderID]; ok {
		return *order, nil
	}
	return core.Order{}, fmt.Errorf("exchange: order %s: %w", orderID, apperrors.ErrOrderNotFound)
}

func (p *Paper) GetOpenOrders(ctx context.Context, symbol string) ([]core.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []core.Order
	for _, order := range p.openOrders {
		if order.Symbol == symbol {
			out = append(out, *order)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VenueOrderID < out[j].VenueOrderID })
	return out, nil
}

// FetchOHLCV is not meaningful for the live simulator; callers drive
// prices through SimulatePrices instead. Returns an empty slice.
func (p *Paper) FetchOHLCV(ctx context.Context, symbol, timeframe string, since int64, limit int) ([]core.Candle, error) {
	return nil, nil
}

// SimulatePrices advances the tape: for each symbol→price in the map, it
// records the new last price and fills any resting order whose limit is
// crossed, deducting the configured fee percentage and updating balances.
// Returns every order newly filled by this call.
func (p *Paper) SimulatePrices(prices map[string]decimal.Decimal) []core.Order {
	p.mu.Lock()
	defer p.mu.Unlock()

	var filled []core.Order
	for symbol, price := range prices {
		p.lastPrice[symbol] = price

		for id, order := range p.openOrders {
			if order.Symbol != symbol {
				continue
			}
			crossed := (order.Side == core.Buy && price.LessThanOrEqual(order.Price)) ||
				(order.Side == core.Sell && price.GreaterThanOrEqual(order.Price))
			if !crossed {
				continue
			}

			order.FilledAmount = order.Amount
			order.AvgFillPrice = order.Price
			order.Fee = order.Amount.Mul(order.Price).Mul(p.cfg.SimulatedFeePct)
			order.Status = core.OrderFilled
			p.applyBalanceLocked(*order)

			filled = append(filled, *order)
			delete(p.openOrders, id)
		}
	}
	return filled
}

func (p *Paper) applyBalanceLocked(order core.Order) {
	notional := order.Amount.Mul(order.AvgFillPrice)
	switch order.Side {
	case core.Buy:
		p.quoteBalance = p.quoteBalance.Sub(notional).Sub(order.Fee)
		p.baseBalance[order.Symbol] = p.baseBalance[order.Symbol].Add(order.Amount)
	case core.Sell:
		p.quoteBalance = p.quoteBalance.Add(notional).Sub(order.Fee)
		p.baseBalance[order.Symbol] = p.baseBalance[order.Symbol].Sub(order.Amount)
	}
}

var _ core.ExchangeAdapter = (*Paper)(nil)
