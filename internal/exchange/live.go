package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gridbot/internal/core"
	"gridbot/internal/ratelimiter"
	apperrors "gridbot/pkg/errors"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// VenueClient is the narrow transport contract a concrete exchange
// client (REST/WebSocket transport, rate-limiting, signature generation)
// must satisfy. Live depends only on this; the HTTP/WS implementation
// for any given venue lives outside the control plane and is supplied
// by the caller at construction time.
type VenueClient interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error
	Ticker(ctx context.Context, symbol string) (core.Ticker, error)
	Balance(ctx context.Context) (map[string]core.Balance, error)
	PlaceLimit(ctx context.Context, symbol string, side core.Side, amount, price core.Decimal) (core.Order, error)
	PlaceMarket(ctx context.Context, symbol string, side core.Side, amount core.Decimal) (core.Order, error)
	Cancel(ctx context.Context, orderID, symbol string) (bool, error)
	Order(ctx context.Context, orderID, symbol string) (core.Order, error)
	OpenOrders(ctx context.Context, symbol string) ([]core.Order, error)
	OHLCV(ctx context.Context, symbol, timeframe string, since int64, limit int) ([]core.Candle, error)
}

// Live wraps a VenueClient with rate-limiting and retry: every call
// except Connect and Close acquires one RateLimiter token (those two go
// straight to the client and are not retried), then transient errors (network /
// rate-limited / service-unavailable) are retried with exponential
// backoff and jitter up to 3 attempts; ErrOrderNotFound on cancel is
// never retried. Read calls are additionally bounded by readTimeout so a
// hung venue connection can't stall a tick indefinitely.
type Live struct {
	client  VenueClient
	limiter *ratelimiter.RateLimiter
	logger  core.ILogger

	readExecutor    failsafe.Executor[any]
	mutatingExecutor failsafe.Executor[any]
}

// readTimeout bounds every read-path call (GetTicker, GetOrder,
// GetOpenOrders, FetchOHLCV); order placement has no such ceiling since
// a cancelled placement can leave a resting order's fate unknown.
const readTimeout = 5 * time.Second

// NewLive builds a Live adapter. The retry backoff starts at 0.5s for
// reads and 1s for mutating calls.
func NewLive(client VenueClient, limiter *ratelimiter.RateLimiter, logger core.ILogger) *Live {
	buildPolicy := func(base time.Duration) failsafe.Executor[any] {
		policy := retrypolicy.Builder[any]().
			HandleIf(func(_ any, err error) bool { return apperrors.IsTransient(err) }).
			WithBackoff(base, 8*base).
			WithJitter(base / 2).
			WithMaxRetries(2). // 3 attempts in all
			Build()
		return failsafe.NewExecutor[any](policy)
	}

	return &Live{
		client:           client,
		limiter:          limiter,
		logger:           logger.WithField("component", "live_exchange"),
		readExecutor:     buildPolicy(500 * time.Millisecond),
		mutatingExecutor: buildPolicy(1 * time.Second),
	}
}

func (l *Live) Connect(ctx context.Context) error { return l.client.Connect(ctx) }
func (l *Live) Close(ctx context.Context) error   { return l.client.Close(ctx) }

func (l *Live) GetTicker(ctx context.Context, symbol string) (core.Ticker, error) {
	var out core.Ticker
	err := l.withRead(ctx, func(ctx context.Context) error {
		var err error
		out, err = l.client.Ticker(ctx, symbol)
		return err
	})
	return out, err
}

func (l *Live) GetBalance(ctx context.Context) (map[string]core.Balance, error) {
	var out map[string]core.Balance
	err := l.withRead(ctx, func(ctx context.Context) error {
		var err error
		out, err = l.client.Balance(ctx)
		return err
	})
	return out, err
}

func (l *Live) PlaceLimit(ctx context.Context, symbol string, side core.Side, amount, price core.Decimal) (core.Order, error) {
	var out core.Order
	err := l.withMutating(ctx, func() error {
		var err error
		out, err = l.client.PlaceLimit(ctx, symbol, side, amount, price)
		return err
	})
	return out, err
}

func (l *Live) PlaceMarket(ctx context.Context, symbol string, side core.Side, amount core.Decimal) (core.Order, error) {
	var out core.Order
	err := l.withMutating(ctx, func() error {
		var err error
		out, err = l.client.PlaceMarket(ctx, symbol, side, amount)
		if err == nil && out.AvgFillPrice.IsZero() {
			return fmt.Errorf("exchange: market order %s missing avgFillPrice: %w", out.VenueOrderID, apperrors.ErrInvariantViolation)
		}
		return err
	})
	return out, err
}

func (l *Live) Cancel(ctx context.Context, orderID, symbol string) (bool, error) {
	var ok bool
	err := l.withMutating(ctx, func() error {
		var err error
		ok, err = l.client.Cancel(ctx, orderID, symbol)
		return err
	})
	if errors.Is(err, apperrors.ErrOrderNotFound) {
		// Not-found on cancel is success, never retried.
		l.logger.Warn("cancel: order already gone at venue, treating as cancelled", "orderID", orderID, "symbol", symbol)
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (l *Live) GetOrder(ctx context.Context, orderID, symbol string) (core.Order, error) {
	var out core.Order
	err := l.withRead(ctx, func(ctx context.Context) error {
		var err error
		out, err = l.client.Order(ctx, orderID, symbol)
		return err
	})
	return out, err
}

func (l *Live) GetOpenOrders(ctx context.Context, symbol string) ([]core.Order, error) {
	var out []core.Order
	err := l.withRead(ctx, func(ctx context.Context) error {
		var err error
		out, err = l.client.OpenOrders(ctx, symbol)
		return err
	})
	return out, err
}

func (l *Live) FetchOHLCV(ctx context.Context, symbol, timeframe string, since int64, limit int) ([]core.Candle, error) {
	var out []core.Candle
	err := l.withRead(ctx, func(ctx context.Context) error {
		var err error
		out, err = l.client.OHLCV(ctx, symbol, timeframe, since, limit)
		return err
	})
	return out, err
}

func (l *Live) withRead(ctx context.Context, fn func(context.Context) error) error {
	if err := l.limiter.Acquire(ctx); err != nil {
		return err
	}
	readCtx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()
	_, err := l.readExecutor.GetWithExecution(func(exec failsafe.Execution[any]) (any, error) {
		return nil, fn(readCtx)
	})
	return err
}

func (l *Live) withMutating(ctx context.Context, fn func() error) error {
	if err := l.limiter.Acquire(ctx); err != nil {
		return err
	}
	_, err := l.mutatingExecutor.GetWithExecution(func(exec failsafe.Execution[any]) (any, error) {
		return nil, fn()
	})
	return err
}

var _ core.ExchangeAdapter = (*Live)(nil)
