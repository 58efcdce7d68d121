// Package core defines the core interfaces for the grid bot control plane.
package core

import "context"

// ILogger is the structured-logging contract every component depends on.
// Concrete implementations live in internal/logging; nothing outside that
// package should import zap directly.
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}

// Ticker is the last-trade snapshot returned by ExchangeAdapter.GetTicker.
type Ticker struct {
	Symbol string
	Last   Decimal
	Bid    Decimal
	Ask    Decimal
	Ts     int64
}

// Balance reports the free/used/total figures for one asset.
type Balance struct {
	Free  Decimal
	Used  Decimal
	Total Decimal
}

// Candle is one OHLCV bar.
type Candle struct {
	Ts     int64
	Open   Decimal
	High   Decimal
	Low    Decimal
	Close  Decimal
	Volume Decimal
}

// ExchangeAdapter is the uniform capability contract shared by a live
// venue and a deterministic paper simulator.
type ExchangeAdapter interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error
	GetTicker(ctx context.Context, symbol string) (Ticker, error)
	GetBalance(ctx context.Context) (map[string]Balance, error)
	PlaceLimit(ctx context.Context, symbol string, side Side, amount, price Decimal) (Order, error)
	PlaceMarket(ctx context.Context, symbol string, side Side, amount Decimal) (Order, error)
	Cancel(ctx context.Context, orderID, symbol string) (bool, error)
	GetOrder(ctx context.Context, orderID, symbol string) (Order, error)
	GetOpenOrders(ctx context.Context, symbol string) ([]Order, error)
	FetchOHLCV(ctx context.Context, symbol, timeframe string, since int64, limit int) ([]Candle, error)
}
