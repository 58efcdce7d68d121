package ordermanager

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gridbot/internal/core"
	"gridbot/internal/journal"
	"gridbot/internal/logging"
	apperrors "gridbot/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeExchange struct {
	orders    map[string]core.Order
	openErr   error
	cancelErr error
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{orders: make(map[string]core.Order)}
}

func (f *fakeExchange) Connect(ctx context.Context) error { return nil }
func (f *fakeExchange) Close(ctx context.Context) error   { return nil }
func (f *fakeExchange) GetTicker(ctx context.Context, symbol string) (core.Ticker, error) {
	return core.Ticker{}, nil
}
func (f *fakeExchange) GetBalance(ctx context.Context) (map[string]core.Balance, error) {
	return nil, nil
}
func (f *fakeExchange) PlaceLimit(ctx context.Context, symbol string, side core.Side, amount, price core.Decimal) (core.Order, error) {
	id := "o" + decimal.NewFromInt(int64(len(f.orders)+1)).String()
	o := core.Order{VenueOrderID: id, Symbol: symbol, Side: side, Price: price, Amount: amount, Status: core.OrderOpen, Ts: time.Now()}
	f.orders[id] = o
	return o, nil
}
func (f *fakeExchange) PlaceMarket(ctx context.Context, symbol string, side core.Side, amount core.Decimal) (core.Order, error) {
	return core.Order{}, nil
}
func (f *fakeExchange) Cancel(ctx context.Context, orderID, symbol string) (bool, error) {
	if f.cancelErr != nil {
		return false, f.cancelErr
	}
	delete(f.orders, orderID)
	return true, nil
}
func (f *fakeExchange) GetOrder(ctx context.Context, orderID, symbol string) (core.Order, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return core.Order{}, apperrors.ErrOrderNotFound
	}
	return o, nil
}
func (f *fakeExchange) GetOpenOrders(ctx context.Context, symbol string) ([]core.Order, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	var out []core.Order
	for _, o := range f.orders {
		if o.Symbol == symbol {
			out = append(out, o)
		}
	}
	return out, nil
}
func (f *fakeExchange) FetchOHLCV(ctx context.Context, symbol, tf string, since int64, limit int) ([]core.Candle, error) {
	return nil, nil
}

func newTestManager(t *testing.T) (*Manager, *fakeExchange) {
	t.Helper()
	logger, err := logging.NewZapLogger("ERROR")
	require.NoError(t, err)
	store, err := journal.Open(context.Background(), filepath.Join(t.TempDir(), "j.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ex := newFakeExchange()
	return New(ex, store, logger), ex
}

func TestPlaceGridOrderTracksLiveID(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	order, err := mgr.PlaceGridOrder(ctx, "BTC/USD", core.Buy, decimal.NewFromFloat(0.01), decimal.NewFromInt(59000), 3)
	require.NoError(t, err)
	require.NotEmpty(t, order.VenueOrderID)
	require.Equal(t, 1, mgr.OpenOrderCount("BTC/USD"))
}

func TestCheckFillsRemovesFilledOnly(t *testing.T) {
	mgr, ex := newTestManager(t)
	ctx := context.Background()

	o1, err := mgr.PlaceGridOrder(ctx, "BTC/USD", core.Buy, decimal.NewFromFloat(0.01), decimal.NewFromInt(59000), 0)
	require.NoError(t, err)
	o2, err := mgr.PlaceGridOrder(ctx, "BTC/USD", core.Sell, decimal.NewFromFloat(0.01), decimal.NewFromInt(61000), 1)
	require.NoError(t, err)

	filled := ex.orders[o1.VenueOrderID]
	filled.Status = core.OrderFilled
	filled.FilledAmount = filled.Amount
	ex.orders[o1.VenueOrderID] = filled

	results, err := mgr.CheckFills(ctx, "BTC/USD")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, o1.VenueOrderID, results[0].VenueOrderID)
	require.Equal(t, 1, mgr.OpenOrderCount("BTC/USD"))
	require.Equal(t, o2.VenueOrderID, o2.VenueOrderID)
}

func TestCancelTreatsNotFoundAsSuccess(t *testing.T) {
	mgr, ex := newTestManager(t)
	ctx := context.Background()

	order, err := mgr.PlaceGridOrder(ctx, "BTC/USD", core.Buy, decimal.NewFromFloat(0.01), decimal.NewFromInt(59000), 0)
	require.NoError(t, err)

	ex.cancelErr = apperrors.ErrOrderNotFound
	ok, err := mgr.Cancel(ctx, order.VenueOrderID, "BTC/USD")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 0, mgr.OpenOrderCount("BTC/USD"))
}

func TestReconcileWithExchangeIsIdempotent(t *testing.T) {
	mgr, ex := newTestManager(t)
	ctx := context.Background()

	o1, err := mgr.PlaceGridOrder(ctx, "BTC/USD", core.Buy, decimal.NewFromFloat(0.01), decimal.NewFromInt(59000), 0)
	require.NoError(t, err)
	_, err = mgr.PlaceGridOrder(ctx, "BTC/USD", core.Sell, decimal.NewFromFloat(0.01), decimal.NewFromInt(61000), 1)
	require.NoError(t, err)

	// Order o1 "vanishes" at the venue without our knowledge.
	delete(ex.orders, o1.VenueOrderID)

	require.NoError(t, mgr.ReconcileWithExchange(ctx, "BTC/USD"))
	require.Equal(t, 1, mgr.OpenOrderCount("BTC/USD"))

	require.NoError(t, mgr.ReconcileWithExchange(ctx, "BTC/USD"))
	require.Equal(t, 1, mgr.OpenOrderCount("BTC/USD"))
}
