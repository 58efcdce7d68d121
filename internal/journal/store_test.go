package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gridbot/internal/core"
	"gridbot/internal/logging"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger, err := logging.NewZapLogger("ERROR")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "gridbot.db")
	store, err := Open(context.Background(), path, logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOrderRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	order := core.Order{
		VenueOrderID: "v1",
		Symbol:       "BTC/USD",
		Side:         core.Buy,
		Price:        decimal.NewFromInt(60000),
		Amount:       decimal.NewFromFloat(0.01),
		Status:       core.OrderOpen,
		LevelIndex:   2,
		Ts:           time.Now(),
	}
	require.NoError(t, store.UpsertOrder(ctx, order))

	got, err := store.GetOrder(ctx, "v1")
	require.NoError(t, err)
	require.Equal(t, order.Symbol, got.Symbol)
	require.True(t, order.Price.Equal(got.Price))
	require.Equal(t, core.OrderOpen, got.Status)

	open, err := store.OpenOrders(ctx, "BTC/USD")
	require.NoError(t, err)
	require.Len(t, open, 1)

	order.Status = core.OrderFilled
	order.FilledAmount = order.Amount
	require.NoError(t, store.UpsertOrder(ctx, order))

	open, err = store.OpenOrders(ctx, "BTC/USD")
	require.NoError(t, err)
	require.Empty(t, open)
}

func TestLevelRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cfg := core.GridConfig{Symbol: "BTC/USD", Lower: decimal.NewFromInt(1), Upper: decimal.NewFromInt(2), NumLevels: 2, Spacing: core.Arithmetic}
	require.NoError(t, store.SaveGridConfig(ctx, cfg, 0))

	lvl := core.GridLevel{Index: 0, Price: decimal.NewFromInt(55000), Side: core.Buy, Status: core.LevelPlaced, VenueOrderID: "v1"}
	require.NoError(t, store.UpsertLevel(ctx, "BTC/USD", lvl))

	levels, err := store.Levels(ctx, "BTC/USD")
	require.NoError(t, err)
	require.Len(t, levels, 1)
	require.Equal(t, core.LevelPlaced, levels[0].Status)
}

func TestBotStateRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, ok, err := store.LoadBotState(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.SaveBotState(ctx, BotState{Status: core.StatusRunning, GlobalHalt: false, PeakEquity: decimal.NewFromInt(10000)}))

	st, ok, err := store.LoadBotState(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, core.StatusRunning, st.Status)
	require.True(t, st.PeakEquity.Equal(decimal.NewFromInt(10000)))
}

func TestSnapshotLatestPerSymbol(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	older := core.EquitySnapshot{Ts: time.Now().Add(-time.Hour), Symbol: "BTC/USD", TotalEquity: decimal.NewFromInt(100)}
	newer := core.EquitySnapshot{Ts: time.Now(), Symbol: "BTC/USD", TotalEquity: decimal.NewFromInt(200)}
	require.NoError(t, store.SaveSnapshot(ctx, older))
	require.NoError(t, store.SaveSnapshot(ctx, newer))

	latest, err := store.LatestSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	require.True(t, latest[0].TotalEquity.Equal(decimal.NewFromInt(200)))
}
