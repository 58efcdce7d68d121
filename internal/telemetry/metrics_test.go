package telemetry

import (
	"testing"

	"gridbot/internal/core"
	"gridbot/internal/orchestrator"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestRecordSnapshotUpdatesGauges(t *testing.T) {
	snap := orchestrator.Snapshot{
		TotalEquity:  decimal.NewFromInt(5000),
		GlobalHalted: true,
		Pairs: []orchestrator.PairSnapshot{
			{
				Symbol: "BTC/USD",
				Halted: true,
				Position: core.PairPositionState{
					UnrealizedPnl: decimal.NewFromInt(10),
					RealizedPnl:   decimal.NewFromInt(20),
				},
				Levels: []core.GridLevel{
					{Index: 0, Status: core.LevelPlaced},
					{Index: 1, Status: core.LevelPending},
					{Index: 2, Status: core.LevelPlaced},
				},
			},
		},
	}

	RecordSnapshot(snap)

	require.Equal(t, float64(5000), testutil.ToFloat64(totalEquity))
	require.Equal(t, float64(1), testutil.ToFloat64(globalHalted))
	require.Equal(t, float64(1), testutil.ToFloat64(pairHalted.WithLabelValues("BTC/USD")))
	require.Equal(t, float64(2), testutil.ToFloat64(pairOpenLevels.WithLabelValues("BTC/USD")))
	require.Equal(t, float64(10), testutil.ToFloat64(pairUnrealizedPnl.WithLabelValues("BTC/USD")))
	require.Equal(t, float64(20), testutil.ToFloat64(pairRealizedPnl.WithLabelValues("BTC/USD")))
}

func TestBoolToFloat(t *testing.T) {
	require.Equal(t, 1.0, boolToFloat(true))
	require.Equal(t, 0.0, boolToFloat(false))
}
