package telemetry

import (
	"gridbot/internal/core"
	"gridbot/internal/orchestrator"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	totalEquity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gridbot_total_equity_quote",
		Help: "Pool total equity in quote currency.",
	})
	globalHalted = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gridbot_global_halted",
		Help: "1 if the risk supervisor has the global halt set, else 0.",
	})
	pairHalted = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gridbot_pair_halted",
		Help: "1 if a pair is halted, else 0.",
	}, []string{"symbol"})
	pairOpenLevels = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gridbot_pair_open_levels",
		Help: "Number of grid levels currently placed for a pair.",
	}, []string{"symbol"})
	pairUnrealizedPnl = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gridbot_pair_unrealized_pnl_quote",
		Help: "Unrealized P&L per pair, in quote currency.",
	}, []string{"symbol"})
	pairRealizedPnl = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gridbot_pair_realized_pnl_quote",
		Help: "Cumulative realized P&L per pair, in quote currency.",
	}, []string{"symbol"})
	ticksProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gridbot_ticks_processed_total",
		Help: "Total main-loop ticks processed since process start.",
	})
)

func init() {
	prometheus.MustRegister(
		totalEquity, globalHalted, pairHalted,
		pairOpenLevels, pairUnrealizedPnl, pairRealizedPnl,
		ticksProcessed,
	)
}

// RecordSnapshot updates every gauge from one orchestrator.Snapshot.
// The run loop does not call it; the gauges change only when a caller
// passes it a snapshot.
func RecordSnapshot(snap orchestrator.Snapshot) {
	totalEquity.Set(snap.TotalEquity.InexactFloat64())
	globalHalted.Set(boolToFloat(snap.GlobalHalted))
	ticksProcessed.Add(1)

	for _, p := range snap.Pairs {
		pairHalted.WithLabelValues(p.Symbol).Set(boolToFloat(p.Halted))
		pairUnrealizedPnl.WithLabelValues(p.Symbol).Set(p.Position.UnrealizedPnl.InexactFloat64())
		pairRealizedPnl.WithLabelValues(p.Symbol).Set(p.Position.RealizedPnl.InexactFloat64())

		open := 0
		for _, lvl := range p.Levels {
			if lvl.Status == core.LevelPlaced {
				open++
			}
		}
		pairOpenLevels.WithLabelValues(p.Symbol).Set(float64(open))
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
