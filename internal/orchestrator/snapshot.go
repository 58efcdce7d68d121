package orchestrator

import (
	"gridbot/internal/core"
	"gridbot/internal/gridengine"

	"github.com/shopspring/decimal"
)

// PairSnapshot is one pair's position and lattice state, as pushed to
// the dashboard.
type PairSnapshot struct {
	Symbol    string           `json:"symbol"`
	Halted    bool             `json:"halted"`
	InCooldown bool            `json:"inCooldown"`
	Position  core.PairPositionState `json:"position"`
	Levels    []core.GridLevel `json:"levels"`
}

// Snapshot is the full dashboard push payload: status, total equity,
// per-pair state, grid levels, pool, and halt bits.
type Snapshot struct {
	Status       core.BotStatus          `json:"status"`
	TotalEquity  decimal.Decimal         `json:"totalEquity"`
	GlobalHalted bool                    `json:"globalHalted"`
	Pool         core.PoolState          `json:"pool"`
	Pairs        []PairSnapshot          `json:"pairs"`
	TickCount    int64                   `json:"tickCount"`
}

// Snapshot assembles the current state for the dashboard push channel and
// the backtest/CLI summary report. Safe to call concurrently with tick().
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	symbols := make([]string, len(o.symbols))
	copy(symbols, o.symbols)
	engines := make(map[string]*gridengine.Engine, len(symbols))
	for _, s := range symbols {
		if eng, ok := o.engines[s]; ok {
			engines[s] = eng
		}
	}
	status := o.status
	tickCount := o.tickCount
	o.mu.Unlock()

	pairs := make([]PairSnapshot, 0, len(symbols))
	for _, symbol := range symbols {
		ps := PairSnapshot{
			Symbol:   symbol,
			Halted:   o.riskSup.IsPairHalted(symbol),
			Position: o.positions.Pair(symbol),
		}
		if o.stopLoss != nil {
			ps.InCooldown = o.stopLoss.InCooldown(symbol)
		}
		if eng, ok := engines[symbol]; ok {
			ps.Levels = eng.Levels()
		}
		pairs = append(pairs, ps)
	}

	return Snapshot{
		Status:       status,
		TotalEquity:  o.positions.TotalEquityQuote(),
		GlobalHalted: o.riskSup.IsGlobalHalted(),
		Pool:         o.positions.Pool(),
		Pairs:        pairs,
		TickCount:    tickCount,
	}
}
