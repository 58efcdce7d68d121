package journal

import (
	"context"
	"database/sql"
	"fmt"

	"gridbot/internal/core"

	"github.com/shopspring/decimal"
)

// BotState is the orchestrator-level state persisted across restarts:
// status, the global halt bit, and the running peak-equity figure
// RiskSupervisor.checkDrawdown needs to survive a restart without
// re-observing every historical equity value.
type BotState struct {
	Status     core.BotStatus
	GlobalHalt bool
	PeakEquity decimal.Decimal
}

// SaveBotState overwrites the single bot_state row.
func (s *Store) SaveBotState(ctx context.Context, st BotState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bot_state (id, status, global_halt, peak_equity, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status=excluded.status, global_halt=excluded.global_halt,
			peak_equity=excluded.peak_equity, updated_at=excluded.updated_at
	`, string(st.Status), boolToInt(st.GlobalHalt), st.PeakEquity.String(), nowNano())
	if err != nil {
		return fmt.Errorf("journal: save bot state: %w", err)
	}
	return nil
}

// LoadBotState returns the persisted bot_state row, or the zero value
// with ok=false if the bot has never run before.
func (s *Store) LoadBotState(ctx context.Context) (BotState, bool, error) {
	var st BotState
	var status, peakEquity string
	var halt int
	err := s.db.QueryRowContext(ctx, `SELECT status, global_halt, peak_equity FROM bot_state WHERE id = 1`).
		Scan(&status, &halt, &peakEquity)
	if err == sql.ErrNoRows {
		return BotState{}, false, nil
	}
	if err != nil {
		return BotState{}, false, fmt.Errorf("journal: load bot state: %w", err)
	}
	st.Status = core.BotStatus(status)
	st.GlobalHalt = halt != 0
	st.PeakEquity = mustDecimal(peakEquity)
	return st, true, nil
}
