package journal

import (
	"context"
	"database/sql"
	"fmt"

	"gridbot/internal/core"
)

// SavePoolState overwrites the single pool_state row.
func (s *Store) SavePoolState(ctx context.Context, p core.PoolState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pool_state (id, available_quote, secured_profits, total_fees, total_trade_count, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			available_quote=excluded.available_quote, secured_profits=excluded.secured_profits,
			total_fees=excluded.total_fees, total_trade_count=excluded.total_trade_count, updated_at=excluded.updated_at
	`, p.AvailableQuote.String(), p.SecuredProfits.String(), p.TotalFees.String(), p.TotalTradeCount, nowNano())
	if err != nil {
		return fmt.Errorf("journal: save pool state: %w", err)
	}
	return nil
}

// LoadPoolState returns the persisted pool_state row, or ok=false if the
// pool has never been saved (fresh start).
func (s *Store) LoadPoolState(ctx context.Context) (core.PoolState, bool, error) {
	var p core.PoolState
	var available, secured, fees string
	err := s.db.QueryRowContext(ctx, `SELECT available_quote, secured_profits, total_fees, total_trade_count FROM pool_state WHERE id = 1`).
		Scan(&available, &secured, &fees, &p.TotalTradeCount)
	if err == sql.ErrNoRows {
		return core.PoolState{}, false, nil
	}
	if err != nil {
		return core.PoolState{}, false, fmt.Errorf("journal: load pool state: %w", err)
	}
	p.AvailableQuote = mustDecimal(available)
	p.SecuredProfits = mustDecimal(secured)
	p.TotalFees = mustDecimal(fees)
	return p, true, nil
}
