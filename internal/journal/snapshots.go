package journal

import (
	"context"
	"fmt"

	"gridbot/internal/core"
)

// SaveSnapshot appends one equity snapshot row. PositionTracker.saveSnapshot
// calls this once per pair on the snapshot cadence.
func (s *Store) SaveSnapshot(ctx context.Context, snap core.EquitySnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO position_snapshots (ts, symbol, base_balance, quote_balance, avg_entry, price, unrealized_pnl, realized_pnl, secured_profits, total_equity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, snap.Ts.UnixNano(), snap.Symbol, snap.BaseBalance.String(), snap.QuoteBalance.String(),
		snap.AvgEntry.String(), snap.Price.String(), snap.UnrealizedPnl.String(),
		snap.RealizedPnl.String(), snap.SecuredProfits.String(), snap.TotalEquity.String())
	if err != nil {
		return fmt.Errorf("journal: save snapshot %s: %w", snap.Symbol, err)
	}
	return nil
}

// LatestSnapshots returns the most recent snapshot per symbol.
func (s *Store) LatestSnapshots(ctx context.Context) ([]core.EquitySnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, symbol, base_balance, quote_balance, avg_entry, price, unrealized_pnl, realized_pnl, secured_profits, total_equity
		FROM position_snapshots ps
		WHERE ts = (SELECT MAX(ts) FROM position_snapshots WHERE symbol = ps.symbol)
		ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("journal: latest snapshots: %w", err)
	}
	defer rows.Close()

	var out []core.EquitySnapshot
	for rows.Next() {
		var snap core.EquitySnapshot
		var tsNano int64
		var base, quote, avgEntry, price, unrealized, realized, secured, total string
		if err := rows.Scan(&tsNano, &snap.Symbol, &base, &quote, &avgEntry, &price, &unrealized, &realized, &secured, &total); err != nil {
			return nil, fmt.Errorf("journal: scan snapshot: %w", err)
		}
		snap.Ts = unixNanoToTime(tsNano)
		snap.BaseBalance = mustDecimal(base)
		snap.QuoteBalance = mustDecimal(quote)
		snap.AvgEntry = mustDecimal(avgEntry)
		snap.Price = mustDecimal(price)
		snap.UnrealizedPnl = mustDecimal(unrealized)
		snap.RealizedPnl = mustDecimal(realized)
		snap.SecuredProfits = mustDecimal(secured)
		snap.TotalEquity = mustDecimal(total)
		out = append(out, snap)
	}
	return out, rows.Err()
}
