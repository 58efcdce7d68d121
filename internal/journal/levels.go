package journal

import (
	"context"
	"fmt"

	"gridbot/internal/core"
)

// UpsertLevel writes or replaces one grid level row, keyed by (symbol,
// idx).
func (s *Store) UpsertLevel(ctx context.Context, symbol string, lvl core.GridLevel) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO grid_levels (symbol, idx, price, side, status, venue_order_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, idx) DO UPDATE SET
			price=excluded.price, side=excluded.side, status=excluded.status,
			venue_order_id=excluded.venue_order_id, updated_at=excluded.updated_at
	`, symbol, lvl.Index, lvl.Price.String(), string(lvl.Side), string(lvl.Status), lvl.VenueOrderID, nowNano())
	if err != nil {
		return fmt.Errorf("journal: upsert level %s[%d]: %w", symbol, lvl.Index, err)
	}
	return nil
}

// Levels loads every grid level persisted for a symbol, ordered by index.
func (s *Store) Levels(ctx context.Context, symbol string) ([]core.GridLevel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, price, side, status, venue_order_id FROM grid_levels
		WHERE symbol = ? ORDER BY idx ASC`, symbol)
	if err != nil {
		return nil, fmt.Errorf("journal: levels %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []core.GridLevel
	for rows.Next() {
		var lvl core.GridLevel
		var side, status, price string
		if err := rows.Scan(&lvl.Index, &price, &side, &status, &lvl.VenueOrderID); err != nil {
			return nil, fmt.Errorf("journal: scan level: %w", err)
		}
		lvl.Price = mustDecimal(price)
		lvl.Side = core.Side(side)
		lvl.Status = core.LevelStatus(status)
		out = append(out, lvl)
	}
	return out, rows.Err()
}
