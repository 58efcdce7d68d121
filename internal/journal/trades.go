package journal

import (
	"context"
	"fmt"

	"gridbot/internal/core"
)

// Trade is one executed fill recorded for audit/reporting; distinct from
// Order because one order can in principle fill across several trade
// rows (partial fills), though the paper simulator always fills whole.
type Trade struct {
	VenueOrderID string
	Symbol       string
	Side         core.Side
	Price        core.Decimal
	Amount       core.Decimal
	Fee          core.Decimal
	RealizedPnl  core.Decimal
	Ts           int64
}

// AppendTrade inserts an immutable trade row; trades are never updated,
// only appended.
func (s *Store) AppendTrade(ctx context.Context, t Trade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (venue_order_id, symbol, side, price, amount, fee, realized_pnl, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.VenueOrderID, t.Symbol, string(t.Side), t.Price.String(), t.Amount.String(), t.Fee.String(), t.RealizedPnl.String(), t.Ts)
	if err != nil {
		return fmt.Errorf("journal: append trade %s: %w", t.VenueOrderID, err)
	}
	return nil
}

// TradesBySymbol returns every trade for a symbol in chronological order.
func (s *Store) TradesBySymbol(ctx context.Context, symbol string) ([]Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT venue_order_id, symbol, side, price, amount, fee, realized_pnl, ts
		FROM trades WHERE symbol = ? ORDER BY ts ASC`, symbol)
	if err != nil {
		return nil, fmt.Errorf("journal: trades %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []Trade
	for rows.Next() {
		var t Trade
		var side, price, amount, fee, pnl string
		if err := rows.Scan(&t.VenueOrderID, &t.Symbol, &side, &price, &amount, &fee, &pnl, &t.Ts); err != nil {
			return nil, fmt.Errorf("journal: scan trade: %w", err)
		}
		t.Side = core.Side(side)
		t.Price = mustDecimal(price)
		t.Amount = mustDecimal(amount)
		t.Fee = mustDecimal(fee)
		t.RealizedPnl = mustDecimal(pnl)
		out = append(out, t)
	}
	return out, rows.Err()
}
