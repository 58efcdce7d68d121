package journal

import (
	"context"
	"database/sql"
	"fmt"

	"gridbot/internal/core"
)

// UpsertOrder writes or replaces one order row. OrderManager calls this
// on placement and on every status transition; venue_order_id is the
// natural key so repeated writes for the same id are idempotent.
func (s *Store) UpsertOrder(ctx context.Context, o core.Order) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (venue_order_id, symbol, side, price, amount, filled_amount, avg_fill_price, fee, status, level_index, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(venue_order_id) DO UPDATE SET
			filled_amount=excluded.filled_amount,
			avg_fill_price=excluded.avg_fill_price,
			fee=excluded.fee,
			status=excluded.status,
			level_index=excluded.level_index,
			ts=excluded.ts
	`, o.VenueOrderID, o.Symbol, string(o.Side), o.Price.String(), o.Amount.String(),
		o.FilledAmount.String(), o.AvgFillPrice.String(), o.Fee.String(), string(o.Status),
		o.LevelIndex, o.Ts.UnixNano())
	if err != nil {
		return fmt.Errorf("journal: upsert order %s: %w", o.VenueOrderID, err)
	}
	return nil
}

// GetOrder loads one order by venue id.
func (s *Store) GetOrder(ctx context.Context, venueOrderID string) (core.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT venue_order_id, symbol, side, price, amount, filled_amount, avg_fill_price, fee, status, level_index, ts
		FROM orders WHERE venue_order_id = ?`, venueOrderID)
	return scanOrder(row)
}

// OpenOrders returns every order in a non-terminal status for a symbol.
func (s *Store) OpenOrders(ctx context.Context, symbol string) ([]core.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT venue_order_id, symbol, side, price, amount, filled_amount, avg_fill_price, fee, status, level_index, ts
		FROM orders WHERE symbol = ? AND status IN ('open', 'partially_filled')`, symbol)
	if err != nil {
		return nil, fmt.Errorf("journal: open orders %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []core.Order
	for rows.Next() {
		o, err := scanOrderRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row *sql.Row) (core.Order, error) {
	return scanOrderAny(row)
}

func scanOrderRows(rows *sql.Rows) (core.Order, error) {
	return scanOrderAny(rows)
}

func scanOrderAny(r rowScanner) (core.Order, error) {
	var o core.Order
	var side, status, price, amount, filledAmount, avgFillPrice, fee string
	var tsNano int64
	if err := r.Scan(&o.VenueOrderID, &o.Symbol, &side, &price, &amount, &filledAmount, &avgFillPrice, &fee, &status, &o.LevelIndex, &tsNano); err != nil {
		return core.Order{}, fmt.Errorf("journal: scan order: %w", err)
	}
	o.Side = core.Side(side)
	o.Status = core.OrderStatus(status)
	o.Price = mustDecimal(price)
	o.Amount = mustDecimal(amount)
	o.FilledAmount = mustDecimal(filledAmount)
	o.AvgFillPrice = mustDecimal(avgFillPrice)
	o.Fee = mustDecimal(fee)
	o.Ts = unixNanoToTime(tsNano)
	return o, nil
}
