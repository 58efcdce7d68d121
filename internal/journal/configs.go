package journal

import (
	"context"
	"database/sql"
	"fmt"

	"gridbot/internal/core"
)

// SaveGridConfig persists one pair's grid configuration, overwriting any
// prior row for the symbol (Reconfigure swaps the whole config).
func (s *Store) SaveGridConfig(ctx context.Context, cfg core.GridConfig, trailingShiftCount int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO grid_configs (symbol, lower, upper, num_levels, spacing, order_size_quote, order_size_base,
			trailing_enabled, trailing_trigger_pct, trailing_rebalance_pct, trailing_cooldown_secs, trailing_shift_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			lower=excluded.lower, upper=excluded.upper, num_levels=excluded.num_levels, spacing=excluded.spacing,
			order_size_quote=excluded.order_size_quote, order_size_base=excluded.order_size_base,
			trailing_enabled=excluded.trailing_enabled, trailing_trigger_pct=excluded.trailing_trigger_pct,
			trailing_rebalance_pct=excluded.trailing_rebalance_pct, trailing_cooldown_secs=excluded.trailing_cooldown_secs,
			trailing_shift_count=excluded.trailing_shift_count, updated_at=excluded.updated_at
	`, cfg.Symbol, cfg.Lower.String(), cfg.Upper.String(), cfg.NumLevels, string(cfg.Spacing),
		cfg.OrderSizeQuote.String(), cfg.OrderSizeBase.String(),
		boolToInt(cfg.Trailing.Enabled), cfg.Trailing.TriggerPct.String(), cfg.Trailing.RebalancePct.String(),
		cfg.Trailing.CooldownSecs, trailingShiftCount, nowNano())
	if err != nil {
		return fmt.Errorf("journal: save grid config %s: %w", cfg.Symbol, err)
	}
	return nil
}

// GridConfigRow bundles the persisted config with its trailing shift
// counter, which lives outside core.GridConfig because it is engine
// runtime state, not configuration.
type GridConfigRow struct {
	Config             core.GridConfig
	TrailingShiftCount int
}

// GridConfigs returns every persisted grid config.
func (s *Store) GridConfigs(ctx context.Context) ([]GridConfigRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, lower, upper, num_levels, spacing, order_size_quote, order_size_base,
			trailing_enabled, trailing_trigger_pct, trailing_rebalance_pct, trailing_cooldown_secs, trailing_shift_count
		FROM grid_configs`)
	if err != nil {
		return nil, fmt.Errorf("journal: grid configs: %w", err)
	}
	defer rows.Close()

	var out []GridConfigRow
	for rows.Next() {
		row, err := scanGridConfigRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func scanGridConfigRow(rows *sql.Rows) (GridConfigRow, error) {
	var r GridConfigRow
	var spacing, lower, upper, sizeQuote, sizeBase, triggerPct, rebalPct string
	var trailingEnabled int
	if err := rows.Scan(&r.Config.Symbol, &lower, &upper, &r.Config.NumLevels, &spacing,
		&sizeQuote, &sizeBase, &trailingEnabled, &triggerPct, &rebalPct,
		&r.Config.Trailing.CooldownSecs, &r.TrailingShiftCount); err != nil {
		return r, fmt.Errorf("journal: scan grid config: %w", err)
	}
	r.Config.Lower = mustDecimal(lower)
	r.Config.Upper = mustDecimal(upper)
	r.Config.Spacing = core.Spacing(spacing)
	r.Config.OrderSizeQuote = mustDecimal(sizeQuote)
	r.Config.OrderSizeBase = mustDecimal(sizeBase)
	r.Config.Trailing.Enabled = trailingEnabled != 0
	r.Config.Trailing.TriggerPct = mustDecimal(triggerPct)
	r.Config.Trailing.RebalancePct = mustDecimal(rebalPct)
	return r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
