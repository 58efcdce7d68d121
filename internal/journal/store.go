// Package journal is the durable append-only store: a write-ahead-log
// SQLite database exposing repositories for grid configs, levels,
// orders, trades, snapshots, and bot-level state. All writes are
// committed before the in-memory state machine considers them effective;
// no read path is on the hot loop except reconciliation and startup
// recovery.
package journal

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"gridbot/internal/core"
)

// Store wraps a WAL-mode SQLite database behind the repository methods in
// orders.go, levels.go, trades.go, snapshots.go, configs.go, and
// botstate.go.
type Store struct {
	db     *sql.DB
	logger core.ILogger
}

// Open opens (creating if needed) the SQLite file at path, enables WAL
// mode and foreign-key enforcement, and runs migrations.
func Open(ctx context.Context, path string, logger core.ILogger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("journal: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("journal: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("journal: enable foreign keys: %w", err)
	}

	s := &Store{db: db, logger: logger.WithField("component", "journal")}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates every logical table if missing, and attempts additive
// ALTERs for columns introduced after the initial schema. A failing
// ALTER (column already present) is ignored — migrations are additive
// and idempotent, never destructive.
func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bot_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			status TEXT NOT NULL,
			global_halt INTEGER NOT NULL DEFAULT 0,
			peak_equity TEXT NOT NULL DEFAULT '0',
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS grid_configs (
			symbol TEXT PRIMARY KEY,
			lower TEXT NOT NULL,
			upper TEXT NOT NULL,
			num_levels INTEGER NOT NULL,
			spacing TEXT NOT NULL,
			order_size_quote TEXT NOT NULL DEFAULT '0',
			order_size_base TEXT NOT NULL DEFAULT '0',
			trailing_enabled INTEGER NOT NULL DEFAULT 0,
			trailing_trigger_pct TEXT NOT NULL DEFAULT '0',
			trailing_rebalance_pct TEXT NOT NULL DEFAULT '0',
			trailing_cooldown_secs INTEGER NOT NULL DEFAULT 0,
			trailing_shift_count INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS grid_levels (
			symbol TEXT NOT NULL REFERENCES grid_configs(symbol),
			idx INTEGER NOT NULL,
			price TEXT NOT NULL,
			side TEXT NOT NULL,
			status TEXT NOT NULL,
			venue_order_id TEXT NOT NULL DEFAULT '',
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (symbol, idx)
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			venue_order_id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			price TEXT NOT NULL,
			amount TEXT NOT NULL,
			filled_amount TEXT NOT NULL DEFAULT '0',
			avg_fill_price TEXT NOT NULL DEFAULT '0',
			fee TEXT NOT NULL DEFAULT '0',
			status TEXT NOT NULL,
			level_index INTEGER NOT NULL DEFAULT -1,
			ts INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol)`,
		`CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			venue_order_id TEXT NOT NULL REFERENCES orders(venue_order_id),
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			price TEXT NOT NULL,
			amount TEXT NOT NULL,
			fee TEXT NOT NULL,
			realized_pnl TEXT NOT NULL DEFAULT '0',
			ts INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS position_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			symbol TEXT NOT NULL,
			base_balance TEXT NOT NULL,
			quote_balance TEXT NOT NULL,
			avg_entry TEXT NOT NULL,
			price TEXT NOT NULL,
			unrealized_pnl TEXT NOT NULL,
			realized_pnl TEXT NOT NULL,
			secured_profits TEXT NOT NULL,
			total_equity TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_symbol_ts ON position_snapshots(symbol, ts)`,
		`CREATE TABLE IF NOT EXISTS pool_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			available_quote TEXT NOT NULL,
			secured_profits TEXT NOT NULL,
			total_fees TEXT NOT NULL,
			total_trade_count INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	// Example of an additive, best-effort column migration: ignore the
	// error if the column already exists from a prior version's schema.
	_, _ = s.db.ExecContext(ctx, `ALTER TABLE grid_levels ADD COLUMN venue_order_id TEXT NOT NULL DEFAULT ''`)

	return nil
}
