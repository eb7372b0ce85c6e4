package ledger

import (
	"context"
	"fmt"
	"time"
)

func (l *Ledger) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA foreign_keys=ON;`,
		`
CREATE TABLE IF NOT EXISTS replications (
  id TEXT PRIMARY KEY,
  action TEXT NOT NULL,
  primary_order_id TEXT NOT NULL,
  trader_id INTEGER NOT NULL DEFAULT 0,
  symbol TEXT NOT NULL,
  side TEXT NOT NULL,
  order_type TEXT NOT NULL,
  quantity TEXT NOT NULL,
  price TEXT,
  success_count INTEGER NOT NULL,
  total INTEGER NOT NULL,
  created_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_replications_primary ON replications(primary_order_id, action);`,
		`
CREATE TABLE IF NOT EXISTS replication_outcomes (
  replication_id TEXT NOT NULL REFERENCES replications(id) ON DELETE CASCADE,
  account TEXT NOT NULL,
  ok INTEGER NOT NULL,
  error TEXT,
  secondary_order_id TEXT,
  quantity TEXT,
  PRIMARY KEY (replication_id, account)
);`,
		`
CREATE TABLE IF NOT EXISTS order_links (
  primary_order_id TEXT NOT NULL,
  account TEXT NOT NULL,
  secondary_order_id TEXT NOT NULL,
  symbol TEXT NOT NULL,
  created_at TEXT NOT NULL,
  PRIMARY KEY (primary_order_id, account)
);`,
	}
	for _, stmt := range stmts {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
