package store

import (
	"context"
	"fmt"
	"time"
)

func (s *Store) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA foreign_keys=ON;`,
		`
CREATE TABLE IF NOT EXISTS signals (
  id TEXT PRIMARY KEY,
  asset TEXT NOT NULL,
  direction TEXT NOT NULL,
  entry REAL NOT NULL,
  stop_loss REAL NOT NULL DEFAULT 0,
  tp1 REAL NOT NULL DEFAULT 0,
  tp2 REAL NOT NULL DEFAULT 0,
  tp3 REAL NOT NULL DEFAULT 0,
  open_time TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  provider TEXT NOT NULL DEFAULT '',
  market_type TEXT NOT NULL DEFAULT 'crypto',
  timeframe TEXT NOT NULL DEFAULT '',
  notes TEXT NOT NULL DEFAULT '',
  outcome TEXT NOT NULL DEFAULT '',
  pnl REAL NOT NULL DEFAULT 0,
  pnl_pct REAL NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_signals_asset_open ON signals(asset, open_time);`,
		`
CREATE TABLE IF NOT EXISTS bars (
  symbol TEXT NOT NULL,
  interval TEXT NOT NULL,
  ts INTEGER NOT NULL, -- unix ms
  open REAL NOT NULL,
  high REAL NOT NULL,
  low REAL NOT NULL,
  close REAL NOT NULL,
  volume REAL NOT NULL DEFAULT 0,
  PRIMARY KEY (symbol, interval, ts)
);`,
		`
CREATE TABLE IF NOT EXISTS analysis_runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  asset TEXT NOT NULL,
  interval TEXT NOT NULL,
  started_at TEXT NOT NULL,
  finished_at TEXT,
  signals INTEGER NOT NULL DEFAULT 0,
  summary_json TEXT,
  error TEXT
);`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_runs_started_at ON analysis_runs(started_at DESC);`,
		`
CREATE TABLE IF NOT EXISTS analysis_results (
  signal_id TEXT PRIMARY KEY,
  run_id INTEGER NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
  asset TEXT NOT NULL,
  direction TEXT NOT NULL,
  entry REAL NOT NULL,
  outcome TEXT NOT NULL,
  exit_price REAL NOT NULL DEFAULT 0,
  pnl REAL NOT NULL DEFAULT 0,
  pnl_pct REAL NOT NULL DEFAULT 0,
  entry_time TEXT NOT NULL DEFAULT '',
  hit_time TEXT,
  hit_index INTEGER NOT NULL DEFAULT -1,
  bars_scanned INTEGER NOT NULL DEFAULT 0,
  evaluated_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_results_asset ON analysis_results(asset);`,
	}

	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate exec failed: %w", err)
		}
	}

	return nil
}
