// Package storage implements the EdgeStore, LedgerStore, and BookStore
// ports on a single SQLite database (pure Go driver, no CGo).
//
// Layout:
//   - `markets` / `trades`: the historical outcomes store the analyzer
//     buckets by price. Populated by an external loader, read-only here.
//   - `live_trades`: the trade ledger, one row per accepted trade.
//   - `paper_book` / `paper_positions` / `paper_trades` / `paper_equity`:
//     the simulated account document plus its append-only logs.
package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS markets (
    ticker        TEXT PRIMARY KEY,
    status        TEXT    NOT NULL,
    result        TEXT,
    last_price    INTEGER NOT NULL DEFAULT 0,
    volume        INTEGER NOT NULL DEFAULT 0,
    volume_24h    INTEGER NOT NULL DEFAULT 0,
    open_interest INTEGER NOT NULL DEFAULT 0,
    close_time    DATETIME
);

CREATE TABLE IF NOT EXISTS trades (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    ticker     TEXT    NOT NULL,
    yes_price  INTEGER NOT NULL,
    taker_side TEXT    NOT NULL,
    created_at DATETIME
);

CREATE TABLE IF NOT EXISTS live_trades (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    logged_at       DATETIME NOT NULL,
    ticker          TEXT     NOT NULL,
    market_title    TEXT,
    action          TEXT     NOT NULL,
    side            TEXT     NOT NULL,
    yes_price       INTEGER  NOT NULL,
    entry_cents     INTEGER  NOT NULL,
    contracts       INTEGER  NOT NULL,
    cost_usd        REAL     NOT NULL,
    kelly           REAL,
    confidence      TEXT,
    calibration_gap REAL,
    sample_size     INTEGER,
    verdict         TEXT,
    risk_score      INTEGER,
    concerns        TEXT,
    status          TEXT     NOT NULL DEFAULT 'PENDING_RESOLUTION',
    result          TEXT,
    payout_usd      REAL,
    pnl_usd         REAL,
    evaluated_at    DATETIME
);

CREATE TABLE IF NOT EXISTS paper_book (
    id           INTEGER PRIMARY KEY CHECK (id = 1),
    cash         REAL     NOT NULL,
    realized_pnl REAL     NOT NULL DEFAULT 0,
    updated_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS paper_positions (
    pos_key         TEXT PRIMARY KEY,
    ticker          TEXT    NOT NULL,
    side            TEXT    NOT NULL,
    contracts       INTEGER NOT NULL,
    avg_price_cents REAL    NOT NULL
);

CREATE TABLE IF NOT EXISTS paper_trades (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    at          DATETIME NOT NULL,
    ticker      TEXT     NOT NULL,
    side        TEXT     NOT NULL,
    action      TEXT     NOT NULL,
    price_cents INTEGER  NOT NULL,
    contracts   INTEGER  NOT NULL,
    notional    REAL     NOT NULL,
    cash_after  REAL     NOT NULL,
    note        TEXT
);

CREATE TABLE IF NOT EXISTS paper_equity (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    at             DATETIME NOT NULL,
    cash           REAL     NOT NULL,
    unrealized_pnl REAL     NOT NULL,
    realized_pnl   REAL     NOT NULL,
    equity         REAL     NOT NULL,
    n_positions    INTEGER  NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_price     ON trades(yes_price);
CREATE INDEX IF NOT EXISTS idx_markets_status   ON markets(status);
CREATE INDEX IF NOT EXISTS idx_live_status      ON live_trades(status);
CREATE INDEX IF NOT EXISTS idx_live_ticker      ON live_trades(ticker);
`

// SQLite implements ports.EdgeStore, ports.LedgerStore, and
// ports.BookStore on one database file.
type SQLite struct {
	db *sql.DB

	// category restricts historical queries to one market family
	// (SQL LIKE pattern). Empty means the default NBA family.
	category string
}

// New opens (or creates) the database at the given DSN and applies the
// schema.
func New(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage.New: open %q: %w", dsn, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.New: apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}
