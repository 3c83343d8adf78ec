package storage

// book.go — the paper account. The book document lives in a single-row
// table plus a positions table; both are replaced atomically inside one
// transaction on SaveBook. The trade and equity logs are append-only.

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

// LoadBook returns the persisted book, or (zero, false) when none has
// been saved yet.
func (s *SQLite) LoadBook(ctx context.Context) (domain.PaperBook, bool, error) {
	var book domain.PaperBook
	var updatedAt string

	rows, err := s.db.QueryContext(ctx,
		`SELECT cash, realized_pnl, updated_at FROM paper_book WHERE id = 1`)
	if err != nil {
		return book, false, fmt.Errorf("storage.LoadBook: query book: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return book, false, rows.Err()
	}
	if err := rows.Scan(&book.Cash, &book.RealizedPnl, &updatedAt); err != nil {
		return book, false, fmt.Errorf("storage.LoadBook: scan book: %w", err)
	}
	rows.Close()
	book.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	posRows, err := s.db.QueryContext(ctx,
		`SELECT pos_key, ticker, side, contracts, avg_price_cents FROM paper_positions`)
	if err != nil {
		return book, false, fmt.Errorf("storage.LoadBook: query positions: %w", err)
	}
	defer posRows.Close()

	book.Positions = make(map[string]domain.PaperPosition)
	for posRows.Next() {
		var key string
		var pos domain.PaperPosition
		if err := posRows.Scan(&key, &pos.Ticker, &pos.Side, &pos.Contracts, &pos.AvgPriceCents); err != nil {
			return book, false, fmt.Errorf("storage.LoadBook: scan position: %w", err)
		}
		book.Positions[key] = pos
	}
	return book, true, posRows.Err()
}

// SaveBook persists the full book state in one transaction.
func (s *SQLite) SaveBook(ctx context.Context, book domain.PaperBook) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveBook: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO paper_book (id, cash, realized_pnl, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			cash = excluded.cash,
			realized_pnl = excluded.realized_pnl,
			updated_at = excluded.updated_at`,
		book.Cash, book.RealizedPnl, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("storage.SaveBook: upsert book: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM paper_positions`); err != nil {
		return fmt.Errorf("storage.SaveBook: clear positions: %w", err)
	}
	for key, pos := range book.Positions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO paper_positions (pos_key, ticker, side, contracts, avg_price_cents)
			VALUES (?, ?, ?, ?, ?)`,
			key, pos.Ticker, pos.Side, pos.Contracts, pos.AvgPriceCents,
		); err != nil {
			return fmt.Errorf("storage.SaveBook: insert position %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveBook: commit: %w", err)
	}
	return nil
}

// AppendTradeLog appends one immutable trade row.
func (s *SQLite) AppendTradeLog(ctx context.Context, row domain.TradeLogRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO paper_trades
			(at, ticker, side, action, price_cents, contracts, notional, cash_after, note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.At.UTC().Format(time.RFC3339), row.Ticker, row.Side,
		string(row.Action), row.PriceCents, row.Contracts,
		row.NotionalUSD, row.CashAfter, row.Note,
	)
	if err != nil {
		return fmt.Errorf("storage.AppendTradeLog: %s: %w", row.Ticker, err)
	}
	return nil
}

// AppendEquityLog appends one equity snapshot.
func (s *SQLite) AppendEquityLog(ctx context.Context, snap domain.EquitySnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO paper_equity
			(at, cash, unrealized_pnl, realized_pnl, equity, n_positions)
		VALUES (?, ?, ?, ?, ?, ?)`,
		snap.At.UTC().Format(time.RFC3339), snap.Cash, snap.UnrealizedPnl,
		snap.RealizedPnl, snap.Equity, snap.PositionCount,
	)
	if err != nil {
		return fmt.Errorf("storage.AppendEquityLog: %w", err)
	}
	return nil
}
