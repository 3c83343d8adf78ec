package storage

// ledger.go — the live_trades table. Rows are inserted PENDING_RESOLUTION
// and flipped to EVALUATED exactly once; the settle UPDATE carries a
// status guard so a concurrent or repeated settle cannot overwrite an
// evaluated row.

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/ports"
)

const ledgerColumns = `
	id, logged_at, ticker, market_title, action, side, yes_price,
	entry_cents, contracts, cost_usd, kelly, confidence, calibration_gap,
	sample_size, verdict, risk_score, concerns, status, result,
	payout_usd, pnl_usd, evaluated_at`

// InsertTrade persists a new PENDING_RESOLUTION row and returns its id.
func (s *SQLite) InsertTrade(ctx context.Context, e domain.LedgerEntry) (int64, error) {
	concerns, err := json.Marshal(e.Concerns)
	if err != nil {
		return 0, fmt.Errorf("storage.InsertTrade: encode concerns: %w", err)
	}

	var gap any
	if e.CalibrationGap != nil {
		gap = *e.CalibrationGap
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO live_trades (
			logged_at, ticker, market_title, action, side, yes_price,
			entry_cents, contracts, cost_usd, kelly, confidence,
			calibration_gap, sample_size, verdict, risk_score, concerns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.LoggedAt.UTC().Format(time.RFC3339), e.Ticker, e.Title,
		string(e.Action), e.Side, e.YesPriceCents, e.EntryCents,
		e.Contracts, e.CostUSD, e.Kelly, e.Confidence, gap,
		e.SampleSize, e.Verdict, e.RiskScore, string(concerns),
	)
	if err != nil {
		return 0, fmt.Errorf("storage.InsertTrade: %s: %w", e.Ticker, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("storage.InsertTrade: last id: %w", err)
	}
	return id, nil
}

// GetTrade returns one row by id.
func (s *SQLite) GetTrade(ctx context.Context, id int64) (domain.LedgerEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM live_trades WHERE id = ?`, id)
	e, err := scanLedgerEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LedgerEntry{}, ports.ErrTradeNotFound
	}
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("storage.GetTrade: id %d: %w", id, err)
	}
	return e, nil
}

// SettleTrade writes the outcome and flips the row to EVALUATED. The
// WHERE clause rejects rows that are not pending, making repeat settles
// an error instead of a silent overwrite.
func (s *SQLite) SettleTrade(ctx context.Context, id int64, result string, payoutUSD, pnlUSD float64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE live_trades
		SET status = ?, result = ?, payout_usd = ?, pnl_usd = ?, evaluated_at = ?
		WHERE id = ? AND status = ?`,
		string(domain.Evaluated), result, payoutUSD, pnlUSD,
		at.UTC().Format(time.RFC3339), id, string(domain.PendingResolution),
	)
	if err != nil {
		return fmt.Errorf("storage.SettleTrade: id %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage.SettleTrade: rows affected: %w", err)
	}
	if n == 0 {
		// Distinguish "missing" from "settled twice".
		if _, err := s.GetTrade(ctx, id); errors.Is(err, ports.ErrTradeNotFound) {
			return ports.ErrTradeNotFound
		}
		return ports.ErrAlreadySettled
	}
	return nil
}

// OpenTrades returns every PENDING_RESOLUTION row in insertion order.
func (s *SQLite) OpenTrades(ctx context.Context) ([]domain.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ledgerColumns+` FROM live_trades WHERE status = ? ORDER BY id`,
		string(domain.PendingResolution))
	if err != nil {
		return nil, fmt.Errorf("storage.OpenTrades: query: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.OpenTrades: scan: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LedgerSummary aggregates over EVALUATED rows only.
func (s *SQLite) LedgerSummary(ctx context.Context) (domain.LedgerSummary, error) {
	var sum domain.LedgerSummary
	var nWins sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       SUM(CASE WHEN pnl_usd > 0 THEN 1 ELSE 0 END),
		       COALESCE(SUM(pnl_usd), 0.0),
		       COALESCE(SUM(cost_usd), 0.0)
		FROM live_trades WHERE status = ?`,
		string(domain.Evaluated),
	).Scan(&sum.NTrades, &nWins, &sum.TotalPnl, &sum.TotalStaked)
	if err != nil {
		return domain.LedgerSummary{}, fmt.Errorf("storage.LedgerSummary: %w", err)
	}

	sum.NWins = int(nWins.Int64)
	if sum.NTrades > 0 {
		sum.WinRate = float64(sum.NWins) / float64(sum.NTrades)
	}
	if sum.TotalStaked > 0 {
		sum.ROI = sum.TotalPnl / sum.TotalStaked
	}
	return sum, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLedgerEntry(r rowScanner) (domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	var loggedAt string
	var title, confidence, verdict, result, concerns, evaluatedAt sql.NullString
	var action, side string
	var kelly, gap, payout, pnl sql.NullFloat64
	var sampleSize, riskScore sql.NullInt64
	var status string

	err := r.Scan(
		&e.ID, &loggedAt, &e.Ticker, &title, &action, &side,
		&e.YesPriceCents, &e.EntryCents, &e.Contracts, &e.CostUSD,
		&kelly, &confidence, &gap, &sampleSize, &verdict, &riskScore,
		&concerns, &status, &result, &payout, &pnl, &evaluatedAt,
	)
	if err != nil {
		return domain.LedgerEntry{}, err
	}

	e.LoggedAt, _ = time.Parse(time.RFC3339, loggedAt)
	e.Title = title.String
	e.Action = domain.Action(action)
	e.Side = side
	e.Kelly = kelly.Float64
	e.Confidence = confidence.String
	if gap.Valid {
		g := gap.Float64
		e.CalibrationGap = &g
	}
	e.SampleSize = int(sampleSize.Int64)
	e.Verdict = verdict.String
	e.RiskScore = int(riskScore.Int64)
	if concerns.Valid && concerns.String != "" {
		if err := json.Unmarshal([]byte(concerns.String), &e.Concerns); err != nil {
			return domain.LedgerEntry{}, fmt.Errorf("decode concerns for trade %d: %w", e.ID, err)
		}
	}
	e.Status = domain.LedgerStatus(status)
	e.Result = result.String
	e.PayoutUSD = payout.Float64
	e.PnlUSD = pnl.Float64
	if evaluatedAt.Valid && evaluatedAt.String != "" {
		if t, err := time.Parse(time.RFC3339, evaluatedAt.String); err == nil {
			e.EvaluatedAt = &t
		}
	}
	return e, nil
}
