package storage

// history.go — price-bucket queries over the historical outcomes store.
//
// Every query joins trades to finalized markets and aggregates by exact
// yes_price: the question is never "what happened to this ticker" but
// "what happened, historically, to contracts priced at X cents".

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

// SetCategoryPattern restricts historical queries to tickers matching
// the given SQL LIKE pattern (e.g. "KXNBA%").
func (s *SQLite) SetCategoryPattern(pattern string) {
	s.category = pattern
}

func (s *SQLite) pattern() string {
	if s.category == "" {
		return "KXNBA%"
	}
	return s.category
}

// PriceBucket returns the win rate of the bet side across all resolved
// outcomes at exactly this yes price.
func (s *SQLite) PriceBucket(ctx context.Context, yesPrice int, action domain.Action) (domain.PriceBucketStats, error) {
	implied := domain.ImpliedProb(yesPrice, action)
	stats := domain.PriceBucketStats{ImpliedProb: implied}

	var winRate sql.NullFloat64
	var n int
	err := s.db.QueryRowContext(ctx, `
		WITH resolved AS (
			SELECT ticker, result FROM markets
			WHERE status = 'finalized'
			  AND result IN ('yes', 'no')
			  AND ticker LIKE ?
		)
		SELECT AVG(CASE WHEN m.result = ? THEN 1.0 ELSE 0.0 END), COUNT(*)
		FROM trades t
		INNER JOIN resolved m ON t.ticker = m.ticker
		WHERE t.yes_price = ?`,
		s.pattern(), action.Side(), yesPrice,
	).Scan(&winRate, &n)
	if err != nil {
		return stats, fmt.Errorf("storage.PriceBucket: price %d: %w", yesPrice, err)
	}

	if n == 0 || !winRate.Valid {
		return stats, nil
	}

	wr := winRate.Float64
	edge := wr - implied
	stats.ActualWinRate = &wr
	stats.Edge = &edge
	stats.SampleSize = n
	return stats, nil
}

// LongshotBias returns how often NO won across all trades at or below
// the price ceiling.
func (s *SQLite) LongshotBias(ctx context.Context, priceCeiling int) (domain.LongshotStats, error) {
	var noWinRate, avgPrice sql.NullFloat64
	var n int
	err := s.db.QueryRowContext(ctx, `
		WITH resolved AS (
			SELECT ticker, result FROM markets
			WHERE status = 'finalized'
			  AND result IN ('yes', 'no')
			  AND ticker LIKE ?
		)
		SELECT AVG(CASE WHEN m.result = 'no' THEN 1.0 ELSE 0.0 END),
		       AVG(t.yes_price),
		       COUNT(*)
		FROM trades t
		INNER JOIN resolved m ON t.ticker = m.ticker
		WHERE t.yes_price <= ?`,
		s.pattern(), priceCeiling,
	).Scan(&noWinRate, &avgPrice, &n)
	if err != nil {
		return domain.LongshotStats{}, fmt.Errorf("storage.LongshotBias: ceiling %d: %w", priceCeiling, err)
	}

	stats := domain.LongshotStats{SampleSize: n}
	if n > 0 && noWinRate.Valid {
		wr := noWinRate.Float64
		stats.NoWinRate = &wr
		stats.AvgPrice = avgPrice.Float64
	}
	return stats, nil
}

// TakerWinRate returns how often the taker side matched the final result
// at exactly this yes price.
func (s *SQLite) TakerWinRate(ctx context.Context, yesPrice int) (domain.TakerStats, error) {
	var winRate sql.NullFloat64
	var n int
	err := s.db.QueryRowContext(ctx, `
		WITH resolved AS (
			SELECT ticker, result FROM markets
			WHERE status = 'finalized'
			  AND result IN ('yes', 'no')
			  AND ticker LIKE ?
		)
		SELECT AVG(CASE WHEN t.taker_side = m.result THEN 1.0 ELSE 0.0 END), COUNT(*)
		FROM trades t
		INNER JOIN resolved m ON t.ticker = m.ticker
		WHERE t.yes_price = ?`,
		s.pattern(), yesPrice,
	).Scan(&winRate, &n)
	if err != nil {
		return domain.TakerStats{}, fmt.Errorf("storage.TakerWinRate: price %d: %w", yesPrice, err)
	}

	stats := domain.TakerStats{SampleSize: n}
	if n > 0 && winRate.Valid {
		wr := winRate.Float64
		stats.WinRate = &wr
	}
	return stats, nil
}

// VolumeStats returns liquidity figures for one ticker, zeros when the
// ticker is not in the store.
func (s *SQLite) VolumeStats(ctx context.Context, ticker string) (domain.VolumeStats, error) {
	var stats domain.VolumeStats
	err := s.db.QueryRowContext(ctx, `
		SELECT volume, volume_24h, open_interest, last_price
		FROM markets WHERE ticker = ? LIMIT 1`,
		ticker,
	).Scan(&stats.Volume, &stats.Volume24h, &stats.OpenInterest, &stats.LastPrice)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.VolumeStats{}, nil
	}
	if err != nil {
		return domain.VolumeStats{}, fmt.Errorf("storage.VolumeStats: %s: %w", ticker, err)
	}
	return stats, nil
}

// ResolvedSignals returns up to n finalized markets with an in-range
// price, ordered by close time ascending, for backtest replay.
func (s *SQLite) ResolvedSignals(ctx context.Context, n int) ([]domain.HistoricalSignal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ticker, last_price, result
		FROM markets
		WHERE status = 'finalized'
		  AND result IN ('yes', 'no')
		  AND last_price BETWEEN 1 AND 99
		ORDER BY close_time ASC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("storage.ResolvedSignals: query: %w", err)
	}
	defer rows.Close()

	var signals []domain.HistoricalSignal
	for rows.Next() {
		var sig domain.HistoricalSignal
		if err := rows.Scan(&sig.Ticker, &sig.LastPrice, &sig.Result); err != nil {
			return nil, fmt.Errorf("storage.ResolvedSignals: scan: %w", err)
		}
		signals = append(signals, sig)
	}
	return signals, rows.Err()
}

// SeedMarket and SeedTrade insert historical rows; used by tests and the
// dataset loader.
func (s *SQLite) SeedMarket(ctx context.Context, ticker, status, result string, lastPrice, volume, volume24h, openInterest int, closeTime string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO markets
			(ticker, status, result, last_price, volume, volume_24h, open_interest, close_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ticker, status, result, lastPrice, volume, volume24h, openInterest, closeTime)
	if err != nil {
		return fmt.Errorf("storage.SeedMarket: %s: %w", ticker, err)
	}
	return nil
}

func (s *SQLite) SeedTrade(ctx context.Context, ticker string, yesPrice int, takerSide string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (ticker, yes_price, taker_side) VALUES (?, ?, ?)`,
		ticker, yesPrice, takerSide)
	if err != nil {
		return fmt.Errorf("storage.SeedTrade: %s: %w", ticker, err)
	}
	return nil
}
