package ports

import (
	"context"
	"errors"
	"time"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

var (
	// ErrTradeNotFound is returned for settle/get on an unknown id.
	ErrTradeNotFound = errors.New("trade not found")
	// ErrAlreadySettled is returned when settling an EVALUATED row again.
	ErrAlreadySettled = errors.New("trade already settled")
)

// LedgerStore persists ledger rows. Writes are atomic per trade: an
// insert or settle either fully commits or not at all.
type LedgerStore interface {
	// InsertTrade persists a new PENDING_RESOLUTION row and returns its id.
	InsertTrade(ctx context.Context, e domain.LedgerEntry) (int64, error)

	// GetTrade returns one row by id, or ErrTradeNotFound.
	GetTrade(ctx context.Context, id int64) (domain.LedgerEntry, error)

	// SettleTrade writes the outcome and flips the row to EVALUATED.
	// Returns ErrAlreadySettled if the row is no longer pending, or
	// ErrTradeNotFound for an unknown id.
	SettleTrade(ctx context.Context, id int64, result string, payoutUSD, pnlUSD float64, at time.Time) error

	// OpenTrades returns every PENDING_RESOLUTION row, reflecting all
	// prior inserts (no caching).
	OpenTrades(ctx context.Context) ([]domain.LedgerEntry, error)

	// LedgerSummary aggregates over EVALUATED rows only.
	LedgerSummary(ctx context.Context) (domain.LedgerSummary, error)
}
