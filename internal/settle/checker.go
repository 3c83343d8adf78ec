// Package settle resolves pending ledger rows against an authoritative
// outcome source. It is a polling pass, not a stream: each run walks the
// open trades once and settles whatever has finalized since.
package settle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/ledger"
	"github.com/alejandrodnm/kalshibot/internal/ports"
)

// Checker settles open ledger rows whose markets have resolved.
type Checker struct {
	ledger *ledger.Ledger
	source ports.OutcomeSource
	log    *slog.Logger
}

// New creates a Checker.
func New(l *ledger.Ledger, source ports.OutcomeSource, log *slog.Logger) *Checker {
	return &Checker{ledger: l, source: source, log: log}
}

// Run walks every pending trade once. Unresolved markets, unknown
// outcomes, and per-ticker lookup failures are skipped, not fatal; the
// next run will see them again. Returns what settled plus the updated
// realized summary.
func (c *Checker) Run(ctx context.Context) ([]domain.SettleResult, domain.LedgerSummary, error) {
	open, err := c.ledger.OpenTrades(ctx)
	if err != nil {
		return nil, domain.LedgerSummary{}, fmt.Errorf("settle.Run: open trades: %w", err)
	}

	var settled []domain.SettleResult
	for _, entry := range open {
		outcome, err := c.source.LookupOutcome(ctx, entry.Ticker)
		if err != nil {
			c.log.Warn("outcome lookup failed", "id", entry.ID, "ticker", entry.Ticker, "err", err)
			continue
		}
		if outcome.Status != ports.OutcomeFinalized {
			c.log.Debug("still open", "id", entry.ID, "ticker", entry.Ticker, "status", outcome.Status)
			continue
		}
		if outcome.Result != "yes" && outcome.Result != "no" {
			// Finalized but voided or unparseable. Leave the row pending
			// for manual review rather than guessing a direction.
			c.log.Warn("finalized without a recognizable result",
				"id", entry.ID, "ticker", entry.Ticker, "result", outcome.Result)
			continue
		}

		res, err := c.ledger.Settle(ctx, entry.ID, outcome.Result)
		if err != nil {
			c.log.Error("settle failed", "id", entry.ID, "ticker", entry.Ticker, "err", err)
			continue
		}
		settled = append(settled, res)
	}

	summary, err := c.ledger.Summary(ctx)
	if err != nil {
		return settled, domain.LedgerSummary{}, fmt.Errorf("settle.Run: summary: %w", err)
	}

	c.log.Info("settlement pass complete",
		"checked", len(open), "settled", len(settled), "total_pnl", summary.TotalPnl)
	return settled, summary, nil
}
