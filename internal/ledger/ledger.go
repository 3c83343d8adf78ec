// Package ledger is the authoritative record of accepted trades. A row
// opens PENDING_RESOLUTION with its cost fixed forever, and settles to
// EVALUATED exactly once.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/ports"
)

// Ledger opens, settles, and summarizes trades over a LedgerStore.
type Ledger struct {
	store ports.LedgerStore
	log   *slog.Logger
	now   func() time.Time
}

// New creates a Ledger.
func New(store ports.LedgerStore, log *slog.Logger) *Ledger {
	return &Ledger{store: store, log: log, now: time.Now}
}

// Open records one approved decision as a pending trade and returns the
// stored entry. Contract count derives from the fixed dollar stake:
// at least one contract, then as many whole contracts as the stake buys
// at the entry price. CostUSD is computed here once and never again.
func (l *Ledger) Open(ctx context.Context, d domain.Decision, stakeUSD float64) (domain.LedgerEntry, error) {
	if d.Status != domain.StatusApproved || d.Proposal == nil {
		return domain.LedgerEntry{}, fmt.Errorf("ledger.Open: decision is %s, only approved trades are recorded", d.Status)
	}

	p := *d.Proposal
	sig := p.Signal

	entryCents := sig.Action.EntryCents(sig.YesPrice)
	if entryCents < 1 || entryCents > 99 {
		return domain.LedgerEntry{}, fmt.Errorf("ledger.Open: %s: entry price %dc out of range", sig.Ticker, entryCents)
	}

	entryUSD := float64(entryCents) / 100
	contracts := int(math.Floor(stakeUSD / entryUSD))
	if contracts < 1 {
		contracts = 1
	}

	entry := domain.LedgerEntry{
		LoggedAt:       l.now().UTC(),
		Ticker:         sig.Ticker,
		Title:          sig.Title,
		Action:         sig.Action,
		Side:           sig.Action.Side(),
		YesPriceCents:  sig.YesPrice,
		EntryCents:     entryCents,
		Contracts:      contracts,
		CostUSD:        float64(contracts) * entryUSD,
		Kelly:          p.Kelly,
		Confidence:     p.Confidence,
		CalibrationGap: p.Report.CalibrationGap,
		SampleSize:     p.Report.SampleSize,
		Verdict:        string(p.Report.Verdict),
		RiskScore:      d.RiskScore(),
		Concerns:       d.Concerns(),
		Status:         domain.PendingResolution,
	}

	id, err := l.store.InsertTrade(ctx, entry)
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("ledger.Open: %s: %w", sig.Ticker, err)
	}
	entry.ID = id

	l.log.Info("trade opened",
		"id", id,
		"ticker", sig.Ticker,
		"action", sig.Action,
		"entry_cents", entryCents,
		"contracts", contracts,
		"cost_usd", entry.CostUSD)
	return entry, nil
}

// Settle resolves one pending trade against the market result ("yes" or
// "no"). A winning contract pays $1; the loss case pays nothing. Settling
// the same id twice returns ports.ErrAlreadySettled from the store.
func (l *Ledger) Settle(ctx context.Context, id int64, result string) (domain.SettleResult, error) {
	if result != "yes" && result != "no" {
		return domain.SettleResult{}, fmt.Errorf("ledger.Settle: id %d: unrecognized result %q", id, result)
	}

	entry, err := l.store.GetTrade(ctx, id)
	if err != nil {
		return domain.SettleResult{}, fmt.Errorf("ledger.Settle: id %d: %w", id, err)
	}

	won := entry.Side == result
	payout := 0.0
	if won {
		payout = float64(entry.Contracts)
	}
	pnl := payout - entry.CostUSD

	if err := l.store.SettleTrade(ctx, id, result, payout, pnl, l.now()); err != nil {
		return domain.SettleResult{}, fmt.Errorf("ledger.Settle: id %d: %w", id, err)
	}

	l.log.Info("trade settled",
		"id", id,
		"ticker", entry.Ticker,
		"result", result,
		"won", won,
		"pnl_usd", pnl)
	return domain.SettleResult{TradeID: id, Won: won, PayoutUSD: payout, PnlUSD: pnl}, nil
}

// OpenPositions is the portfolio view for the risk gate: one position
// per pending row, read fresh from the store every call.
func (l *Ledger) OpenPositions(ctx context.Context) ([]domain.OpenPosition, error) {
	entries, err := l.store.OpenTrades(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger.OpenPositions: %w", err)
	}

	positions := make([]domain.OpenPosition, 0, len(entries))
	for _, e := range entries {
		positions = append(positions, domain.OpenPosition{
			Ticker:  e.Ticker,
			GameKey: e.GameKey(),
			Action:  e.Action,
			CostUSD: e.CostUSD,
		})
	}
	return positions, nil
}

// OpenTrades exposes the raw pending rows for the settlement checker.
func (l *Ledger) OpenTrades(ctx context.Context) ([]domain.LedgerEntry, error) {
	return l.store.OpenTrades(ctx)
}

// Summary aggregates realized P&L over all settled rows.
func (l *Ledger) Summary(ctx context.Context) (domain.LedgerSummary, error) {
	sum, err := l.store.LedgerSummary(ctx)
	if err != nil {
		return domain.LedgerSummary{}, fmt.Errorf("ledger.Summary: %w", err)
	}
	return sum, nil
}
