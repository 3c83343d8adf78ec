// Package broker simulates execution against a paper account. No real
// exchange is ever touched; fills are assumed at the signal price.
//
// Accounting convention: cash decreases when a position opens (we pay
// the contract price) and only a settlement credits it back. The equity
// column of the equity log is cash on hand, shrinking as capital is
// deployed.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/ports"
)

// Config holds the paper account parameters.
type Config struct {
	StartingCash float64
	MaxContracts int
	// RiskCap bounds the cash fraction risked per trade even when Kelly
	// says more.
	RiskCap float64
}

// Paper is the simulated broker. All operations serialize on one mutex:
// the book is a single document and partial updates must never be
// observable.
type Paper struct {
	cfg   Config
	store ports.BookStore
	log   *slog.Logger
	now   func() time.Time

	mu     sync.Mutex
	book   domain.PaperBook
	loaded bool

	nTrades     int
	nWins       int
	peakCash    float64
	maxDrawdown float64
}

// New creates a paper broker. The book starts fresh at the configured
// cash; the first operation that touches the store replaces it with the
// persisted book when one exists.
func New(cfg Config, store ports.BookStore, log *slog.Logger) *Paper {
	return &Paper{
		cfg:      cfg,
		store:    store,
		log:      log,
		now:      time.Now,
		book:     domain.NewPaperBook(cfg.StartingCash),
		peakCash: cfg.StartingCash,
	}
}

func (b *Paper) ensureLoaded(ctx context.Context) error {
	if b.loaded {
		return nil
	}
	book, found, err := b.store.LoadBook(ctx)
	if err != nil {
		return fmt.Errorf("broker.Paper: load book: %w", err)
	}
	if !found {
		book = domain.NewPaperBook(b.cfg.StartingCash)
	}
	if book.Positions == nil {
		book.Positions = make(map[string]domain.PaperPosition)
	}
	b.book = book
	b.peakCash = book.Cash
	b.loaded = true
	return nil
}

// Execute simulates filling one approved decision. Skips, rather than
// errors, when the decision carries no bet or the account cannot afford
// a single contract; sizing that overshoots available cash scales down
// with a note instead of failing.
func (b *Paper) Execute(ctx context.Context, d domain.Decision) (domain.ExecutionReport, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensureLoaded(ctx); err != nil {
		return domain.ExecutionReport{}, err
	}

	report, err := b.fill(ctx, d)
	if err != nil || report.Status != domain.ExecFilled {
		return report, err
	}

	if err := b.persist(ctx, report, d.Proposal.Signal.Action); err != nil {
		return domain.ExecutionReport{}, err
	}
	return report, nil
}

// fill applies the execution to the in-memory book. Caller holds the lock.
func (b *Paper) fill(_ context.Context, d domain.Decision) (domain.ExecutionReport, error) {
	if d.Status != domain.StatusApproved || d.Proposal == nil {
		return domain.ExecutionReport{
			Status: domain.ExecSkipped,
			Reason: fmt.Sprintf("decision is %s, nothing to execute", d.Status),
		}, nil
	}

	p := *d.Proposal
	sig := p.Signal
	if !sig.Action.IsBet() {
		return domain.ExecutionReport{
			Status: domain.ExecSkipped,
			Reason: fmt.Sprintf("action %q is not a bet", sig.Action),
		}, nil
	}

	side := strings.ToUpper(sig.Action.Side())
	entryCents := sig.Action.EntryCents(sig.YesPrice)
	costPer := float64(entryCents) / 100
	cashNow := b.book.Cash

	if costPer <= 0 || cashNow < costPer {
		return domain.ExecutionReport{
			Status: domain.ExecSkipped,
			Reason: fmt.Sprintf("insufficient cash (%.2f) for one contract at %dc", cashNow, entryCents),
			Ticker: sig.Ticker,
		}, nil
	}

	// Never risk more than the cap, even when Kelly says more; a zero
	// Kelly (sizing declined) still gets the cap, the reviewer already
	// approved the trade.
	riskFraction := b.cfg.RiskCap
	if p.Kelly > 0 && p.Kelly < riskFraction {
		riskFraction = p.Kelly
	}

	raw := cashNow * riskFraction / costPer
	contracts := int(math.Floor(raw))
	if contracts < 1 {
		contracts = 1
	}
	if contracts > b.cfg.MaxContracts {
		contracts = b.cfg.MaxContracts
	}

	note := ""
	notional := float64(contracts) * costPer
	cashAfter := cashNow - notional
	if cashAfter < 0 {
		contracts = int(math.Floor(cashNow / costPer))
		if contracts < 1 {
			contracts = 1
		}
		notional = float64(contracts) * costPer
		cashAfter = cashNow - notional
		note = "scaled_down:insufficient_cash"
	}

	b.book.Cash = cashAfter

	key := domain.PositionKey(sig.Ticker, side)
	if existing, ok := b.book.Positions[key]; ok {
		// Average in on the same side; the opposite side would be a
		// distinct position under its own key.
		total := existing.Contracts + contracts
		avg := (existing.AvgPriceCents*float64(existing.Contracts) +
			float64(entryCents)*float64(contracts)) / float64(total)
		b.book.Positions[key] = domain.PaperPosition{
			Ticker: sig.Ticker, Side: side, Contracts: total, AvgPriceCents: avg,
		}
	} else {
		b.book.Positions[key] = domain.PaperPosition{
			Ticker: sig.Ticker, Side: side, Contracts: contracts,
			AvgPriceCents: float64(entryCents),
		}
	}

	return domain.ExecutionReport{
		Status:          domain.ExecFilled,
		Ticker:          sig.Ticker,
		Side:            side,
		Contracts:       contracts,
		EntryPriceCents: entryCents,
		NotionalUSD:     notional,
		CashBefore:      cashNow,
		CashAfter:       cashAfter,
		Note:            note,
	}, nil
}

func (b *Paper) persist(ctx context.Context, report domain.ExecutionReport, action domain.Action) error {
	if err := b.store.SaveBook(ctx, b.book); err != nil {
		return fmt.Errorf("broker.Paper: save book: %w", err)
	}
	if err := b.store.AppendTradeLog(ctx, domain.TradeLogRow{
		At:          b.now().UTC(),
		Ticker:      report.Ticker,
		Side:        report.Side,
		Action:      action,
		PriceCents:  report.EntryPriceCents,
		Contracts:   report.Contracts,
		NotionalUSD: report.NotionalUSD,
		CashAfter:   report.CashAfter,
		Note:        report.Note,
	}); err != nil {
		return fmt.Errorf("broker.Paper: trade log: %w", err)
	}
	if err := b.store.AppendEquityLog(ctx, domain.EquitySnapshot{
		At:            b.now().UTC(),
		Cash:          b.book.Cash,
		RealizedPnl:   b.book.RealizedPnl,
		Equity:        b.book.Cash,
		PositionCount: len(b.book.Positions),
	}); err != nil {
		return fmt.Errorf("broker.Paper: equity log: %w", err)
	}

	b.log.Info("paper fill",
		"ticker", report.Ticker,
		"side", report.Side,
		"contracts", report.Contracts,
		"price_cents", report.EntryPriceCents,
		"notional_usd", report.NotionalUSD,
		"cash_after", report.CashAfter,
		"note", report.Note)
	return nil
}

// ExecuteSettled fills an approved decision and immediately settles it
// against a known market result, the backtest path. A winning contract
// pays $1; losses pay nothing. The position closes either way.
func (b *Paper) ExecuteSettled(ctx context.Context, d domain.Decision, result string) (domain.ExecutionReport, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensureLoaded(ctx); err != nil {
		return domain.ExecutionReport{}, err
	}

	report, err := b.fill(ctx, d)
	if err != nil || report.Status != domain.ExecFilled {
		return report, err
	}

	won := strings.EqualFold(report.Side, result)
	payout := 0.0
	if won {
		payout = float64(report.Contracts)
	}
	pnl := payout - report.NotionalUSD

	b.book.Cash += payout
	b.book.RealizedPnl += pnl
	delete(b.book.Positions, domain.PositionKey(report.Ticker, report.Side))

	report.Status = domain.ExecSettled
	report.Won = won
	report.PayoutUSD = payout
	report.PnlUSD = pnl
	report.CashAfter = b.book.Cash

	b.nTrades++
	if won {
		b.nWins++
	}
	if b.book.Cash > b.peakCash {
		b.peakCash = b.book.Cash
	}
	if dd := b.peakCash - b.book.Cash; dd > b.maxDrawdown {
		b.maxDrawdown = dd
	}

	if err := b.persist(ctx, report, d.Proposal.Signal.Action); err != nil {
		return domain.ExecutionReport{}, err
	}
	return report, nil
}

// MarkToMarket computes unrealized P&L against a current
// {ticker: yes price} map. Positions without a quote are skipped, not
// valued at zero.
func (b *Paper) MarkToMarket(prices map[string]int) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	unrealized := 0.0
	for _, pos := range b.book.Positions {
		yes, ok := prices[pos.Ticker]
		if !ok {
			continue
		}
		current := yes
		if pos.Side == "NO" {
			current = 100 - yes
		}
		value := float64(pos.Contracts) * float64(current) / 100
		unrealized += value - pos.CostBasisUSD()
	}
	return unrealized
}

// Cash returns the current cash balance.
func (b *Paper) Cash(ctx context.Context) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureLoaded(ctx); err != nil {
		return 0, err
	}
	return b.book.Cash, nil
}

// Summary aggregates the run since this broker was constructed.
func (b *Paper) Summary() domain.BacktestSummary {
	b.mu.Lock()
	defer b.mu.Unlock()

	sum := domain.BacktestSummary{
		Bankroll:    b.cfg.StartingCash,
		FinalCash:   b.book.Cash,
		TotalPnl:    b.book.RealizedPnl,
		NTrades:     b.nTrades,
		NWins:       b.nWins,
		MaxDrawdown: b.maxDrawdown,
	}
	if b.cfg.StartingCash > 0 {
		sum.ROI = sum.TotalPnl / b.cfg.StartingCash
	}
	if b.nTrades > 0 {
		sum.WinRate = float64(b.nWins) / float64(b.nTrades)
	}
	return sum
}
