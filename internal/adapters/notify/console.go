// Package notify renders decisions, settlements and backtest results to
// the terminal. It implements ports.Notifier.
package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/kalshibot/internal/backtest"
	"github.com/alejandrodnm/kalshibot/internal/domain"
)

// Console implements ports.Notifier.
type Console struct {
	out io.Writer
	now func() time.Time
}

// NewConsole creates a notifier that writes to stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout, now: time.Now}
}

// NewConsoleWriter creates a notifier for tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w, now: time.Now}
}

// NotifyDecision prints one terminal decision on a single line, with the
// audit trail that led to it.
func (c *Console) NotifyDecision(_ context.Context, signal domain.Signal, decision domain.Decision) error {
	now := c.now().Format("15:04:05")

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %-8s %s @%dc %s",
		now, decision.Status, signal.Ticker, signal.YesPrice, signal.Action)

	if p := decision.Proposal; p != nil {
		r := p.Report
		fmt.Fprintf(&sb, " | %s gap=%s n=%d", r.Verdict, gapLabel(r.CalibrationGap), r.SampleSize)
		fmt.Fprintf(&sb, " | kelly=%.3f %s", p.Kelly, p.Confidence)
	}

	switch decision.Status {
	case domain.StatusPassed:
		fmt.Fprintf(&sb, " | %s", decision.Reason)
	case domain.StatusVetoed:
		if decision.GateVeto != nil {
			fmt.Fprintf(&sb, " | gate:%s %s", decision.GateVeto.Rule, decision.GateVeto.Reason)
		} else if decision.Review != nil {
			fmt.Fprintf(&sb, " | review[%d]: %s", decision.Review.RiskScore, decision.Review.VetoReason)
		}
	case domain.StatusApproved:
		if decision.Review != nil {
			fmt.Fprintf(&sb, " | risk=%d", decision.Review.RiskScore)
			for i, concern := range decision.Review.Concerns {
				if i >= 2 {
					break
				}
				fmt.Fprintf(&sb, "\n  >> %s", concern)
			}
		}
	}

	fmt.Fprintln(c.out, sb.String())
	return nil
}

// NotifySettlements prints each newly settled row and the running ledger
// summary.
func (c *Console) NotifySettlements(_ context.Context, settled []domain.SettleResult, summary domain.LedgerSummary) error {
	now := c.now().Format("15:04:05")

	if len(settled) == 0 {
		fmt.Fprintf(c.out, "[%s] no trades settled this pass\n", now)
	}
	for _, s := range settled {
		outcome := "LOST"
		if s.Won {
			outcome = "WON"
		}
		fmt.Fprintf(c.out, "[%s] trade #%d %s  payout $%.2f  pnl %+.2f\n",
			now, s.TradeID, outcome, s.PayoutUSD, s.PnlUSD)
	}

	if summary.NTrades == 0 {
		return nil
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Trades", "Wins", "Win rate", "Staked", "PnL", "ROI")
	table.Append(
		fmt.Sprintf("%d", summary.NTrades),
		fmt.Sprintf("%d", summary.NWins),
		fmt.Sprintf("%.1f%%", summary.WinRate*100),
		fmt.Sprintf("$%.2f", summary.TotalStaked),
		fmt.Sprintf("$%+.2f", summary.TotalPnl),
		fmt.Sprintf("%+.2f%%", summary.ROI*100),
	)
	table.Render()
	return nil
}

// PrintBacktest renders a full replay run: the funnel counts, every fill,
// and the account summary.
func (c *Console) PrintBacktest(res backtest.Result) {
	fmt.Fprintf(c.out, "\n=== BACKTEST — %d resolved signals replayed ===\n\n", res.Counts.Processed)

	fmt.Fprintf(c.out, "  Processed: %d  bounced: %d  passed: %d  vetoed: %d  approved: %d  settled: %d\n\n",
		res.Counts.Processed, res.Counts.Bounced, res.Counts.Passed,
		res.Counts.Vetoed, res.Counts.Approved, res.Counts.Settled)

	if len(res.Fills) > 0 {
		table := tablewriter.NewWriter(c.out)
		table.Header("#", "Ticker", "Action", "Price", "Result", "PnL", "Cash")
		for i, fill := range res.Fills {
			table.Append(
				fmt.Sprintf("%d", i+1),
				fill.Ticker,
				string(fill.Action),
				fmt.Sprintf("%dc", fill.YesPrice),
				fill.Result,
				fmt.Sprintf("$%+.2f", fill.PnlUSD),
				fmt.Sprintf("$%.2f", fill.CashUSD),
			)
		}
		table.Render()
	}

	s := res.Summary
	fmt.Fprintf(c.out, "\n  Bankroll:     $%.2f -> $%.2f\n", s.Bankroll, s.FinalCash)
	fmt.Fprintf(c.out, "  Total PnL:    $%+.2f  (ROI %+.2f%%)\n", s.TotalPnl, s.ROI*100)
	fmt.Fprintf(c.out, "  Trades:       %d  wins: %d  (%.1f%%)\n", s.NTrades, s.NWins, s.WinRate*100)
	fmt.Fprintf(c.out, "  Max drawdown: $%.2f\n", s.MaxDrawdown)

	if s.NTrades == 0 {
		fmt.Fprintf(c.out, "\n  No trades cleared the pipeline. Nothing to conclude.\n\n")
		return
	}
	if s.TotalPnl > 0 {
		fmt.Fprintf(c.out, "\n  >>> Net positive over this replay.\n\n")
	} else {
		fmt.Fprintf(c.out, "\n  >>> Net negative over this replay. Review thresholds before going live.\n\n")
	}
}

func gapLabel(gap *float64) string {
	if gap == nil {
		return "n/a"
	}
	return fmt.Sprintf("%+.4f", *gap)
}
