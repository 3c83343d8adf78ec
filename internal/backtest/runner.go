// Package backtest replays resolved historical markets through the full
// decision pipeline and settles each approved trade immediately against
// its known result. The replay is deterministic: same dataset, same
// thresholds, same outcome.
package backtest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/kalshibot/internal/broker"
	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/pipeline"
	"github.com/alejandrodnm/kalshibot/internal/ports"
)

// Config bounds one replay run.
type Config struct {
	// N is the maximum number of finalized markets to replay.
	N int
}

// Counts tallies where each replayed market terminated.
type Counts struct {
	Processed int
	Bounced   int // rejected at ingestion (not a longshot)
	Passed    int
	Vetoed    int
	Approved  int
	Settled   int
}

// Fill is one settled backtest trade, for reporting.
type Fill struct {
	Ticker   string
	Action   domain.Action
	YesPrice int
	Result   string
	PnlUSD   float64
	CashUSD  float64
}

// Result is the outcome of one full replay.
type Result struct {
	Counts  Counts
	Fills   []Fill
	Summary domain.BacktestSummary
}

// Runner drives the replay. The orchestrator must be built with trade
// recording off; the runner settles approvals through the broker itself.
type Runner struct {
	cfg     Config
	store   ports.EdgeStore
	bouncer *pipeline.Bouncer
	orch    *pipeline.Orchestrator
	broker  *broker.Paper
	log     *slog.Logger
}

// New creates a Runner.
func New(cfg Config, store ports.EdgeStore, b *pipeline.Bouncer, orch *pipeline.Orchestrator, paper *broker.Paper, log *slog.Logger) *Runner {
	return &Runner{cfg: cfg, store: store, bouncer: b, orch: orch, broker: paper, log: log}
}

// Run replays up to N finalized markets in close-time order.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	signals, err := r.store.ResolvedSignals(ctx, r.cfg.N)
	if err != nil {
		return Result{}, fmt.Errorf("backtest.Run: load dataset: %w", err)
	}
	r.log.Info("backtest dataset loaded", "markets", len(signals))

	var res Result
	for _, hist := range signals {
		res.Counts.Processed++

		sig := r.bouncer.Process(ctx, hist.Ticker, hist.LastPrice)
		if sig == nil {
			res.Counts.Bounced++
			continue
		}

		decision, err := r.orch.Process(ctx, *sig)
		if err != nil {
			return res, fmt.Errorf("backtest.Run: %s: %w", hist.Ticker, err)
		}

		switch decision.Status {
		case domain.StatusPassed:
			res.Counts.Passed++
			continue
		case domain.StatusVetoed:
			res.Counts.Vetoed++
			continue
		}

		res.Counts.Approved++

		report, err := r.broker.ExecuteSettled(ctx, decision, hist.Result)
		if err != nil {
			return res, fmt.Errorf("backtest.Run: settle %s: %w", hist.Ticker, err)
		}
		if report.Status != domain.ExecSettled {
			r.log.Debug("approved but not filled",
				"ticker", hist.Ticker, "reason", report.Reason)
			continue
		}

		res.Counts.Settled++
		res.Fills = append(res.Fills, Fill{
			Ticker:   hist.Ticker,
			Action:   sig.Action,
			YesPrice: hist.LastPrice,
			Result:   hist.Result,
			PnlUSD:   report.PnlUSD,
			CashUSD:  report.CashAfter,
		})
	}

	res.Summary = r.broker.Summary()
	r.log.Info("backtest complete",
		"processed", res.Counts.Processed,
		"bounced", res.Counts.Bounced,
		"passed", res.Counts.Passed,
		"vetoed", res.Counts.Vetoed,
		"settled", res.Counts.Settled,
		"total_pnl", res.Summary.TotalPnl)
	return res, nil
}
