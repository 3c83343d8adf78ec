package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/kalshibot/internal/analyzer"
	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/ports"
	"github.com/alejandrodnm/kalshibot/internal/risk"
	"github.com/alejandrodnm/kalshibot/internal/sizing"
)

// TradeOpener is the ledger surface the orchestrator needs.
type TradeOpener interface {
	Open(ctx context.Context, d domain.Decision, stakeUSD float64) (domain.LedgerEntry, error)
	OpenPositions(ctx context.Context) ([]domain.OpenPosition, error)
}

// Executor fills approved decisions.
type Executor interface {
	Execute(ctx context.Context, d domain.Decision) (domain.ExecutionReport, error)
	Cash(ctx context.Context) (float64, error)
}

// OrchestratorConfig holds the proposal policy thresholds.
type OrchestratorConfig struct {
	// MinSample is the history floor below which every signal passes.
	MinSample int
	// StakeUSD is the fixed ledger stake per accepted trade.
	StakeUSD float64
	// RecordTrades disables the ledger write and broker fill when false;
	// the backtest runner settles approved decisions itself.
	RecordTrades bool
}

// Orchestrator runs one signal through the full decision pipeline:
// analyze, size, policy, hard gate, review, and (live mode) ledger open
// plus paper fill. The window from portfolio read to ledger insert is
// serialized per game key.
type Orchestrator struct {
	cfg      OrchestratorConfig
	analyzer *analyzer.EdgeAnalyzer
	sizer    *sizing.Sizer
	gate     *risk.Gate
	reviewer ports.Reviewer
	ledger   TradeOpener
	broker   Executor
	notifier ports.Notifier
	locks    *gameLocks
	log      *slog.Logger
}

// NewOrchestrator wires the pipeline. broker may be nil when
// RecordTrades is false.
func NewOrchestrator(
	cfg OrchestratorConfig,
	a *analyzer.EdgeAnalyzer,
	s *sizing.Sizer,
	g *risk.Gate,
	r ports.Reviewer,
	l TradeOpener,
	b Executor,
	n ports.Notifier,
	log *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		analyzer: a,
		sizer:    s,
		gate:     g,
		reviewer: r,
		ledger:   l,
		broker:   b,
		notifier: n,
		locks:    newGameLocks(),
		log:      log,
	}
}

// Process evaluates one signal to its terminal decision and, in live
// mode, records and fills approvals. The error return covers only
// infrastructure failures after approval; every analytical outcome is a
// Decision, not an error.
func (o *Orchestrator) Process(ctx context.Context, sig domain.Signal) (domain.Decision, error) {
	decision, err := o.evaluate(ctx, sig)

	if o.notifier != nil {
		if nerr := o.notifier.NotifyDecision(ctx, sig, decision); nerr != nil {
			o.log.Warn("notify failed", "ticker", sig.Ticker, "err", nerr)
		}
	}
	return decision, err
}

// evaluate decides and, in live mode, records the approval while the
// game lock taken by decide is still held. Releasing only after the
// ledger insert commits is what makes the correlation rules airtight: a
// concurrent same-game signal cannot read the portfolio between this
// signal's gate check and its row landing.
func (o *Orchestrator) evaluate(ctx context.Context, sig domain.Signal) (domain.Decision, error) {
	decision, unlock := o.decide(ctx, sig)
	defer unlock()

	if decision.Status == domain.StatusApproved && o.cfg.RecordTrades {
		if _, err := o.ledger.Open(ctx, decision, o.cfg.StakeUSD); err != nil {
			return decision, fmt.Errorf("pipeline.Process: %s: %w", sig.Ticker, err)
		}
		if o.broker != nil {
			if _, err := o.broker.Execute(ctx, decision); err != nil {
				return decision, fmt.Errorf("pipeline.Process: %s: %w", sig.Ticker, err)
			}
		}
	}
	return decision, nil
}

// decide runs one signal to its decision. The returned unlock must be
// called by the caller; for any decision that reached the portfolio
// read it releases the per-game lock, which stays held so the caller
// can insert the ledger row inside the same critical section.
func (o *Orchestrator) decide(ctx context.Context, sig domain.Signal) (domain.Decision, func()) {
	report := o.analyzer.Analyze(ctx, sig)

	kelly := o.sizer.Kelly(report.ActualWinRate, sig.YesPrice, sig.Action)
	confidence := o.sizer.Confidence(report.Gap(), report.SampleSize)

	if reason, pass := o.policyPass(report, confidence); pass {
		return domain.Passed(reason), func() {}
	}

	proposal := domain.TradeProposal{
		Signal:     sig,
		Report:     report,
		Kelly:      kelly,
		Confidence: confidence,
	}

	// From here to the ledger insert, nothing else on this game may run.
	// The caller releases the lock once the approval is recorded.
	unlock := o.locks.lock(sig.GameKey)

	positions, err := o.ledger.OpenPositions(ctx)
	if err != nil {
		// An unreadable portfolio means the correlation rules cannot be
		// verified. Fail safe.
		o.log.Error("portfolio read failed, vetoing", "ticker", sig.Ticker, "err", err)
		return domain.VetoedByGate(proposal, domain.Veto{
			Rule:   "portfolio_unavailable",
			Reason: "open portfolio could not be read: " + err.Error(),
		}), unlock
	}

	var sameGame []domain.OpenPosition
	exposure := 0.0
	for _, pos := range positions {
		if pos.GameKey == sig.GameKey {
			sameGame = append(sameGame, pos)
			exposure += pos.CostUSD
		}
	}

	if v := o.gate.Check(sig.Action, sameGame, exposure, report.DepthAtPrice); v != nil {
		o.log.Info("gate veto", "ticker", sig.Ticker, "rule", v.Rule, "reason", v.Reason)
		return domain.VetoedByGate(proposal, *v), unlock
	}

	portfolio := ports.PortfolioContext{
		OpenPositions:       positions,
		SameGameExposureUSD: exposure,
	}
	if o.broker != nil {
		if cash, err := o.broker.Cash(ctx); err == nil {
			portfolio.CashUSD = cash
		}
	}

	review, err := o.reviewer.Review(ctx, proposal, portfolio)
	if err != nil {
		review = domain.Review{
			Decision:   "VETO",
			VetoReason: "reviewer unavailable: " + err.Error(),
			RiskScore:  10,
			Summary:    "VETO: reviewer unavailable",
		}
	}
	if review.Decision != "APPROVE" {
		o.log.Info("review veto", "ticker", sig.Ticker, "reason", review.VetoReason, "risk_score", review.RiskScore)
		return domain.VetoedByReview(proposal, review), unlock
	}

	return domain.Approved(proposal, review), unlock
}

// policyPass applies the proposal policy: only a confirmed-or-weak edge
// with usable confidence on a deep enough sample becomes a proposal.
func (o *Orchestrator) policyPass(report domain.EdgeReport, confidence string) (string, bool) {
	if report.SampleSize < o.cfg.MinSample {
		return fmt.Sprintf("sample size %d below %d minimum", report.SampleSize, o.cfg.MinSample), true
	}
	if report.CalibrationGap == nil || *report.CalibrationGap <= 0 {
		return "calibration gap unknown or non-positive", true
	}
	edgy := report.Verdict == domain.EdgeConfirmed || report.Verdict == domain.EdgeWeak
	confident := confidence == sizing.ConfidenceHigh || confidence == sizing.ConfidenceMedium
	if edgy && confident {
		return "", false
	}
	return fmt.Sprintf("verdict %s / confidence %s, criteria not met", report.Verdict, confidence), true
}
