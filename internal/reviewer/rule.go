// Package reviewer implements the final APPROVE/VETO ruling on proposals
// that already cleared the hard risk gate. Two strategies satisfy the
// same port: a deterministic rule reviewer and a remote model-backed one,
// selected by configuration. FailSafe wraps either so that any reviewer
// failure surfaces as a VETO, never as a silent approval.
package reviewer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/ports"
)

// Review decisions.
const (
	DecisionApprove = "APPROVE"
	DecisionVeto    = "VETO"
)

const (
	minSample       = 100
	contaminationN  = 200
	minOpenInterest = 500
)

// RuleConfig holds the rule reviewer's thresholds.
type RuleConfig struct {
	KellyCap float64
	EdgeHigh float64 // gap above which an approval scores 3 instead of 5
}

// Rule is the deterministic reviewer. It re-checks the structural
// soundness of the proposal's own numbers, not the portfolio — the hard
// gate already ruled on correlation and exposure.
type Rule struct {
	cfg   RuleConfig
	store ports.EdgeStore
	log   *slog.Logger
}

// NewRule creates the rule reviewer.
func NewRule(cfg RuleConfig, store ports.EdgeStore, log *slog.Logger) *Rule {
	return &Rule{cfg: cfg, store: store, log: log}
}

// Review applies the veto rules in priority order.
func (r *Rule) Review(ctx context.Context, p domain.TradeProposal, _ ports.PortfolioContext) (domain.Review, error) {
	report := p.Report

	// A perfect record on a deep sample is contamination, not edge.
	if wr := report.ActualWinRate; wr != nil && (*wr == 0 || *wr == 1) && report.SampleSize >= contaminationN {
		return veto(fmt.Sprintf(
			"win rate of %.1f across %d samples indicates data contamination, not genuine edge",
			*wr, report.SampleSize)), nil
	}

	if report.SampleSize < minSample {
		return veto(fmt.Sprintf(
			"sample size %d is below minimum threshold of %d",
			report.SampleSize, minSample)), nil
	}

	if p.Kelly > r.cfg.KellyCap {
		return veto(fmt.Sprintf(
			"kelly fraction %.4f exceeds cap of %.2f", p.Kelly, r.cfg.KellyCap)), nil
	}

	// Liquidity check, only when the store actually knows this ticker.
	// Zeros across the board mean an unknown ticker, not an empty market.
	vol, err := r.store.VolumeStats(ctx, p.Signal.Ticker)
	if err != nil {
		return domain.Review{}, fmt.Errorf("reviewer.Rule: volume stats %s: %w", p.Signal.Ticker, err)
	}
	if vol.Volume > 0 || vol.OpenInterest > 0 {
		if vol.Volume == 0 {
			return veto("market volume is 0, cannot get filled at this price"), nil
		}
		if vol.OpenInterest < minOpenInterest {
			return veto(fmt.Sprintf(
				"open interest of %d is below %d, market is illiquid",
				vol.OpenInterest, minOpenInterest)), nil
		}
	}

	score := 5
	if report.Gap() > r.cfg.EdgeHigh {
		score = 3
	}
	return domain.Review{
		Decision:  DecisionApprove,
		Concerns:  []string{"rule reviewer: no structural issues detected"},
		RiskScore: score,
		Summary:   "rule reviewer approved: no veto conditions triggered",
	}, nil
}

func veto(reason string) domain.Review {
	return domain.Review{
		Decision:   DecisionVeto,
		VetoReason: reason,
		Concerns:   []string{reason},
		RiskScore:  9,
		Summary:    "VETO: " + reason,
	}
}
