package reviewer

import (
	"context"
	"log/slog"

	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/ports"
)

// FailSafe wraps a Reviewer so that any failure — timeout, transport
// error, malformed response — becomes a VETO with the maximum risk
// score. A broken reviewer must never approve by accident.
type FailSafe struct {
	inner ports.Reviewer
	log   *slog.Logger
}

// NewFailSafe wraps the given reviewer.
func NewFailSafe(inner ports.Reviewer, log *slog.Logger) *FailSafe {
	return &FailSafe{inner: inner, log: log}
}

// Review delegates and converts errors to vetoes. It never returns an
// error itself.
func (f *FailSafe) Review(ctx context.Context, p domain.TradeProposal, portfolio ports.PortfolioContext) (domain.Review, error) {
	review, err := f.inner.Review(ctx, p, portfolio)
	if err != nil {
		f.log.Error("reviewer failed, vetoing",
			"ticker", p.Signal.Ticker, "err", err)
		return domain.Review{
			Decision:   DecisionVeto,
			VetoReason: "reviewer unavailable: " + err.Error(),
			Concerns:   []string{"reviewer failure, failing safe"},
			RiskScore:  10,
			Summary:    "VETO: reviewer unavailable",
		}, nil
	}
	return review, nil
}
