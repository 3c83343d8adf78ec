package ports

import (
	"context"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

// PortfolioContext is the open-portfolio snapshot handed to the reviewer
// alongside a proposal.
type PortfolioContext struct {
	OpenPositions       []domain.OpenPosition
	SameGameExposureUSD float64
	CashUSD             float64
}

// Reviewer gives the final APPROVE/VETO ruling on a proposal that
// already cleared the hard risk gate. Implementations may be rule-based
// or model-backed; any internal failure must surface as an error so the
// caller can fail safe to VETO.
type Reviewer interface {
	Review(ctx context.Context, p domain.TradeProposal, portfolio PortfolioContext) (domain.Review, error)
}
