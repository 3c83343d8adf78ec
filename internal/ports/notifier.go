package ports

import (
	"context"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

// Notifier presents decisions and settlement results to the operator.
type Notifier interface {
	// NotifyDecision prints one terminal decision with its audit reason.
	NotifyDecision(ctx context.Context, signal domain.Signal, decision domain.Decision) error

	// NotifySettlements prints newly settled rows and the running summary.
	NotifySettlements(ctx context.Context, settled []domain.SettleResult, summary domain.LedgerSummary) error
}
