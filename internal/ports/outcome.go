package ports

import "context"

// Outcome statuses reported by an OutcomeSource.
const (
	OutcomeOpen      = "open"
	OutcomeFinalized = "finalized"
	OutcomeUnknown   = "unknown"
)

// Outcome is the authoritative resolution state of one market.
type Outcome struct {
	Status string // open | finalized | unknown
	Result string // yes | no, only meaningful when finalized
}

// OutcomeSource answers "has this market resolved, and how?" for the
// settlement checker.
type OutcomeSource interface {
	LookupOutcome(ctx context.Context, ticker string) (Outcome, error)
}
