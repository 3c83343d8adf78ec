package domain

import "time"

// PaperPosition is one open simulated position. Positions are keyed by
// (ticker, side): a same-side re-entry blends into the existing position
// at a cost-weighted average price, an opposite-side fill on the same
// ticker is a second distinct position.
type PaperPosition struct {
	Ticker        string
	Side          string // YES | NO
	Contracts     int
	AvgPriceCents float64
}

// PositionKey returns the map key for a (ticker, side) pair.
func PositionKey(ticker, side string) string {
	return ticker + ":" + side
}

// CostBasisUSD returns the dollars paid for this position.
func (p PaperPosition) CostBasisUSD() float64 {
	return float64(p.Contracts) * p.AvgPriceCents / 100
}

// PaperBook is the simulated account state. Cash only ever decreases on
// Execute — the broker never replenishes it there; settlement credits are
// a separate, explicit operation.
type PaperBook struct {
	Cash        float64
	Positions   map[string]PaperPosition // PositionKey -> position
	RealizedPnl float64
	UpdatedAt   time.Time
}

// NewPaperBook returns a fresh book with the given starting cash.
func NewPaperBook(startingCash float64) PaperBook {
	return PaperBook{
		Cash:      startingCash,
		Positions: make(map[string]PaperPosition),
	}
}

// Execution statuses.
const (
	ExecFilled  = "FILLED"
	ExecSettled = "SETTLED"
	ExecSkipped = "SKIPPED"
)

// ExecutionReport describes what the paper broker did with one approved
// decision.
type ExecutionReport struct {
	Status          string
	Reason          string // set on SKIPPED
	Ticker          string
	Side            string
	Contracts       int
	EntryPriceCents int
	NotionalUSD     float64
	CashBefore      float64
	CashAfter       float64
	Note            string // e.g. scaled_down:insufficient_cash

	// Settlement fields, set only when Status is SETTLED.
	Won       bool
	PayoutUSD float64
	PnlUSD    float64
}

// TradeLogRow is one immutable row of the broker's append-only trade log.
type TradeLogRow struct {
	At          time.Time
	Ticker      string
	Side        string
	Action      Action
	PriceCents  int
	Contracts   int
	NotionalUSD float64
	CashAfter   float64
	Note        string
}

// EquitySnapshot is one row of the append-only equity log, written after
// every execution.
type EquitySnapshot struct {
	At            time.Time
	Cash          float64
	UnrealizedPnl float64
	RealizedPnl   float64
	Equity        float64
	PositionCount int
}

// BacktestSummary aggregates one full replay run.
type BacktestSummary struct {
	Bankroll    float64
	FinalCash   float64
	TotalPnl    float64
	ROI         float64
	NTrades     int
	NWins       int
	WinRate     float64
	MaxDrawdown float64
}
