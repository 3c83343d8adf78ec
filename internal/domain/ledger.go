package domain

import "time"

// LedgerStatus is the state of one ledger row. A row moves
// PENDING_RESOLUTION -> EVALUATED exactly once and never back.
type LedgerStatus string

const (
	PendingResolution LedgerStatus = "PENDING_RESOLUTION"
	Evaluated         LedgerStatus = "EVALUATED"
)

// LedgerEntry is the durable, authoritative record of an accepted trade.
// CostUSD is fixed at creation (contracts * entryCents / 100) and never
// recomputed.
type LedgerEntry struct {
	ID            int64
	LoggedAt      time.Time
	Ticker        string
	Title         string
	Action        Action
	Side          string // yes | no
	YesPriceCents int
	EntryCents    int
	Contracts     int
	CostUSD       float64

	// Snapshot of the sizing and edge analysis at open time.
	Kelly          float64
	Confidence     string
	CalibrationGap *float64
	SampleSize     int
	Verdict        string
	RiskScore      int
	Concerns       []string

	Status      LedgerStatus
	Result      string // yes | no, once resolved
	PayoutUSD   float64
	PnlUSD      float64
	EvaluatedAt *time.Time
}

// GameKey returns the correlation key for this entry's underlying event.
func (e LedgerEntry) GameKey() string {
	return GameKey(e.Ticker)
}

// OpenPosition is the portfolio view of one not-yet-settled ledger row,
// consumed by the risk gate for correlation checks.
type OpenPosition struct {
	Ticker  string
	GameKey string
	Action  Action
	CostUSD float64
}

// SettleResult is what a settlement produced for one row.
type SettleResult struct {
	TradeID   int64
	Won       bool
	PayoutUSD float64
	PnlUSD    float64
}

// LedgerSummary aggregates P&L over all EVALUATED rows.
type LedgerSummary struct {
	NTrades     int
	NWins       int
	TotalPnl    float64
	TotalStaked float64
	WinRate     float64
	ROI         float64
}
