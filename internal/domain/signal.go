package domain

import "time"

// Action is the intended direction of a trade.
type Action string

const (
	BetYes Action = "BET_YES"
	BetNo  Action = "BET_NO"
)

// IsBet reports whether the action is an actual bet.
func (a Action) IsBet() bool {
	return a == BetYes || a == BetNo
}

// Side returns the Kalshi contract side held for this action.
func (a Action) Side() string {
	if a == BetNo {
		return "no"
	}
	return "yes"
}

// Opposite returns the mirrored action, used for inverse-bucket queries.
func (a Action) Opposite() Action {
	if a == BetNo {
		return BetYes
	}
	return BetNo
}

// EntryCents returns the cost per contract in cents for this action
// at a given yes price.
func (a Action) EntryCents(yesPrice int) int {
	if a == BetNo {
		return 100 - yesPrice
	}
	return yesPrice
}

// PayoutCents returns the profit per contract in cents if the bet wins.
func (a Action) PayoutCents(yesPrice int) int {
	return 100 - a.EntryCents(yesPrice)
}

// ImpliedProb returns the probability the market price assigns to this
// action's side winning. Prices are cent integers in [1, 99].
func ImpliedProb(yesPrice int, action Action) float64 {
	if action == BetNo {
		return float64(100-yesPrice) / 100
	}
	return float64(yesPrice) / 100
}

// Signal is one incoming market price observation, enriched at ingestion
// by the bouncer. GameKey is computed exactly once here (see ticker.go)
// and never re-parsed downstream.
type Signal struct {
	ID         string
	Ticker     string
	GameKey    string
	MarketType MarketType
	YesPrice   int
	Action     Action
	Reason     string
	Title      string

	// Live market details. LiveDetails is false when the REST lookup was
	// unavailable (offline / no creds); OpenInterest and Volume24h are
	// then meaningless and must not be used for filtering.
	LiveDetails  bool
	OpenInterest int
	Volume24h    int

	ReceivedAt time.Time
}

// HistoricalSignal is one already-resolved market row used by the backtest.
type HistoricalSignal struct {
	Ticker    string
	LastPrice int
	Result    string // "yes" | "no"
}
