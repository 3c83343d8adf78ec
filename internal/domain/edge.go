package domain

// DataQuality flags whether a price bucket held enough history to trust.
type DataQuality string

const (
	QualitySufficient   DataQuality = "SUFFICIENT"
	QualityInsufficient DataQuality = "INSUFFICIENT"
)

// Verdict is the analyzer's discrete conclusion for one signal.
type Verdict string

const (
	EdgeConfirmed    Verdict = "EDGE_CONFIRMED"
	EdgeWeak         Verdict = "EDGE_WEAK"
	NoEdge           Verdict = "NO_EDGE"
	InsufficientData Verdict = "INSUFFICIENT_DATA"
)

// PriceBucketStats is the immutable result of one price-bucket query:
// every historically resolved outcome at one exact price, aggregated
// across all tickers. Nil pointers mean the bucket was empty.
type PriceBucketStats struct {
	ActualWinRate *float64
	ImpliedProb   float64
	Edge          *float64
	SampleSize    int
}

// LongshotStats measures how often NO won across all trades at or below
// a price ceiling — the core longshot-bias metric.
type LongshotStats struct {
	NoWinRate  *float64
	AvgPrice   float64
	SampleSize int
}

// TakerStats is the taker win rate at one exact price.
type TakerStats struct {
	WinRate    *float64
	SampleSize int
}

// VolumeStats carries liquidity figures for one ticker.
type VolumeStats struct {
	Volume       int
	Volume24h    int
	OpenInterest int
	LastPrice    int
}

// GameContext is the live game status for a matchup, when available.
type GameContext struct {
	HomeAbbr   string
	AwayAbbr   string
	HomeName   string
	AwayName   string
	Status     string // e.g. STATUS_SCHEDULED, STATUS_IN_PROGRESS, STATUS_FINAL
	HomeScore  *int
	AwayScore  *int
	WinnerAbbr string // set only on STATUS_FINAL
	GameDate   string // YYYYMMDD
}

// EdgeReport is the analyzer's full output for one signal. Created fresh
// per signal, never mutated, consumed immediately by the orchestrator.
type EdgeReport struct {
	CalibrationGap *float64
	ActualWinRate  *float64
	ImpliedProb    float64
	SampleSize     int
	DataQuality    DataQuality
	Verdict        Verdict
	Summary        string

	// ErrorNote is set when the historical query itself failed; the
	// verdict is then INSUFFICIENT_DATA rather than an error.
	ErrorNote string

	// InverseBucket is the mirrored (100-price, opposite action) bucket,
	// a diagnostic for YES/NO asymmetry. The two win rates need not sum
	// to 1 — they come from independently queried populations.
	InverseBucket  PriceBucketStats
	YesNoAsymmetry *float64

	LongshotBias *LongshotStats
	TakerRate    *TakerStats

	// DepthAtPrice is tri-state: nil = order book unknown (offline),
	// 0 = book seen and our price level is empty, N = contracts available.
	DepthAtPrice *int

	// GameContext is nil whenever the live lookup failed or timed out.
	GameContext *GameContext
}

// Gap returns the calibration gap, or 0 when unknown.
func (r EdgeReport) Gap() float64 {
	if r.CalibrationGap == nil {
		return 0
	}
	return *r.CalibrationGap
}
