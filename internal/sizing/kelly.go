// Package sizing converts a win-rate estimate into a bounded stake
// fraction using the Kelly criterion for binary payoffs, plus the
// confidence label derived from edge magnitude and sample size.
package sizing

import "github.com/alejandrodnm/kalshibot/internal/domain"

// Confidence labels.
const (
	ConfidenceHigh   = "HIGH"
	ConfidenceMedium = "MEDIUM"
	ConfidenceLow    = "LOW"
)

// Config holds the sizing thresholds. All values are domain-calibrated
// configuration, not constants: real prediction-market edges are small.
type Config struct {
	KellyCap         float64 // hard cap on the stake fraction, e.g. 0.15
	ConfidenceHigh   float64 // edge for a HIGH label, e.g. 0.02
	ConfidenceMedium float64 // edge for a MEDIUM label, e.g. 0.008
	MinSample        int     // below this, confidence is always LOW
}

// Sizer computes Kelly fractions and confidence labels.
type Sizer struct {
	cfg Config
}

// New creates a Sizer.
func New(cfg Config) *Sizer {
	return &Sizer{cfg: cfg}
}

// Kelly returns the capped Kelly fraction in [0, cap] for a binary
// contract. For BET_NO the entry costs (100-price) cents and pays out
// price cents on a win; BET_YES is the mirror. With net odds
// b = payout/entry, the optimal fraction is f* = p - (1-p)/b.
//
// Sizing never fails: a nil win rate, an out-of-range price, a non-bet
// action, or a non-positive p all size to zero.
func (s *Sizer) Kelly(actualWinRate *float64, yesPrice int, action domain.Action) float64 {
	if actualWinRate == nil || !action.IsBet() {
		return 0
	}
	if yesPrice < 1 || yesPrice > 99 {
		return 0
	}

	p := *actualWinRate
	if p <= 0 {
		return 0
	}

	entry := float64(action.EntryCents(yesPrice))
	payout := float64(action.PayoutCents(yesPrice))
	if entry <= 0 || payout <= 0 {
		return 0
	}

	b := payout / entry
	f := p - (1-p)/b

	if f < 0 {
		return 0
	}
	if f > s.cfg.KellyCap {
		return s.cfg.KellyCap
	}
	return f
}

// Confidence labels the edge independently of the Kelly fraction.
func (s *Sizer) Confidence(edge float64, sampleSize int) string {
	if sampleSize < s.cfg.MinSample {
		return ConfidenceLow
	}
	if edge >= s.cfg.ConfidenceHigh {
		return ConfidenceHigh
	}
	if edge >= s.cfg.ConfidenceMedium {
		return ConfidenceMedium
	}
	return ConfidenceLow
}
