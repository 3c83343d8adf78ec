package sizing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

func newSizer() *Sizer {
	return New(Config{
		KellyCap:         0.15,
		ConfidenceHigh:   0.02,
		ConfidenceMedium: 0.008,
		MinSample:        200,
	})
}

func f(v float64) *float64 { return &v }

func TestKellyBetNo(t *testing.T) {
	s := newSizer()

	// BET_NO at 14c: entry 86c, payout 14c, b = 14/86. With p = 0.875,
	// f* = 0.875 - 0.125/(14/86) ~ 0.107, inside the cap.
	got := s.Kelly(f(0.875), 14, domain.BetNo)
	assert.InDelta(t, 0.875-0.125/(14.0/86.0), got, 1e-9)
}

func TestKellyCapped(t *testing.T) {
	s := newSizer()

	// Near-certain win on a cheap contract blows past the cap.
	got := s.Kelly(f(0.99), 80, domain.BetYes)
	assert.Equal(t, 0.15, got)
}

func TestKellyNegativeEdgeIsZero(t *testing.T) {
	s := newSizer()

	// p well below implied: raw Kelly is negative, clamps to zero.
	assert.Zero(t, s.Kelly(f(0.50), 80, domain.BetYes))
}

func TestKellyDegenerateInputs(t *testing.T) {
	s := newSizer()

	assert.Zero(t, s.Kelly(nil, 14, domain.BetNo))
	assert.Zero(t, s.Kelly(f(0.9), 0, domain.BetNo))
	assert.Zero(t, s.Kelly(f(0.9), 100, domain.BetNo))
	assert.Zero(t, s.Kelly(f(0.9), 14, domain.Action("SKIP")))
	assert.Zero(t, s.Kelly(f(0), 14, domain.BetNo))
}

func TestConfidence(t *testing.T) {
	s := newSizer()

	assert.Equal(t, ConfidenceLow, s.Confidence(0.05, 150), "thin sample is always LOW")
	assert.Equal(t, ConfidenceHigh, s.Confidence(0.02, 500))
	assert.Equal(t, ConfidenceMedium, s.Confidence(0.01, 500))
	assert.Equal(t, ConfidenceLow, s.Confidence(0.003, 500))
}
