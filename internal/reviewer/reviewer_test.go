package reviewer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/ports"
)

type fakeStore struct {
	vol    domain.VolumeStats
	volErr error
}

func (f *fakeStore) PriceBucket(context.Context, int, domain.Action) (domain.PriceBucketStats, error) {
	return domain.PriceBucketStats{}, nil
}

func (f *fakeStore) LongshotBias(context.Context, int) (domain.LongshotStats, error) {
	return domain.LongshotStats{}, nil
}

func (f *fakeStore) TakerWinRate(context.Context, int) (domain.TakerStats, error) {
	return domain.TakerStats{}, nil
}

func (f *fakeStore) VolumeStats(context.Context, string) (domain.VolumeStats, error) {
	return f.vol, f.volErr
}

func (f *fakeStore) ResolvedSignals(context.Context, int) ([]domain.HistoricalSignal, error) {
	return nil, nil
}

func proposal(winRate float64, sample int, kelly float64) domain.TradeProposal {
	gap := winRate - 0.86
	return domain.TradeProposal{
		Signal: domain.Signal{
			Ticker:   "KXNBAGAME-26FEB19BKNCLE-BKN",
			GameKey:  "26FEB19BKNCLE",
			Action:   domain.BetNo,
			YesPrice: 14,
		},
		Report: domain.EdgeReport{
			ActualWinRate:  &winRate,
			CalibrationGap: &gap,
			ImpliedProb:    0.86,
			SampleSize:     sample,
			Verdict:        domain.EdgeConfirmed,
		},
		Kelly:      kelly,
		Confidence: "HIGH",
	}
}

func newRule(store ports.EdgeStore) *Rule {
	return NewRule(RuleConfig{KellyCap: 0.15, EdgeHigh: 0.02}, store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRuleApproves(t *testing.T) {
	r := newRule(&fakeStore{vol: domain.VolumeStats{Volume: 5000, OpenInterest: 2000}})

	review, err := r.Review(context.Background(), proposal(0.94, 7850, 0.057), ports.PortfolioContext{})
	require.NoError(t, err)

	assert.Equal(t, DecisionApprove, review.Decision)
	assert.Equal(t, 3, review.RiskScore, "gap above the high bar scores 3")
}

func TestRuleApprovesModestGapAtFive(t *testing.T) {
	r := newRule(&fakeStore{vol: domain.VolumeStats{Volume: 5000, OpenInterest: 2000}})

	review, err := r.Review(context.Background(), proposal(0.87, 500, 0.01), ports.PortfolioContext{})
	require.NoError(t, err)

	assert.Equal(t, DecisionApprove, review.Decision)
	assert.Equal(t, 5, review.RiskScore)
}

func TestRuleVetoesPerfectWinRate(t *testing.T) {
	// A 100% win rate over thousands of samples is a data problem.
	r := newRule(&fakeStore{vol: domain.VolumeStats{Volume: 5000, OpenInterest: 2000}})

	review, err := r.Review(context.Background(), proposal(1.0, 7850, 0.057), ports.PortfolioContext{})
	require.NoError(t, err)

	assert.Equal(t, DecisionVeto, review.Decision)
	assert.Contains(t, review.VetoReason, "contamination")
	assert.Equal(t, 9, review.RiskScore)
}

func TestRuleVetoesThinSample(t *testing.T) {
	r := newRule(&fakeStore{})

	review, err := r.Review(context.Background(), proposal(0.94, 40, 0.057), ports.PortfolioContext{})
	require.NoError(t, err)

	assert.Equal(t, DecisionVeto, review.Decision)
	assert.Contains(t, review.VetoReason, "below minimum")
}

func TestRuleVetoesKellyBreach(t *testing.T) {
	r := newRule(&fakeStore{})

	review, err := r.Review(context.Background(), proposal(0.94, 500, 0.22), ports.PortfolioContext{})
	require.NoError(t, err)

	assert.Equal(t, DecisionVeto, review.Decision)
	assert.Contains(t, review.VetoReason, "exceeds cap")
}

func TestRuleVetoesIlliquidMarket(t *testing.T) {
	r := newRule(&fakeStore{vol: domain.VolumeStats{Volume: 900, OpenInterest: 120}})

	review, err := r.Review(context.Background(), proposal(0.94, 500, 0.05), ports.PortfolioContext{})
	require.NoError(t, err)

	assert.Equal(t, DecisionVeto, review.Decision)
	assert.Contains(t, review.VetoReason, "illiquid")
}

func TestRuleSkipsLiquidityCheckForUnknownTicker(t *testing.T) {
	// All-zero volume stats mean the ticker is absent from the store,
	// not that the market is empty.
	r := newRule(&fakeStore{vol: domain.VolumeStats{}})

	review, err := r.Review(context.Background(), proposal(0.94, 500, 0.05), ports.PortfolioContext{})
	require.NoError(t, err)

	assert.Equal(t, DecisionApprove, review.Decision)
}

func TestRulePropagatesStoreError(t *testing.T) {
	r := newRule(&fakeStore{volErr: errors.New("db locked")})

	_, err := r.Review(context.Background(), proposal(0.94, 500, 0.05), ports.PortfolioContext{})
	require.Error(t, err)
}

type errReviewer struct{ err error }

func (e *errReviewer) Review(context.Context, domain.TradeProposal, ports.PortfolioContext) (domain.Review, error) {
	return domain.Review{}, e.err
}

func TestFailSafeConvertsErrorToVeto(t *testing.T) {
	fs := NewFailSafe(&errReviewer{err: errors.New("timeout")}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	review, err := fs.Review(context.Background(), proposal(0.94, 500, 0.05), ports.PortfolioContext{})
	require.NoError(t, err)

	assert.Equal(t, DecisionVeto, review.Decision)
	assert.Equal(t, 10, review.RiskScore)
	assert.Contains(t, review.VetoReason, "timeout")
}

func TestFailSafePassesThroughApproval(t *testing.T) {
	fs := NewFailSafe(newRule(&fakeStore{vol: domain.VolumeStats{Volume: 5000, OpenInterest: 2000}}), slog.New(slog.NewTextHandler(io.Discard, nil)))

	review, err := fs.Review(context.Background(), proposal(0.94, 500, 0.05), ports.PortfolioContext{})
	require.NoError(t, err)
	assert.Equal(t, DecisionApprove, review.Decision)
}

func TestRemoteReviewRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{
			"decision": "VETO",
			"veto_reason": "correlated exposure",
			"concerns": ["two legs on one game"],
			"risk_score": 8,
			"summary": "VETO: correlated exposure"
		}`))
	}))
	defer srv.Close()

	remote := NewRemote(srv.URL, 2*time.Second)
	review, err := remote.Review(context.Background(), proposal(0.94, 500, 0.05), ports.PortfolioContext{
		SameGameExposureUSD: 12,
		CashUSD:             988,
	})
	require.NoError(t, err)

	assert.Equal(t, DecisionVeto, review.Decision)
	assert.Equal(t, 8, review.RiskScore)
	assert.Equal(t, []string{"two legs on one game"}, review.Concerns)
}

func TestRemoteReviewRejectsMalformedRuling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"decision": "MAYBE", "risk_score": 4}`))
	}))
	defer srv.Close()

	_, err := NewRemote(srv.URL, 2*time.Second).Review(
		context.Background(), proposal(0.94, 500, 0.05), ports.PortfolioContext{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown decision")
}

func TestRemoteReviewErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewRemote(srv.URL, 2*time.Second).Review(
		context.Background(), proposal(0.94, 500, 0.05), ports.PortfolioContext{})
	require.Error(t, err)
}
