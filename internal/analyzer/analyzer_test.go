package analyzer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/ports"
)

type fakeStore struct {
	buckets  map[int]domain.PriceBucketStats // keyed by yes price
	bucketEr error
	longshot domain.LongshotStats
	taker    domain.TakerStats
}

func (f *fakeStore) PriceBucket(_ context.Context, yesPrice int, _ domain.Action) (domain.PriceBucketStats, error) {
	if f.bucketEr != nil {
		return domain.PriceBucketStats{}, f.bucketEr
	}
	return f.buckets[yesPrice], nil
}

func (f *fakeStore) LongshotBias(context.Context, int) (domain.LongshotStats, error) {
	return f.longshot, nil
}

func (f *fakeStore) TakerWinRate(context.Context, int) (domain.TakerStats, error) {
	return f.taker, nil
}

func (f *fakeStore) VolumeStats(context.Context, string) (domain.VolumeStats, error) {
	return domain.VolumeStats{}, nil
}

func (f *fakeStore) ResolvedSignals(context.Context, int) ([]domain.HistoricalSignal, error) {
	return nil, nil
}

type fakeMarket struct {
	book *domain.Orderbook
	err  error
}

func (f *fakeMarket) GetMarket(context.Context, string) (*ports.MarketDetails, error) {
	return nil, nil
}

func (f *fakeMarket) GetOrderbook(context.Context, string) (*domain.Orderbook, error) {
	return f.book, f.err
}

func bucket(winRate float64, yesPrice int, action domain.Action, n int) domain.PriceBucketStats {
	implied := domain.ImpliedProb(yesPrice, action)
	edge := winRate - implied
	return domain.PriceBucketStats{
		ActualWinRate: &winRate,
		ImpliedProb:   implied,
		Edge:          &edge,
		SampleSize:    n,
	}
}

func newAnalyzer(store ports.EdgeStore, market ports.MarketData) *EdgeAnalyzer {
	cfg := Config{
		EdgeHigh:        0.015,
		EdgeLow:         0.0075,
		LongshotCeiling: 20,
		EnrichTimeout:   time.Second,
	}
	return New(cfg, store, market, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func signalAt(yesPrice int, action domain.Action) domain.Signal {
	return domain.Signal{
		Ticker:     "KXNBAGAME-26FEB19BKNCLE-BKN",
		GameKey:    "26FEB19BKNCLE",
		MarketType: domain.GameWinner,
		YesPrice:   yesPrice,
		Action:     action,
	}
}

func TestAnalyzeConfirmedEdge(t *testing.T) {
	// NO contracts at yes price 14 cost 86c and won 94% of the time
	// historically: an 8-point calibration gap on a deep sample.
	store := &fakeStore{buckets: map[int]domain.PriceBucketStats{
		14: bucket(0.94, 14, domain.BetNo, 7850),
	}}

	report := newAnalyzer(store, nil).Analyze(context.Background(), signalAt(14, domain.BetNo))

	assert.Equal(t, domain.EdgeConfirmed, report.Verdict)
	assert.Equal(t, domain.QualitySufficient, report.DataQuality)
	assert.InDelta(t, 0.86, report.ImpliedProb, 1e-9)
	assert.InDelta(t, 0.08, report.Gap(), 1e-9)
	assert.Equal(t, 7850, report.SampleSize)
	assert.Empty(t, report.ErrorNote)
}

func TestAnalyzeWeakEdge(t *testing.T) {
	store := &fakeStore{buckets: map[int]domain.PriceBucketStats{
		40: bucket(0.41, 40, domain.BetYes, 150),
	}}

	report := newAnalyzer(store, nil).Analyze(context.Background(), signalAt(40, domain.BetYes))

	assert.Equal(t, domain.EdgeWeak, report.Verdict)
}

func TestAnalyzeHighGapSmallSampleIsWeak(t *testing.T) {
	// Gap clears the confirmed bar but the sample does not.
	store := &fakeStore{buckets: map[int]domain.PriceBucketStats{
		40: bucket(0.45, 40, domain.BetYes, 150),
	}}

	report := newAnalyzer(store, nil).Analyze(context.Background(), signalAt(40, domain.BetYes))

	assert.Equal(t, domain.EdgeWeak, report.Verdict)
}

func TestAnalyzeNoEdge(t *testing.T) {
	store := &fakeStore{buckets: map[int]domain.PriceBucketStats{
		40: bucket(0.402, 40, domain.BetYes, 5000),
	}}

	report := newAnalyzer(store, nil).Analyze(context.Background(), signalAt(40, domain.BetYes))

	assert.Equal(t, domain.NoEdge, report.Verdict)
}

func TestAnalyzeThinSample(t *testing.T) {
	store := &fakeStore{buckets: map[int]domain.PriceBucketStats{
		40: bucket(0.9, 40, domain.BetYes, 12),
	}}

	report := newAnalyzer(store, nil).Analyze(context.Background(), signalAt(40, domain.BetYes))

	assert.Equal(t, domain.InsufficientData, report.Verdict)
	assert.Equal(t, domain.QualityInsufficient, report.DataQuality)
}

func TestAnalyzeEmptyBucket(t *testing.T) {
	store := &fakeStore{buckets: map[int]domain.PriceBucketStats{}}

	report := newAnalyzer(store, nil).Analyze(context.Background(), signalAt(3, domain.BetYes))

	assert.Equal(t, domain.InsufficientData, report.Verdict)
	assert.Nil(t, report.ActualWinRate)
}

func TestAnalyzeQueryFailure(t *testing.T) {
	store := &fakeStore{bucketEr: errors.New("db locked")}

	report := newAnalyzer(store, nil).Analyze(context.Background(), signalAt(40, domain.BetYes))

	assert.Equal(t, domain.InsufficientData, report.Verdict)
	assert.Contains(t, report.ErrorNote, "db locked")
}

func TestAnalyzeDepthUnknownWithoutMarketData(t *testing.T) {
	store := &fakeStore{buckets: map[int]domain.PriceBucketStats{
		14: bucket(0.94, 14, domain.BetNo, 500),
	}}

	report := newAnalyzer(store, nil).Analyze(context.Background(), signalAt(14, domain.BetNo))

	assert.Nil(t, report.DepthAtPrice, "offline depth must stay unknown, not zero")
}

func TestAnalyzeDepthConfirmedZero(t *testing.T) {
	store := &fakeStore{buckets: map[int]domain.PriceBucketStats{
		14: bucket(0.94, 14, domain.BetNo, 500),
	}}
	// Book present, but nothing offered at our 86c NO level.
	market := &fakeMarket{book: &domain.Orderbook{
		No: []domain.BookLevel{{PriceCents: 85, Contracts: 40}},
	}}

	report := newAnalyzer(store, market).Analyze(context.Background(), signalAt(14, domain.BetNo))

	require.NotNil(t, report.DepthAtPrice)
	assert.Equal(t, 0, *report.DepthAtPrice)
}

func TestAnalyzeDepthAvailable(t *testing.T) {
	store := &fakeStore{buckets: map[int]domain.PriceBucketStats{
		14: bucket(0.94, 14, domain.BetNo, 500),
	}}
	market := &fakeMarket{book: &domain.Orderbook{
		No: []domain.BookLevel{{PriceCents: 86, Contracts: 230}},
	}}

	report := newAnalyzer(store, market).Analyze(context.Background(), signalAt(14, domain.BetNo))

	require.NotNil(t, report.DepthAtPrice)
	assert.Equal(t, 230, *report.DepthAtPrice)
}

func TestAnalyzeYesNoAsymmetry(t *testing.T) {
	store := &fakeStore{buckets: map[int]domain.PriceBucketStats{
		14: bucket(0.94, 14, domain.BetNo, 500),
		86: bucket(0.10, 86, domain.BetYes, 400),
	}}

	report := newAnalyzer(store, nil).Analyze(context.Background(), signalAt(14, domain.BetNo))

	// 0.94 on the primary side minus 0.10 on the mirror: NO bettors at
	// this price win far more often than the mirrored YES takers.
	require.NotNil(t, report.YesNoAsymmetry)
	assert.InDelta(t, 0.84, *report.YesNoAsymmetry, 1e-9)
	assert.Equal(t, 400, report.InverseBucket.SampleSize)
}
