package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/kalshibot/internal/adapters/storage"
	"github.com/alejandrodnm/kalshibot/internal/analyzer"
	"github.com/alejandrodnm/kalshibot/internal/broker"
	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/ledger"
	"github.com/alejandrodnm/kalshibot/internal/ports"
	"github.com/alejandrodnm/kalshibot/internal/reviewer"
	"github.com/alejandrodnm/kalshibot/internal/risk"
	"github.com/alejandrodnm/kalshibot/internal/sizing"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeEdgeStore returns the same bucket for every price: a deep,
// confirmed edge unless overridden.
type fakeEdgeStore struct {
	winRate float64
	sample  int
}

func (f *fakeEdgeStore) PriceBucket(_ context.Context, yesPrice int, action domain.Action) (domain.PriceBucketStats, error) {
	implied := domain.ImpliedProb(yesPrice, action)
	wr := f.winRate
	edge := wr - implied
	return domain.PriceBucketStats{
		ActualWinRate: &wr,
		ImpliedProb:   implied,
		Edge:          &edge,
		SampleSize:    f.sample,
	}, nil
}

func (f *fakeEdgeStore) LongshotBias(context.Context, int) (domain.LongshotStats, error) {
	return domain.LongshotStats{}, nil
}

func (f *fakeEdgeStore) TakerWinRate(context.Context, int) (domain.TakerStats, error) {
	return domain.TakerStats{}, nil
}

func (f *fakeEdgeStore) VolumeStats(context.Context, string) (domain.VolumeStats, error) {
	return domain.VolumeStats{}, nil
}

func (f *fakeEdgeStore) ResolvedSignals(context.Context, int) ([]domain.HistoricalSignal, error) {
	return nil, nil
}

type fakeMarket struct {
	details *ports.MarketDetails
	book    *domain.Orderbook
}

func (f *fakeMarket) GetMarket(context.Context, string) (*ports.MarketDetails, error) {
	return f.details, nil
}

func (f *fakeMarket) GetOrderbook(context.Context, string) (*domain.Orderbook, error) {
	return f.book, nil
}

type testRig struct {
	orch   *Orchestrator
	ledger *ledger.Ledger
	broker *broker.Paper
}

func newRig(t *testing.T, edgeStore ports.EdgeStore, market ports.MarketData) *testRig {
	t.Helper()
	db, err := storage.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	an := analyzer.New(analyzer.Config{
		EdgeHigh:        0.015,
		EdgeLow:         0.0075,
		LongshotCeiling: 20,
		EnrichTimeout:   time.Second,
	}, edgeStore, market, nil, discard)

	sz := sizing.New(sizing.Config{
		KellyCap:         0.15,
		ConfidenceHigh:   0.02,
		ConfidenceMedium: 0.008,
		MinSample:        200,
	})

	gate := risk.New(risk.Config{SameGameCapUSD: 15})

	rev := reviewer.NewFailSafe(
		reviewer.NewRule(reviewer.RuleConfig{KellyCap: 0.15, EdgeHigh: 0.02}, edgeStore, discard),
		discard)

	led := ledger.New(db, discard)
	brk := broker.New(broker.Config{StartingCash: 1000, MaxContracts: 20, RiskCap: 0.02}, db, discard)

	orch := NewOrchestrator(OrchestratorConfig{
		MinSample:    200,
		StakeUSD:     10,
		RecordTrades: true,
	}, an, sz, gate, rev, led, brk, nil, discard)

	return &testRig{orch: orch, ledger: led, broker: brk}
}

func signal(ticker string, yesPrice int, action domain.Action) domain.Signal {
	return domain.Signal{
		ID:         "test",
		Ticker:     ticker,
		GameKey:    domain.GameKey(ticker),
		MarketType: domain.ClassifyTicker(ticker),
		YesPrice:   yesPrice,
		Action:     action,
	}
}

func TestProcessApprovedOpensLedger(t *testing.T) {
	rig := newRig(t, &fakeEdgeStore{winRate: 0.94, sample: 7850}, nil)
	ctx := context.Background()

	d, err := rig.orch.Process(ctx, signal("KXNBAGAME-26FEB19BKNCLE-BKN", 14, domain.BetNo))
	require.NoError(t, err)
	require.Equal(t, domain.StatusApproved, d.Status)

	positions, err := rig.ledger.OpenPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "26FEB19BKNCLE", positions[0].GameKey)
	assert.Equal(t, domain.BetNo, positions[0].Action)

	cash, err := rig.broker.Cash(ctx)
	require.NoError(t, err)
	assert.Less(t, cash, 1000.0, "the paper fill must deduct cash")
}

func TestProcessPassesOnThinSample(t *testing.T) {
	rig := newRig(t, &fakeEdgeStore{winRate: 0.94, sample: 120}, nil)

	d, err := rig.orch.Process(context.Background(), signal("KXNBAGAME-26FEB19BKNCLE-BKN", 14, domain.BetNo))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPassed, d.Status)
	assert.Contains(t, d.Reason, "sample size")
}

func TestProcessPassesOnNoEdge(t *testing.T) {
	// Win rate exactly at implied: gap is zero.
	rig := newRig(t, &fakeEdgeStore{winRate: 0.86, sample: 5000}, nil)

	d, err := rig.orch.Process(context.Background(), signal("KXNBAGAME-26FEB19BKNCLE-BKN", 14, domain.BetNo))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPassed, d.Status)
}

func TestDuplicateDirectionVeto(t *testing.T) {
	rig := newRig(t, &fakeEdgeStore{winRate: 0.94, sample: 7850}, nil)
	ctx := context.Background()

	_, err := rig.orch.Process(ctx, signal("KXNBAGAME-26FEB19BKNCLE-BKN", 14, domain.BetNo))
	require.NoError(t, err)

	// Second NO signal on the same game, different ticker.
	d, err := rig.orch.Process(ctx, signal("KXNBAGAME-26FEB19BKNCLE-CLE", 16, domain.BetNo))
	require.NoError(t, err)

	require.Equal(t, domain.StatusVetoed, d.Status)
	require.NotNil(t, d.GateVeto)
	assert.Equal(t, risk.RuleDuplicateDirection, d.GateVeto.Rule)
}

// slowOpener stretches the ledger insert so two in-flight evaluations
// on one game are forced to overlap.
type slowOpener struct {
	*ledger.Ledger
	delay time.Duration
}

func (s *slowOpener) Open(ctx context.Context, d domain.Decision, stakeUSD float64) (domain.LedgerEntry, error) {
	time.Sleep(s.delay)
	return s.Ledger.Open(ctx, d, stakeUSD)
}

func TestConcurrentSameGameSignalsSerialize(t *testing.T) {
	db, err := storage.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	edgeStore := &fakeEdgeStore{winRate: 0.94, sample: 7850}
	an := analyzer.New(analyzer.Config{
		EdgeHigh:        0.015,
		EdgeLow:         0.0075,
		LongshotCeiling: 20,
		EnrichTimeout:   time.Second,
	}, edgeStore, nil, nil, discard)
	sz := sizing.New(sizing.Config{
		KellyCap:         0.15,
		ConfidenceHigh:   0.02,
		ConfidenceMedium: 0.008,
		MinSample:        200,
	})
	gate := risk.New(risk.Config{SameGameCapUSD: 15})
	rev := reviewer.NewFailSafe(
		reviewer.NewRule(reviewer.RuleConfig{KellyCap: 0.15, EdgeHigh: 0.02}, edgeStore, discard),
		discard)

	led := &slowOpener{Ledger: ledger.New(db, discard), delay: 150 * time.Millisecond}
	orch := NewOrchestrator(OrchestratorConfig{
		MinSample:    200,
		StakeUSD:     10,
		RecordTrades: true,
	}, an, sz, gate, rev, led, nil, nil, discard)

	ctx := context.Background()
	sigs := []domain.Signal{
		signal("KXNBAGAME-26FEB19BKNCLE-BKN", 14, domain.BetNo),
		signal("KXNBAGAME-26FEB19BKNCLE-CLE", 16, domain.BetNo),
	}

	decisions := make([]domain.Decision, len(sigs))
	var wg sync.WaitGroup
	for i := range sigs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := orch.Process(ctx, sigs[i])
			require.NoError(t, err)
			decisions[i] = d
		}(i)
	}
	wg.Wait()

	// Whichever signal wins the game lock must be the only approval; the
	// other must see its row and hit the duplicate-direction rule even
	// though both cleared the gate check window concurrently.
	var approved, vetoed int
	for _, d := range decisions {
		switch d.Status {
		case domain.StatusApproved:
			approved++
		case domain.StatusVetoed:
			vetoed++
			require.NotNil(t, d.GateVeto)
			assert.Equal(t, risk.RuleDuplicateDirection, d.GateVeto.Rule)
		}
	}
	assert.Equal(t, 1, approved)
	assert.Equal(t, 1, vetoed)

	positions, err := led.OpenPositions(ctx)
	require.NoError(t, err)
	assert.Len(t, positions, 1)
}

func TestOpposingPositionVetoTakesPriority(t *testing.T) {
	rig := newRig(t, &fakeEdgeStore{winRate: 0.94, sample: 7850}, nil)
	ctx := context.Background()

	_, err := rig.orch.Process(ctx, signal("KXNBAGAME-26FEB19BKNCLE-BKN", 14, domain.BetNo))
	require.NoError(t, err)

	// Opposite direction on the same game: the opposing rule must win
	// even though the duplicate and cap rules could also be argued.
	d, err := rig.orch.Process(ctx, signal("KXNBAGAME-26FEB19BKNCLE-CLE", 85, domain.BetYes))
	require.NoError(t, err)

	require.Equal(t, domain.StatusVetoed, d.Status)
	require.NotNil(t, d.GateVeto)
	assert.Equal(t, risk.RuleOpposingPosition, d.GateVeto.Rule)
}

func TestDifferentGamesDoNotInterfere(t *testing.T) {
	rig := newRig(t, &fakeEdgeStore{winRate: 0.94, sample: 7850}, nil)
	ctx := context.Background()

	d1, err := rig.orch.Process(ctx, signal("KXNBAGAME-26FEB19BKNCLE-BKN", 14, domain.BetNo))
	require.NoError(t, err)
	d2, err := rig.orch.Process(ctx, signal("KXNBAGAME-26FEB20LALGSW-LAL", 14, domain.BetNo))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusApproved, d1.Status)
	assert.Equal(t, domain.StatusApproved, d2.Status)
}

func TestZeroDepthVeto(t *testing.T) {
	market := &fakeMarket{book: &domain.Orderbook{
		No: []domain.BookLevel{{PriceCents: 80, Contracts: 10}},
	}}
	rig := newRig(t, &fakeEdgeStore{winRate: 0.94, sample: 7850}, market)

	d, err := rig.orch.Process(context.Background(), signal("KXNBAGAME-26FEB19BKNCLE-BKN", 14, domain.BetNo))
	require.NoError(t, err)

	require.Equal(t, domain.StatusVetoed, d.Status)
	require.NotNil(t, d.GateVeto)
	assert.Equal(t, risk.RuleZeroDepth, d.GateVeto.Rule)
}

func TestUnknownDepthPasses(t *testing.T) {
	// No market data at all: depth is unknown, which must not veto.
	rig := newRig(t, &fakeEdgeStore{winRate: 0.94, sample: 7850}, nil)

	d, err := rig.orch.Process(context.Background(), signal("KXNBAGAME-26FEB19BKNCLE-BKN", 14, domain.BetNo))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, d.Status)
}

func TestPerfectWinRateIsVetoedByReview(t *testing.T) {
	rig := newRig(t, &fakeEdgeStore{winRate: 1.0, sample: 7850}, nil)

	d, err := rig.orch.Process(context.Background(), signal("KXNBAGAME-26FEB19BKNCLE-BKN", 14, domain.BetNo))
	require.NoError(t, err)

	require.Equal(t, domain.StatusVetoed, d.Status)
	require.NotNil(t, d.Review)
	assert.Contains(t, d.Review.VetoReason, "contamination")
}

func TestBouncerFadesBothLongshotSides(t *testing.T) {
	b := NewBouncer(BouncerConfig{LongshotCeiling: 20, LongshotFloor: 80, MinOpenInterest: 100}, nil, discard)
	ctx := context.Background()

	sig := b.Process(ctx, "KXNBAGAME-26FEB19BKNCLE-BKN", 14)
	require.NotNil(t, sig)
	assert.Equal(t, domain.BetNo, sig.Action)
	assert.Equal(t, "26FEB19BKNCLE", sig.GameKey)
	assert.NotEmpty(t, sig.ID)
	assert.False(t, sig.LiveDetails)

	sig = b.Process(ctx, "KXNBAGAME-26FEB19BKNCLE-BKN", 87)
	require.NotNil(t, sig)
	assert.Equal(t, domain.BetYes, sig.Action)
}

func TestBouncerSkipsMidPrices(t *testing.T) {
	b := NewBouncer(BouncerConfig{LongshotCeiling: 20, LongshotFloor: 80}, nil, discard)

	assert.Nil(t, b.Process(context.Background(), "KXNBAGAME-26FEB19BKNCLE-BKN", 50))
	assert.Nil(t, b.Process(context.Background(), "KXNBAGAME-26FEB19BKNCLE-BKN", 21))
	assert.Nil(t, b.Process(context.Background(), "KXNBAGAME-26FEB19BKNCLE-BKN", 79))
}

func TestBouncerSkipsNonNBA(t *testing.T) {
	b := NewBouncer(BouncerConfig{LongshotCeiling: 20, LongshotFloor: 80}, nil, discard)

	assert.Nil(t, b.Process(context.Background(), "KXNFLGAME-26FEB19-BUF", 14))
}

func TestBouncerRejectsInvalidPrices(t *testing.T) {
	b := NewBouncer(BouncerConfig{LongshotCeiling: 20, LongshotFloor: 80}, nil, discard)

	assert.Nil(t, b.Process(context.Background(), "KXNBAGAME-26FEB19BKNCLE-BKN", 0))
	assert.Nil(t, b.Process(context.Background(), "KXNBAGAME-26FEB19BKNCLE-BKN", 100))
	assert.Nil(t, b.Process(context.Background(), "", 14))
}

func TestBouncerEnforcesOpenInterestWhenLive(t *testing.T) {
	market := &fakeMarket{details: &ports.MarketDetails{
		Title:        "Nets at Cavaliers winner",
		OpenInterest: 40,
		Volume24h:    10,
	}}
	b := NewBouncer(BouncerConfig{LongshotCeiling: 20, LongshotFloor: 80, MinOpenInterest: 100}, market, discard)

	assert.Nil(t, b.Process(context.Background(), "KXNBAGAME-26FEB19BKNCLE-BKN", 14))

	market.details.OpenInterest = 250
	sig := b.Process(context.Background(), "KXNBAGAME-26FEB19BKNCLE-BKN", 14)
	require.NotNil(t, sig)
	assert.True(t, sig.LiveDetails)
	assert.Equal(t, 250, sig.OpenInterest)
	assert.Equal(t, "Nets at Cavaliers winner", sig.Title)
}

func TestRouterDispatch(t *testing.T) {
	b := NewBouncer(BouncerConfig{LongshotCeiling: 20, LongshotFloor: 80}, nil, discard)
	r := NewRouter(b, discard)
	ctx := context.Background()

	mt, sig := r.Route(ctx, "KXNBAGAME-26FEB19BKNCLE-BKN", 14)
	assert.Equal(t, domain.GameWinner, mt)
	assert.NotNil(t, sig)

	mt, sig = r.Route(ctx, "KXNBAWINS-26BOS-50", 14)
	assert.Equal(t, domain.Totals, mt)
	assert.Nil(t, sig)

	mt, sig = r.Route(ctx, "KXNBASGPROP-26FEB19-LBJ-PTS30", 14)
	assert.Equal(t, domain.PlayerProp, mt)
	assert.Nil(t, sig)

	mt, sig = r.Route(ctx, "KXPRES-28-DEM", 14)
	assert.Equal(t, domain.NonNBA, mt)
	assert.Nil(t, sig)
}
