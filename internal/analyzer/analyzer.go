// Package analyzer turns one market signal into an EdgeReport by
// comparing the market's implied probability against the historical win
// rate of its price bucket.
//
// The core question is never "what do we know about this ticker" — live
// tickers have no history — but "what happened, across all markets, to
// contracts priced at exactly this many cents".
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/ports"
)

// Sample floors for the verdict ladder.
const (
	minSampleWeak      = 100
	minSampleConfirmed = 200
)

// gameSearchDays bounds the scoreboard lookup window around today.
const gameSearchDays = 3

// Config holds the analyzer thresholds.
type Config struct {
	EdgeHigh        float64 // gap above which an edge is confirmed (sample >= 200)
	EdgeLow         float64 // gap above which an edge is weak but real (sample >= 100)
	LongshotCeiling int
	EnrichTimeout   time.Duration
}

// EdgeAnalyzer computes edge reports. The market and games dependencies
// are optional: a nil value (or an adapter running without credentials)
// degrades the report to unknown enrichment fields, never to an error.
type EdgeAnalyzer struct {
	cfg    Config
	store  ports.EdgeStore
	market ports.MarketData
	games  ports.GameFinder
	log    *slog.Logger
}

// New creates an EdgeAnalyzer. market and games may be nil.
func New(cfg Config, store ports.EdgeStore, market ports.MarketData, games ports.GameFinder, log *slog.Logger) *EdgeAnalyzer {
	return &EdgeAnalyzer{cfg: cfg, store: store, market: market, games: games, log: log}
}

// Analyze produces the full report for one signal. The primary bucket
// query is load-bearing: if it fails the verdict is INSUFFICIENT_DATA
// with an ErrorNote, never an error — an unanalyzable signal is a PASS
// downstream, not a crash. Enrichment lookups run concurrently, each
// under its own timeout, and degrade independently.
func (a *EdgeAnalyzer) Analyze(ctx context.Context, sig domain.Signal) domain.EdgeReport {
	report := domain.EdgeReport{
		ImpliedProb: domain.ImpliedProb(sig.YesPrice, sig.Action),
		DataQuality: domain.QualityInsufficient,
	}

	bucket, err := a.store.PriceBucket(ctx, sig.YesPrice, sig.Action)
	if err != nil {
		a.log.Error("price bucket query failed",
			"ticker", sig.Ticker, "yes_price", sig.YesPrice, "err", err)
		report.Verdict = domain.InsufficientData
		report.ErrorNote = err.Error()
		report.Summary = "historical query failed; no verdict possible"
		return report
	}

	report.ActualWinRate = bucket.ActualWinRate
	report.CalibrationGap = bucket.Edge
	report.SampleSize = bucket.SampleSize

	a.enrich(ctx, sig, &report)
	a.conclude(&report)

	a.log.Debug("signal analyzed",
		"ticker", sig.Ticker,
		"yes_price", sig.YesPrice,
		"action", sig.Action,
		"verdict", report.Verdict,
		"sample", report.SampleSize,
		"gap", report.Gap())
	return report
}

// enrich fans out the independent diagnostic lookups. Every branch
// tolerates failure: a missed lookup leaves its field nil.
func (a *EdgeAnalyzer) enrich(ctx context.Context, sig domain.Signal, report *domain.EdgeReport) {
	var wg sync.WaitGroup

	run := func(name string, fn func(ctx context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lctx, cancel := context.WithTimeout(ctx, a.cfg.EnrichTimeout)
			defer cancel()
			if err := fn(lctx); err != nil {
				a.log.Warn("enrichment lookup failed",
					"lookup", name, "ticker", sig.Ticker, "err", err)
			}
		}()
	}

	run("inverse_bucket", func(lctx context.Context) error {
		inv, err := a.store.PriceBucket(lctx, 100-sig.YesPrice, sig.Action.Opposite())
		if err != nil {
			return err
		}
		report.InverseBucket = inv
		return nil
	})

	run("longshot_bias", func(lctx context.Context) error {
		ls, err := a.store.LongshotBias(lctx, a.cfg.LongshotCeiling)
		if err != nil {
			return err
		}
		report.LongshotBias = &ls
		return nil
	})

	run("taker_rate", func(lctx context.Context) error {
		tk, err := a.store.TakerWinRate(lctx, sig.YesPrice)
		if err != nil {
			return err
		}
		report.TakerRate = &tk
		return nil
	})

	if a.market != nil {
		run("orderbook", func(lctx context.Context) error {
			book, err := a.market.GetOrderbook(lctx, sig.Ticker)
			if err != nil {
				return err
			}
			report.DepthAtPrice = domain.DepthAtPrice(book, sig.YesPrice, sig.Action)
			return nil
		})
	}

	if a.games != nil && sig.MarketType == domain.GameWinner {
		run("game_context", func(lctx context.Context) error {
			game, err := a.games.FindGame(lctx, sig.Ticker, gameSearchDays)
			if err != nil {
				return err
			}
			report.GameContext = game
			return nil
		})
	}

	wg.Wait()

	if report.ActualWinRate != nil && report.InverseBucket.ActualWinRate != nil {
		// Mirrored buckets share the implied probability, so the gap
		// difference between the two sides reduces to the raw win-rate
		// difference.
		asym := *report.ActualWinRate - *report.InverseBucket.ActualWinRate
		report.YesNoAsymmetry = &asym
	}
}

// conclude applies the verdict ladder over the primary bucket.
func (a *EdgeAnalyzer) conclude(report *domain.EdgeReport) {
	if report.ActualWinRate == nil || report.SampleSize < minSampleWeak {
		report.Verdict = domain.InsufficientData
		report.Summary = fmt.Sprintf(
			"only %d resolved outcomes at this price; need %d",
			report.SampleSize, minSampleWeak)
		return
	}

	report.DataQuality = domain.QualitySufficient
	gap := *report.CalibrationGap

	switch {
	case gap > a.cfg.EdgeHigh && report.SampleSize >= minSampleConfirmed:
		report.Verdict = domain.EdgeConfirmed
	case gap > a.cfg.EdgeLow:
		report.Verdict = domain.EdgeWeak
	default:
		report.Verdict = domain.NoEdge
	}

	report.Summary = fmt.Sprintf(
		"%s: win rate %.4f vs implied %.4f (gap %+.4f, n=%d)",
		report.Verdict, *report.ActualWinRate, report.ImpliedProb,
		gap, report.SampleSize)
}
