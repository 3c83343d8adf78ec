// Package pipeline wires ingestion to decision: the bouncer filters raw
// price observations into Signals, the router dispatches them by market
// type, and the orchestrator runs each signal through analysis, sizing,
// the risk gate, and review to a terminal decision.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/ports"
)

// BouncerConfig holds the ingestion filter thresholds.
type BouncerConfig struct {
	// LongshotCeiling marks YES as the overpriced underdog at or below
	// this yes price; the signal fades it with BET_NO.
	LongshotCeiling int
	// LongshotFloor marks NO as the overpriced underdog at or above this
	// yes price; the signal fades it with BET_YES.
	LongshotFloor int
	// MinOpenInterest bounces signals below this live open interest. Only
	// enforced when the live lookup succeeded.
	MinOpenInterest int
}

// Bouncer turns raw (ticker, price) observations into enriched Signals,
// or nothing. It embodies the only entry strategy: fading longshot bias.
type Bouncer struct {
	cfg    BouncerConfig
	market ports.MarketData
	log    *slog.Logger
	now    func() time.Time
}

// NewBouncer creates a Bouncer. market may be nil for offline runs; live
// liquidity checks are then skipped entirely.
func NewBouncer(cfg BouncerConfig, market ports.MarketData, log *slog.Logger) *Bouncer {
	return &Bouncer{cfg: cfg, market: market, log: log, now: time.Now}
}

// Process filters and enriches one observation. A nil return means the
// signal was bounced; the reason is logged, never returned.
func (b *Bouncer) Process(ctx context.Context, ticker string, yesPrice int) *domain.Signal {
	if ticker == "" || yesPrice < 1 || yesPrice > 99 {
		return nil
	}
	if !strings.Contains(strings.ToUpper(ticker), "NBA") {
		return nil
	}

	var action domain.Action
	var reason string
	switch {
	case yesPrice <= b.cfg.LongshotCeiling:
		action = domain.BetNo
		reason = fmt.Sprintf("longshot bias: fading overpriced YES underdog at %dc", yesPrice)
	case yesPrice >= b.cfg.LongshotFloor:
		action = domain.BetYes
		reason = fmt.Sprintf("longshot bias: fading overpriced NO underdog at %dc", yesPrice)
	default:
		b.log.Debug("no longshot detected", "ticker", ticker, "yes_price", yesPrice)
		return nil
	}

	sig := &domain.Signal{
		ID:         uuid.NewString(),
		Ticker:     ticker,
		GameKey:    domain.GameKey(ticker),
		MarketType: domain.ClassifyTicker(ticker),
		YesPrice:   yesPrice,
		Action:     action,
		Reason:     reason,
		ReceivedAt: b.now().UTC(),
	}

	if b.market != nil {
		details, err := b.market.GetMarket(ctx, ticker)
		if err != nil {
			b.log.Warn("market details lookup failed", "ticker", ticker, "err", err)
		}
		if details != nil {
			sig.LiveDetails = true
			sig.Title = details.Title
			sig.OpenInterest = details.OpenInterest
			sig.Volume24h = details.Volume24h

			if details.OpenInterest < b.cfg.MinOpenInterest {
				b.log.Info("bounced on open interest",
					"ticker", ticker,
					"open_interest", details.OpenInterest,
					"min", b.cfg.MinOpenInterest)
				return nil
			}
		}
	}

	return sig
}
