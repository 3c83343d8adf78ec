package pipeline

import (
	"context"
	"log/slog"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

// Router classifies incoming trade observations by ticker prefix and
// dispatches game-winner markets into the bouncer. Totals and player
// props are recognized but have no strategy yet; everything else drops
// silently.
type Router struct {
	bouncer *Bouncer
	log     *slog.Logger
}

// NewRouter creates a Router.
func NewRouter(bouncer *Bouncer, log *slog.Logger) *Router {
	return &Router{bouncer: bouncer, log: log}
}

// Route classifies one observation and returns its market type plus the
// enriched signal, or nil when the observation was filtered out or no
// strategy exists for its type.
func (r *Router) Route(ctx context.Context, ticker string, yesPrice int) (domain.MarketType, *domain.Signal) {
	mt := domain.ClassifyTicker(ticker)

	switch mt {
	case domain.GameWinner:
		return mt, r.bouncer.Process(ctx, ticker, yesPrice)

	case domain.Totals:
		// Season win totals are efficiently priced; the longshot rule
		// does not apply. TODO: mean-reversion strategy for KXNBAWINS.
		r.log.Debug("totals signal, strategy pending", "ticker", ticker, "yes_price", yesPrice)
		return mt, nil

	case domain.PlayerProp:
		// Prop bias varies by stat type and needs its own calibration.
		r.log.Debug("player prop signal, strategy pending", "ticker", ticker, "yes_price", yesPrice)
		return mt, nil
	}

	return mt, nil
}
