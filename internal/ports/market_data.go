package ports

import (
	"context"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

// MarketDetails is the live REST view of one market.
type MarketDetails struct {
	Ticker       string
	Title        string
	MarketType   string
	RulesPrimary string
	OpenInterest int
	Volume24h    int
}

// MarketData provides live enrichment lookups. Both calls return
// (nil, nil) — not an error — when credentials are absent, so offline
// runs degrade to unknown values instead of failing.
type MarketData interface {
	// GetMarket fetches live details for a ticker.
	GetMarket(ctx context.Context, ticker string) (*MarketDetails, error)

	// GetOrderbook fetches the live book for a ticker.
	GetOrderbook(ctx context.Context, ticker string) (*domain.Orderbook, error)
}

// GameFinder locates the live game behind a game-winner ticker.
type GameFinder interface {
	// FindGame returns nil when no matching game is scheduled in the
	// search window.
	FindGame(ctx context.Context, ticker string, searchDays int) (*domain.GameContext, error)
}
