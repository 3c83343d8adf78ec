package ports

import (
	"context"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

// EdgeStore answers price-bucket queries over the historical outcomes
// store. Buckets aggregate by price, never by ticker — live tickers will
// not exist in the history.
type EdgeStore interface {
	// PriceBucket returns the win rate of the given side across all
	// resolved outcomes at exactly this yes price.
	PriceBucket(ctx context.Context, yesPrice int, action domain.Action) (domain.PriceBucketStats, error)

	// LongshotBias returns how often NO won at or below the price ceiling.
	LongshotBias(ctx context.Context, priceCeiling int) (domain.LongshotStats, error)

	// TakerWinRate returns the taker win rate at exactly this yes price.
	TakerWinRate(ctx context.Context, yesPrice int) (domain.TakerStats, error)

	// VolumeStats returns liquidity figures for one ticker, zeros when
	// the ticker is not in the store.
	VolumeStats(ctx context.Context, ticker string) (domain.VolumeStats, error)

	// ResolvedSignals returns up to n finalized markets ordered by close
	// time, for backtest replay.
	ResolvedSignals(ctx context.Context, n int) ([]domain.HistoricalSignal, error)
}
