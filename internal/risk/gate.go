// Package risk implements the deterministic hard portfolio gate. Its
// rules are mechanical safety invariants that must hold unconditionally:
// they run before, and independently of, any external judgment step.
package risk

import (
	"fmt"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

// Rule names, in priority order. The first matching rule is terminal.
const (
	RuleOpposingPosition   = "opposing_position"
	RuleDuplicateDirection = "duplicate_direction"
	RuleSameGameCap        = "same_game_cap"
	RuleZeroDepth          = "zero_depth"
)

// Config holds the gate's thresholds.
type Config struct {
	SameGameCapUSD float64 // max open cost on one game before new bets are vetoed
}

// Gate applies the hard rules over the current open portfolio.
type Gate struct {
	cfg Config
}

// New creates a Gate.
func New(cfg Config) *Gate {
	return &Gate{cfg: cfg}
}

// Check runs the rules in strict priority order against the open
// positions that share the proposal's game key. It returns nil when the
// proposal may proceed to the reviewer.
//
// depthAtPrice is tri-state: nil means the order book is unknown
// (offline) and must NOT be treated as zero; only a confirmed 0 vetoes.
func (g *Gate) Check(
	action domain.Action,
	sameGame []domain.OpenPosition,
	sameGameExposureUSD float64,
	depthAtPrice *int,
) *domain.Veto {
	// Rule 1: holding both sides of one game locks in a guaranteed loss
	// on one leg.
	for _, pos := range sameGame {
		if pos.Action != action {
			return &domain.Veto{
				Rule: RuleOpposingPosition,
				Reason: fmt.Sprintf(
					"open %s position on game %s opposes proposed %s — both sides of one game lock in a loss",
					pos.Action, pos.GameKey, action),
			}
		}
	}

	// Rule 2: one position per game per direction.
	for _, pos := range sameGame {
		if pos.Action == action {
			return &domain.Veto{
				Rule: RuleDuplicateDirection,
				Reason: fmt.Sprintf(
					"already holding %s on game %s (ticker %s) — capped at one position per game per direction",
					action, pos.GameKey, pos.Ticker),
			}
		}
	}

	// Rule 3: dollar cap per game.
	if sameGameExposureUSD >= g.cfg.SameGameCapUSD {
		return &domain.Veto{
			Rule: RuleSameGameCap,
			Reason: fmt.Sprintf(
				"same-game exposure $%.2f at or above cap $%.2f",
				sameGameExposureUSD, g.cfg.SameGameCapUSD),
		}
	}

	// Rule 4: confirmed-empty book at our price. Unknown depth passes.
	if depthAtPrice != nil && *depthAtPrice == 0 {
		return &domain.Veto{
			Rule:   RuleZeroDepth,
			Reason: "order book confirmed empty at target price — cannot get filled",
		}
	}

	return nil
}
