package domain

import (
	"regexp"
	"strings"
)

// MarketType classifies a Kalshi NBA ticker by prefix.
type MarketType string

const (
	GameWinner MarketType = "GAME_WINNER" // KXNBAGAME-* moneyline markets
	Totals     MarketType = "TOTALS"      // KXNBAWINS-* season win totals
	PlayerProp MarketType = "PLAYER_PROP" // KXNBASGPROP-* player stat props
	Unknown    MarketType = "UNKNOWN"     // NBA ticker with an unrecognized prefix
	NonNBA     MarketType = "NON_NBA"
)

// ClassifyTicker returns the market type for a Kalshi ticker.
// KXNBASGPROP must be checked before KXNBAGAME-style prefix logic would
// misfile it; order matters only for readability here since prefixes are
// disjoint.
func ClassifyTicker(ticker string) MarketType {
	switch {
	case strings.HasPrefix(ticker, "KXNBAGAME"):
		return GameWinner
	case strings.HasPrefix(ticker, "KXNBAWINS"):
		return Totals
	case strings.HasPrefix(ticker, "KXNBASGPROP"):
		return PlayerProp
	case strings.Contains(strings.ToUpper(ticker), "NBA"):
		return Unknown
	}
	return NonNBA
}

// GameKey returns the identifier shared by every market on the same
// underlying event. Game-winner tickers embed an event token
// (KXNBAGAME-26FEB19BKNCLE-BKN -> "26FEB19BKNCLE"); all other market
// types use the full ticker as their own key.
func GameKey(ticker string) string {
	if ClassifyTicker(ticker) != GameWinner {
		return ticker
	}
	parts := strings.Split(ticker, "-")
	if len(parts) < 2 || parts[1] == "" {
		return ticker
	}
	return parts[1]
}

// eventDate matches the YYMONDD prefix of an event token, e.g. "26FEB19".
var eventDate = regexp.MustCompile(`^\d{2}[A-Z]{3}\d{2}`)

// teamToken matches a 2-3 letter team abbreviation.
var teamToken = regexp.MustCompile(`[A-Z]{2,3}`)

// ParseTeams extracts the (home, away) team abbreviations from a
// game-winner ticker. Returns ok=false for any other ticker shape.
func ParseTeams(ticker string) (home, away string, ok bool) {
	if ClassifyTicker(ticker) != GameWinner {
		return "", "", false
	}
	parts := strings.Split(ticker, "-")
	if len(parts) < 2 {
		return "", "", false
	}
	event := parts[1]

	loc := eventDate.FindStringIndex(event)
	if loc == nil {
		return "", "", false
	}

	// {2,3} is deliberate: a greedier match would merge "BKNCLE" into
	// ("BKNC", "LE").
	tokens := teamToken.FindAllString(event[loc[1]:], -1)
	if len(tokens) < 2 {
		return "", "", false
	}
	return tokens[0], tokens[1], true
}
