// Package espn adapts the hidden ESPN NBA scoreboard API. It serves two
// ports: GameFinder for live game context and OutcomeSource for
// settlement, both keyed off the teams embedded in a game-winner ticker.
package espn

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/ports"
)

// kalshiToESPN maps Kalshi team abbreviations to ESPN's, only where
// they differ.
var kalshiToESPN = map[string]string{
	"GSW": "GS",
	"NOP": "NO",
	"SAS": "SA",
	"UTA": "UTAH",
}

func toESPNAbbr(abbr string) string {
	if mapped, ok := kalshiToESPN[abbr]; ok {
		return mapped
	}
	return abbr
}

// Client talks to the ESPN scoreboard endpoint.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
	now     func() time.Time
}

// New creates a Client. baseURL is the NBA site API root, without a
// trailing slash.
func New(baseURL string, log *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 8 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 4),
		log:     log,
		now:     time.Now,
	}
}

// Scoreboard returns all NBA games for one date (YYYYMMDD), or today's
// when date is empty.
func (c *Client) Scoreboard(ctx context.Context, date string) ([]domain.GameContext, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("espn.Scoreboard: %w", err)
	}

	endpoint := c.baseURL + "/scoreboard"
	if date != "" {
		endpoint += "?dates=" + url.QueryEscape(date)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("espn.Scoreboard: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("espn.Scoreboard: get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("espn.Scoreboard: status %d", resp.StatusCode)
	}

	var payload scoreboardResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("espn.Scoreboard: decode: %w", err)
	}

	gameDate := date
	if gameDate == "" {
		gameDate = c.now().UTC().Format("20060102")
	}

	var games []domain.GameContext
	for _, event := range payload.Events {
		if len(event.Competitions) == 0 {
			continue
		}
		comp := event.Competitions[0]

		game := domain.GameContext{
			Status:   comp.Status.Type.Name,
			GameDate: gameDate,
		}
		for _, competitor := range comp.Competitors {
			score := parseScore(competitor.Score)
			if competitor.HomeAway == "home" {
				game.HomeAbbr = competitor.Team.Abbreviation
				game.HomeName = competitor.Team.DisplayName
				game.HomeScore = score
			} else {
				game.AwayAbbr = competitor.Team.Abbreviation
				game.AwayName = competitor.Team.DisplayName
				game.AwayScore = score
			}
		}

		if game.Status == "STATUS_FINAL" && game.HomeScore != nil && game.AwayScore != nil {
			switch {
			case *game.HomeScore > *game.AwayScore:
				game.WinnerAbbr = game.HomeAbbr
			case *game.AwayScore > *game.HomeScore:
				game.WinnerAbbr = game.AwayAbbr
			}
		}

		games = append(games, game)
	}
	return games, nil
}

// FindGame locates the scoreboard game behind a game-winner ticker,
// searching today plus the prior days to cover games straddling
// midnight. Returns (nil, nil) when no scheduled game matches.
func (c *Client) FindGame(ctx context.Context, ticker string, searchDays int) (*domain.GameContext, error) {
	home, away, ok := domain.ParseTeams(ticker)
	if !ok {
		return nil, nil
	}
	wantHome := toESPNAbbr(home)
	wantAway := toESPNAbbr(away)

	today := c.now().UTC()
	for i := 0; i < searchDays; i++ {
		date := today.AddDate(0, 0, -i).Format("20060102")
		games, err := c.Scoreboard(ctx, date)
		if err != nil {
			return nil, fmt.Errorf("espn.FindGame: %s: %w", ticker, err)
		}
		for j := range games {
			g := &games[j]
			if matchesTeams(g, wantHome, wantAway) {
				return g, nil
			}
		}
	}
	return nil, nil
}

// matchesTeams reports whether both ticker teams appear in the game, in
// either order.
func matchesTeams(g *domain.GameContext, a, b string) bool {
	teams := map[string]bool{g.HomeAbbr: true, g.AwayAbbr: true}
	return teams[a] && teams[b]
}

// outcomeSearchDays covers games settled a couple of days late.
const outcomeSearchDays = 3

// LookupOutcome resolves a ticker through the scoreboard: the home team
// winning resolves the market "yes", the away team "no". A missing or
// unfinished game is reported open, never guessed.
func (c *Client) LookupOutcome(ctx context.Context, ticker string) (ports.Outcome, error) {
	game, err := c.FindGame(ctx, ticker, outcomeSearchDays)
	if err != nil {
		return ports.Outcome{}, fmt.Errorf("espn.LookupOutcome: %s: %w", ticker, err)
	}
	if game == nil {
		return ports.Outcome{Status: ports.OutcomeUnknown}, nil
	}
	if game.Status != "STATUS_FINAL" {
		return ports.Outcome{Status: ports.OutcomeOpen}, nil
	}

	home, _, ok := domain.ParseTeams(ticker)
	if !ok {
		return ports.Outcome{Status: ports.OutcomeUnknown}, nil
	}

	switch game.WinnerAbbr {
	case "":
		// Final without a winner: scores were missing or tied.
		return ports.Outcome{Status: ports.OutcomeFinalized}, nil
	case toESPNAbbr(home):
		return ports.Outcome{Status: ports.OutcomeFinalized, Result: "yes"}, nil
	default:
		return ports.Outcome{Status: ports.OutcomeFinalized, Result: "no"}, nil
	}
}

func parseScore(s string) *int {
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

// Wire types for the scoreboard payload, trimmed to what we read.
type scoreboardResponse struct {
	Events []struct {
		Competitions []struct {
			Competitors []struct {
				HomeAway string `json:"homeAway"`
				Score    string `json:"score"`
				Team     struct {
					Abbreviation string `json:"abbreviation"`
					DisplayName  string `json:"displayName"`
				} `json:"team"`
			} `json:"competitors"`
			Status struct {
				Type struct {
					Name string `json:"name"`
				} `json:"type"`
			} `json:"status"`
		} `json:"competitions"`
	} `json:"events"`
}
