package reviewer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/ports"
)

// remoteRequest is the JSON body posted to the review endpoint.
type remoteRequest struct {
	Ticker         string   `json:"ticker"`
	GameKey        string   `json:"game_key"`
	Action         string   `json:"action"`
	YesPrice       int      `json:"yes_price"`
	Verdict        string   `json:"verdict"`
	CalibrationGap *float64 `json:"calibration_gap"`
	ActualWinRate  *float64 `json:"actual_win_rate"`
	SampleSize     int      `json:"sample_size"`
	Kelly          float64  `json:"kelly"`
	Confidence     string   `json:"confidence"`

	OpenPositions       []remotePosition `json:"open_positions"`
	SameGameExposureUSD float64          `json:"same_game_exposure_usd"`
	CashUSD             float64          `json:"cash_usd"`
}

type remotePosition struct {
	Ticker  string  `json:"ticker"`
	GameKey string  `json:"game_key"`
	Action  string  `json:"action"`
	CostUSD float64 `json:"cost_usd"`
}

// remoteResponse mirrors the Review contract.
type remoteResponse struct {
	Decision   string   `json:"decision"`
	VetoReason string   `json:"veto_reason"`
	Concerns   []string `json:"concerns"`
	RiskScore  int      `json:"risk_score"`
	Summary    string   `json:"summary"`
}

// Remote posts proposals to an external review service. The service's
// reasoning is its own business; this adapter only speaks the transport.
// Errors propagate so FailSafe can convert them to vetoes.
type Remote struct {
	endpoint string
	client   *http.Client
}

// NewRemote creates a remote reviewer against the given endpoint.
func NewRemote(endpoint string, timeout time.Duration) *Remote {
	return &Remote{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Review posts the proposal and decodes the service's ruling.
func (r *Remote) Review(ctx context.Context, p domain.TradeProposal, portfolio ports.PortfolioContext) (domain.Review, error) {
	body := remoteRequest{
		Ticker:              p.Signal.Ticker,
		GameKey:             p.Signal.GameKey,
		Action:              string(p.Signal.Action),
		YesPrice:            p.Signal.YesPrice,
		Verdict:             string(p.Report.Verdict),
		CalibrationGap:      p.Report.CalibrationGap,
		ActualWinRate:       p.Report.ActualWinRate,
		SampleSize:          p.Report.SampleSize,
		Kelly:               p.Kelly,
		Confidence:          p.Confidence,
		SameGameExposureUSD: portfolio.SameGameExposureUSD,
		CashUSD:             portfolio.CashUSD,
	}
	for _, pos := range portfolio.OpenPositions {
		body.OpenPositions = append(body.OpenPositions, remotePosition{
			Ticker:  pos.Ticker,
			GameKey: pos.GameKey,
			Action:  string(pos.Action),
			CostUSD: pos.CostUSD,
		})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return domain.Review{}, fmt.Errorf("reviewer.Remote: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return domain.Review{}, fmt.Errorf("reviewer.Remote: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return domain.Review{}, fmt.Errorf("reviewer.Remote: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Review{}, fmt.Errorf("reviewer.Remote: status %d", resp.StatusCode)
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.Review{}, fmt.Errorf("reviewer.Remote: decode response: %w", err)
	}

	if out.Decision != DecisionApprove && out.Decision != DecisionVeto {
		return domain.Review{}, fmt.Errorf("reviewer.Remote: unknown decision %q", out.Decision)
	}
	if out.RiskScore < 1 || out.RiskScore > 10 {
		return domain.Review{}, fmt.Errorf("reviewer.Remote: risk score %d out of range", out.RiskScore)
	}

	return domain.Review{
		Decision:   out.Decision,
		VetoReason: out.VetoReason,
		Concerns:   out.Concerns,
		RiskScore:  out.RiskScore,
		Summary:    out.Summary,
	}, nil
}
