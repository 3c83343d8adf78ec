// Package kalshi adapts the Kalshi trade API: an authenticated REST
// client for market details and order books, and a websocket stream for
// live trade prints.
//
// Credentials are optional by design. Without them every lookup returns
// (nil, nil) so the pipeline degrades to offline behavior — unknown
// depth, no live liquidity checks — instead of failing.
package kalshi

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/ports"
)

// Credentials hold the API key id and its RSA signing key.
type Credentials struct {
	APIKeyID   string
	PrivateKey *rsa.PrivateKey
}

// LoadCredentials reads KALSHI_API_KEY_ID and KALSHI_PRIVATE_KEY_PATH
// from the environment. Returns (nil, nil) when either is unset; an
// error only for a present but unreadable key.
func LoadCredentials() (*Credentials, error) {
	keyID := os.Getenv("KALSHI_API_KEY_ID")
	keyPath := os.Getenv("KALSHI_PRIVATE_KEY_PATH")
	if keyID == "" || keyPath == "" {
		return nil, nil
	}

	pemBytes, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("kalshi.LoadCredentials: read key: %w", err)
	}
	key, err := ParsePrivateKey(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("kalshi.LoadCredentials: %w", err)
	}
	return &Credentials{APIKeyID: keyID, PrivateKey: key}, nil
}

// ParsePrivateKey parses a PEM-encoded RSA private key in PKCS#8 or
// PKCS#1 form.
func ParsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("kalshi.ParsePrivateKey: no PEM block")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("kalshi.ParsePrivateKey: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("kalshi.ParsePrivateKey: not an RSA key")
	}
	return key, nil
}

// sign produces the three KALSHI-ACCESS-* auth headers for one request.
// The signed message is timestamp + method + path, RSA-PSS over SHA-256
// with the salt length equal to the digest length.
func (c *Credentials) sign(method, path string) (map[string]string, error) {
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	msg := timestamp + method + path

	digest := crypto.SHA256.New()
	digest.Write([]byte(msg))

	sig, err := rsa.SignPSS(rand.Reader, c.PrivateKey, crypto.SHA256, digest.Sum(nil),
		&rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash})
	if err != nil {
		return nil, fmt.Errorf("kalshi: sign %s %s: %w", method, path, err)
	}

	return map[string]string{
		"KALSHI-ACCESS-KEY":       c.APIKeyID,
		"KALSHI-ACCESS-SIGNATURE": base64.StdEncoding.EncodeToString(sig),
		"KALSHI-ACCESS-TIMESTAMP": timestamp,
	}, nil
}

// REST is the Kalshi trade API client. It implements ports.MarketData.
type REST struct {
	baseURL string
	creds   *Credentials
	http    *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewREST creates a REST client. creds may be nil for offline use.
func NewREST(baseURL string, creds *Credentials, log *slog.Logger) *REST {
	return &REST{
		baseURL: baseURL,
		creds:   creds,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 10),
		log:     log,
	}
}

// marketResponse is the wire shape of GET /markets/{ticker}.
type marketResponse struct {
	Market struct {
		Ticker       string `json:"ticker"`
		Title        string `json:"title"`
		MarketType   string `json:"market_type"`
		RulesPrimary string `json:"rules_primary"`
		OpenInterest int    `json:"open_interest"`
		Volume24h    int    `json:"volume_24h"`
	} `json:"market"`
}

// GetMarket fetches live details for one ticker. (nil, nil) without
// credentials.
func (r *REST) GetMarket(ctx context.Context, ticker string) (*ports.MarketDetails, error) {
	if r.creds == nil {
		return nil, nil
	}

	var out marketResponse
	path := "/markets/" + url.PathEscape(ticker)
	if err := r.get(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("kalshi.GetMarket: %s: %w", ticker, err)
	}

	return &ports.MarketDetails{
		Ticker:       out.Market.Ticker,
		Title:        out.Market.Title,
		MarketType:   out.Market.MarketType,
		RulesPrimary: out.Market.RulesPrimary,
		OpenInterest: out.Market.OpenInterest,
		Volume24h:    out.Market.Volume24h,
	}, nil
}

// orderbookResponse is the wire shape of GET /markets/{ticker}/orderbook.
// Levels come as [price, size] pairs.
type orderbookResponse struct {
	Orderbook struct {
		Yes [][]int `json:"yes"`
		No  [][]int `json:"no"`
	} `json:"orderbook"`
}

// GetOrderbook fetches the live book for one ticker. (nil, nil) without
// credentials.
func (r *REST) GetOrderbook(ctx context.Context, ticker string) (*domain.Orderbook, error) {
	if r.creds == nil {
		return nil, nil
	}

	var out orderbookResponse
	path := "/markets/" + url.PathEscape(ticker) + "/orderbook"
	if err := r.get(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("kalshi.GetOrderbook: %s: %w", ticker, err)
	}

	return &domain.Orderbook{
		Yes: toLevels(out.Orderbook.Yes),
		No:  toLevels(out.Orderbook.No),
	}, nil
}

func toLevels(pairs [][]int) []domain.BookLevel {
	levels := make([]domain.BookLevel, 0, len(pairs))
	for _, pair := range pairs {
		if len(pair) < 2 {
			continue
		}
		levels = append(levels, domain.BookLevel{PriceCents: pair[0], Contracts: pair[1]})
	}
	return levels
}

func (r *REST) get(ctx context.Context, path string, out any) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	headers, err := r.creds.sign(http.MethodGet, path)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
