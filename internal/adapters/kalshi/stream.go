package kalshi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// TradeHandler receives one decoded trade print.
type TradeHandler func(ctx context.Context, ticker string, yesPriceCents int)

// streamMessage is the envelope of every websocket frame.
type streamMessage struct {
	Type string          `json:"type"`
	Msg  json.RawMessage `json:"msg"`
}

// tradePrint is the payload of a "trade" frame.
type tradePrint struct {
	MarketTicker string `json:"market_ticker"`
	YesPrice     int    `json:"yes_price"`
}

type subscribeCmd struct {
	ID     int    `json:"id"`
	Cmd    string `json:"cmd"`
	Params struct {
		Channels []string `json:"channels"`
	} `json:"params"`
}

const (
	reconnectBase = time.Second
	reconnectMax  = time.Minute
)

// Stream consumes the Kalshi trade channel and feeds each print to the
// handler. It reconnects with exponential backoff until the context is
// canceled.
type Stream struct {
	wsURL   string
	creds   *Credentials
	handler TradeHandler
	log     *slog.Logger
}

// NewStream creates a Stream. Credentials are required; the trade
// channel does not accept anonymous connections.
func NewStream(wsURL string, creds *Credentials, handler TradeHandler, log *slog.Logger) *Stream {
	return &Stream{wsURL: wsURL, creds: creds, handler: handler, log: log}
}

// Run connects and consumes until ctx is canceled. Connection drops are
// retried, not returned; only a canceled context or unusable
// configuration ends the loop.
func (s *Stream) Run(ctx context.Context) error {
	if s.creds == nil {
		return fmt.Errorf("kalshi.Stream: credentials required for the trade channel")
	}

	wsPath, err := signablePath(s.wsURL)
	if err != nil {
		return fmt.Errorf("kalshi.Stream: %w", err)
	}

	backoff := reconnectBase
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.consume(ctx, wsPath)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Warn("stream disconnected, reconnecting", "err", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

// consume runs one connection to exhaustion.
func (s *Stream) consume(ctx context.Context, wsPath string) error {
	auth, err := s.creds.sign(http.MethodGet, wsPath)
	if err != nil {
		return err
	}
	header := http.Header{}
	for k, v := range auth {
		header.Set(k, v)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.wsURL, header)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage when the context dies.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	sub := subscribeCmd{ID: 1, Cmd: "subscribe"}
	sub.Params.Channels = []string{"trade"}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	s.log.Info("trade stream connected", "url", s.wsURL)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		ticker, yesPrice, ok := decodeTrade(raw)
		if !ok {
			continue
		}
		s.handler(ctx, ticker, yesPrice)
	}
}

// decodeTrade extracts (ticker, yes price) from one frame; ok is false
// for non-trade frames and malformed payloads.
func decodeTrade(raw []byte) (string, int, bool) {
	var env streamMessage
	if err := json.Unmarshal(raw, &env); err != nil || env.Type != "trade" {
		return "", 0, false
	}
	var print tradePrint
	if err := json.Unmarshal(env.Msg, &print); err != nil {
		return "", 0, false
	}
	if print.MarketTicker == "" || print.YesPrice < 1 || print.YesPrice > 99 {
		return "", 0, false
	}
	return print.MarketTicker, print.YesPrice, true
}

// signablePath returns the path component the auth signature covers.
func signablePath(wsURL string) (string, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", wsURL, err)
	}
	if u.Path == "" {
		return "/", nil
	}
	return u.Path, nil
}
