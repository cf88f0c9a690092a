// ws.go implements the exchange's ticker WebSocket feed.
//
// The feed subscribes to the public ticker channel for a set of market
// tickers and keeps the latest top-of-book quote per market in a cache.
// The engine overlays these quotes onto REST snapshots when they are
// fresher than the poll cycle. The feed auto-reconnects with exponential
// backoff (1s → 30s max) and re-subscribes to all tracked tickers on
// reconnection. A read deadline detects silent server failures.
package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"weather-trader/pkg/types"
)

var errNotConnected = errors.New("websocket not connected")

const (
	readTimeout      = 90 * time.Second
	maxReconnectWait = 30 * time.Second
	writeTimeout     = 10 * time.Second
)

// Quote is the latest ticker-channel snapshot for one market.
type Quote struct {
	Ticker     string
	YesBid     *int
	YesAsk     *int
	ReceivedAt time.Time
}

// Feed maintains a live top-of-book quote cache from the ticker channel.
type Feed struct {
	url    string
	conn   *websocket.Conn
	connMu sync.Mutex // protects conn reads/writes
	nextID atomic.Int64

	// Track subscriptions for automatic re-subscribe on reconnect
	subscribedMu sync.RWMutex
	subscribed   map[string]bool

	quotesMu sync.RWMutex
	quotes   map[string]Quote

	logger *slog.Logger
}

// NewFeed creates a ticker feed for the given WebSocket URL.
func NewFeed(wsURL string, logger *slog.Logger) *Feed {
	return &Feed{
		url:        wsURL,
		subscribed: make(map[string]bool),
		quotes:     make(map[string]Quote),
		logger:     logger.With("component", "ws_ticker"),
	}
}

// wsCommand is the subscription message sent to the ticker channel.
type wsCommand struct {
	ID     int      `json:"id"`
	Cmd    string   `json:"cmd"`
	Params wsParams `json:"params"`
}

type wsParams struct {
	Channels      []string `json:"channels"`
	MarketTickers []string `json:"market_tickers"`
}

// wsTickerMsg is one ticker update from the server.
type wsTickerMsg struct {
	Type string `json:"type"`
	Msg  struct {
		MarketTicker string `json:"market_ticker"`
		YesBid       *int   `json:"yes_bid"`
		YesAsk       *int   `json:"yes_ask"`
	} `json:"msg"`
}

// Quote returns the latest cached quote for a ticker.
func (f *Feed) Quote(ticker string) (Quote, bool) {
	f.quotesMu.RLock()
	defer f.quotesMu.RUnlock()
	q, ok := f.quotes[ticker]
	return q, ok
}

// Overlay replaces the market's yes quote with the cached one when the
// cache entry is younger than maxAge. Markets without a fresh cached quote
// pass through unchanged.
func (f *Feed) Overlay(m types.Market, maxAge time.Duration) types.Market {
	q, ok := f.Quote(m.Ticker)
	if !ok || time.Since(q.ReceivedAt) > maxAge {
		return m
	}
	if q.YesBid != nil {
		m.YesBid = q.YesBid
	}
	if q.YesAsk != nil {
		m.YesAsk = q.YesAsk
	}
	return m
}

// Subscribe adds market tickers to the feed. If connected, the new tickers
// are subscribed immediately; otherwise they are picked up on the next
// (re)connect.
func (f *Feed) Subscribe(tickers []string) error {
	var added []string
	f.subscribedMu.Lock()
	for _, t := range tickers {
		if !f.subscribed[t] {
			f.subscribed[t] = true
			added = append(added, t)
		}
	}
	f.subscribedMu.Unlock()

	if len(added) == 0 {
		return nil
	}
	err := f.writeJSON(f.subscribeCmd(added))
	if errors.Is(err, errNotConnected) {
		// Picked up by the initial subscription on (re)connect.
		return nil
	}
	return err
}

// Run connects and maintains the WebSocket connection with auto-reconnect.
// Blocks until ctx is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("websocket disconnected, reconnecting",
			"error", err,
			"backoff", backoff,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

// Close gracefully closes the connection.
func (f *Feed) Close() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

func (f *Feed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	f.subscribedMu.RLock()
	tickers := make([]string, 0, len(f.subscribed))
	for t := range f.subscribed {
		tickers = append(tickers, t)
	}
	f.subscribedMu.RUnlock()

	if len(tickers) > 0 {
		if err := f.writeJSON(f.subscribeCmd(tickers)); err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
	}

	f.logger.Info("websocket connected", "tickers", len(tickers))

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		f.handleMessage(msg)
	}
}

func (f *Feed) subscribeCmd(tickers []string) wsCommand {
	return wsCommand{
		ID:  int(f.nextID.Add(1)),
		Cmd: "subscribe",
		Params: wsParams{
			Channels:      []string{"ticker"},
			MarketTickers: tickers,
		},
	}
}

func (f *Feed) handleMessage(data []byte) {
	var msg wsTickerMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		f.logger.Debug("ignoring non-json ws message", "data", string(data))
		return
	}
	if msg.Type != "ticker" || msg.Msg.MarketTicker == "" {
		return
	}

	f.quotesMu.Lock()
	f.quotes[msg.Msg.MarketTicker] = Quote{
		Ticker:     msg.Msg.MarketTicker,
		YesBid:     msg.Msg.YesBid,
		YesAsk:     msg.Msg.YesAsk,
		ReceivedAt: time.Now(),
	}
	f.quotesMu.Unlock()
}

func (f *Feed) writeJSON(v interface{}) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return errNotConnected
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(v)
}
