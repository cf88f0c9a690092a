// Package exchange implements the prediction-exchange REST and WebSocket
// clients.
//
// The REST client (Client) reads binary temperature markets:
//   - Market:          GET /markets/{ticker}        — one market snapshot
//   - MarketsForEvent: GET /markets?event_ticker=…  — all strikes for a
//     city's daily-high event, paginated by cursor
//
// Every request first takes a token from the injected rate-limit bucket,
// is retried on 5xx errors, and is authenticated with a bearer API key.
// Prices decode into pointer-typed fields so an empty side of the book is
// nil rather than a fake zero-cent quote.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"weather-trader/internal/config"
	"weather-trader/internal/ratelimit"
	"weather-trader/pkg/types"
)

// ErrRateLimited is returned when the rate limiter rejects a request
// instead of letting it oversleep its deadline. Callers back off or skip
// the call; it is not a fault.
var ErrRateLimited = errors.New("exchange: rate limited")

// Client is the exchange REST API client. It wraps a resty HTTP client
// with rate limiting, retry, and API-key auth.
type Client struct {
	http    *resty.Client
	limiter *ratelimit.TokenBucket
	logger  *slog.Logger
}

// NewClient creates a REST client. limiter gates every outbound request.
func NewClient(cfg config.APIConfig, limiter *ratelimit.TokenBucket, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.ExchangeBaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	if cfg.ExchangeAPIKey != "" {
		httpClient.SetHeader("Authorization", "Bearer "+cfg.ExchangeAPIKey)
	}
	if cfg.UserAgent != "" {
		httpClient.SetHeader("User-Agent", cfg.UserAgent)
	}

	return &Client{
		http:    httpClient,
		limiter: limiter,
		logger:  logger.With("component", "exchange"),
	}
}

// apiMarket mirrors the exchange's market JSON. Quote fields are pointers
// so an absent quote is distinguishable from a legitimate 0-cent price.
type apiMarket struct {
	Ticker       string   `json:"ticker"`
	Status       string   `json:"status"`
	YesBid       *int     `json:"yes_bid"`
	YesAsk       *int     `json:"yes_ask"`
	NoBid        *int     `json:"no_bid"`
	NoAsk        *int     `json:"no_ask"`
	Volume       int64    `json:"volume"`
	OpenInterest int64    `json:"open_interest"`
	FloorStrike  *float64 `json:"floor_strike"`
	CapStrike    *float64 `json:"cap_strike"`
}

func (m apiMarket) toMarket() types.Market {
	// "Above X°" markets carry the threshold as floor_strike; capped
	// variants use cap_strike.
	strike := m.FloorStrike
	if strike == nil {
		strike = m.CapStrike
	}
	return types.Market{
		Ticker:       m.Ticker,
		YesBid:       m.YesBid,
		YesAsk:       m.YesAsk,
		NoBid:        m.NoBid,
		NoAsk:        m.NoAsk,
		Volume:       m.Volume,
		OpenInterest: m.OpenInterest,
		StrikePrice:  strike,
		Status:       m.Status,
	}
}

type singleMarketResponse struct {
	Market apiMarket `json:"market"`
}

type marketsResponse struct {
	Markets []apiMarket `json:"markets"`
	Cursor  string      `json:"cursor"`
}

// wait takes one token from the rate limiter before an outbound call.
func (c *Client) wait(ctx context.Context) error {
	ok, err := c.limiter.Acquire(ctx, 1)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRateLimited
	}
	return nil
}

// Market fetches a single market snapshot by ticker.
func (c *Client) Market(ctx context.Context, ticker string) (types.Market, error) {
	if err := c.wait(ctx); err != nil {
		return types.Market{}, err
	}

	var result singleMarketResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/markets/" + ticker)
	if err != nil {
		return types.Market{}, fmt.Errorf("get market %s: %w", ticker, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return types.Market{}, fmt.Errorf("get market %s: status %d: %s", ticker, resp.StatusCode(), resp.String())
	}
	return result.Market.toMarket(), nil
}

// MarketsForEvent fetches every market under an event ticker (one strike
// ladder for a city's daily-high event), following pagination cursors.
func (c *Client) MarketsForEvent(ctx context.Context, eventTicker string) ([]types.Market, error) {
	var markets []types.Market
	cursor := ""

	for {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}

		req := c.http.R().
			SetContext(ctx).
			SetQueryParam("event_ticker", eventTicker).
			SetQueryParam("limit", "200")
		if cursor != "" {
			req.SetQueryParam("cursor", cursor)
		}

		var result marketsResponse
		resp, err := req.SetResult(&result).Get("/markets")
		if err != nil {
			return nil, fmt.Errorf("get markets for %s: %w", eventTicker, err)
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, fmt.Errorf("get markets for %s: status %d: %s", eventTicker, resp.StatusCode(), resp.String())
		}

		for _, m := range result.Markets {
			markets = append(markets, m.toMarket())
		}

		if result.Cursor == "" {
			break
		}
		cursor = result.Cursor
	}

	c.logger.Debug("markets fetched", "event", eventTicker, "count", len(markets))
	return markets, nil
}
