// Package weather fetches daily-high forecasts and normalizes them into
// the WeatherReading shape the strategy consumes.
//
// The client speaks the NWS gridpoint-forecast format: each configured
// city carries its own forecast URL (the grid coordinates were resolved
// once, offline) and the daily high is the first daytime period's
// temperature. Requests are gated by the injected rate-limit bucket —
// the NWS asks clients to stay around one request per second.
package weather

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
// rather than oversleeping its deadline.
var ErrRateLimited = errors.New("weather: rate limited")

// Client fetches forecasts from an NWS-style API.
type Client struct {
	http    *resty.Client
	limiter *ratelimit.TokenBucket
	logger  *slog.Logger
}

// NewClient creates a forecast client. Forecast URLs are absolute (one per
// city), so no base URL is set. The NWS requires an identifying User-Agent.
func NewClient(cfg config.APIConfig, limiter *ratelimit.TokenBucket, logger *slog.Logger) *Client {
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "weather-trader/1.0"
	}

	httpClient := resty.New().
		SetTimeout(15 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/geo+json")

	return &Client{
		http:    httpClient,
		limiter: limiter,
		logger:  logger.With("component", "weather"),
	}
}

// forecastResponse mirrors the NWS gridpoint forecast JSON.
type forecastResponse struct {
	Properties struct {
		Periods []forecastPeriod `json:"periods"`
	} `json:"properties"`
}

type forecastPeriod struct {
	Name            string   `json:"name"`
	StartTime       string   `json:"startTime"`
	IsDaytime       bool     `json:"isDaytime"`
	Temperature     *float64 `json:"temperature"`
	TemperatureUnit string   `json:"temperatureUnit"`
}

// Forecast fetches the city's forecast and returns a normalized reading.
// The forecast high is the first daytime period's temperature; a response
// with no usable period yields a reading with a nil Temperature, which the
// strategy turns into a MISSING_DATA hold.
func (c *Client) Forecast(ctx context.Context, city config.CityConfig) (types.WeatherReading, error) {
	ok, err := c.limiter.Acquire(ctx, 1)
	if err != nil {
		return types.WeatherReading{}, err
	}
	if !ok {
		return types.WeatherReading{}, ErrRateLimited
	}

	var result forecastResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get(city.ForecastURL)
	if err != nil {
		return types.WeatherReading{}, fmt.Errorf("forecast %s: %w", city.Name, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return types.WeatherReading{}, fmt.Errorf("forecast %s: status %d: %s", city.Name, resp.StatusCode(), resp.String())
	}

	reading := types.WeatherReading{
		City:       city.Name,
		ObservedAt: time.Now(),
	}
	for _, p := range result.Properties.Periods {
		if !p.IsDaytime || p.Temperature == nil {
			continue
		}
		high := *p.Temperature
		if p.TemperatureUnit == "C" {
			high = high*9/5 + 32
		}
		reading.Temperature = &high
		break
	}

	if reading.Temperature == nil {
		c.logger.Warn("forecast has no daytime period", "city", city.Name)
	} else {
		c.logger.Debug("forecast fetched", "city", city.Name, "high_f", *reading.Temperature)
	}
	return reading, nil
}
