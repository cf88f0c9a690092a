// Package engine wires the weather and exchange clients to the strategy
// and gates.
//
// Each poll cycle it walks the configured cities: fetch the city's forecast,
// fetch the strike ladder for its daily-high event, evaluate every market,
// run the gates, journal the outcome, and emit a Decision for downstream
// order placement (which lives outside this process). Rate-limit metrics
// are logged periodically so throttling is visible in operation.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"weather-trader/internal/config"
	"weather-trader/internal/exchange"
	"weather-trader/internal/gates"
	"weather-trader/internal/journal"
	"weather-trader/internal/ratelimit"
	"weather-trader/internal/strategy"
	"weather-trader/internal/weather"
	"weather-trader/pkg/types"
)

const decisionBufferSize = 256

// Decision is one gated evaluation result, ready for an order-placement
// consumer.
type Decision struct {
	CycleID   string
	City      string
	Market    types.Market
	Signal    types.Signal
	Approved  bool
	Failures  []string
	Timestamp time.Time
}

// Engine orchestrates the fetch → evaluate → gate pipeline.
type Engine struct {
	cfg      config.Config
	weather  *weather.Client
	exchange *exchange.Client
	feed     *exchange.Feed // nil when the websocket is disabled
	strategy *strategy.DailyHighTemp
	gates    *gates.Checker
	limiters *ratelimit.Manager
	journal  *journal.Journal
	logger   *slog.Logger

	decisions chan Decision
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New builds the engine and its collaborators. The rate-limiter manager is
// owned by the caller; the engine registers one bucket per external API.
func New(cfg config.Config, limiters *ratelimit.Manager, logger *slog.Logger) (*Engine, error) {
	exchangeLimiter := limiters.GetLimiter("exchange", cfg.RateLimits.Exchange.Rate, cfg.RateLimits.Exchange.Capacity)
	weatherLimiter := limiters.GetLimiter("weather", cfg.RateLimits.Weather.Rate, cfg.RateLimits.Weather.Capacity)

	jrnl, err := journal.Open(cfg.Journal.DataDir)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:       cfg,
		weather:   weather.NewClient(cfg.API, weatherLimiter, logger),
		exchange:  exchange.NewClient(cfg.API, exchangeLimiter, logger),
		strategy:  strategy.NewDailyHighTemp(cfg.Strategy, logger),
		gates:     gates.NewChecker(cfg.Gates, logger),
		limiters:  limiters,
		journal:   jrnl,
		logger:    logger.With("component", "engine"),
		decisions: make(chan Decision, decisionBufferSize),
	}
	if cfg.Engine.UseWebsocket {
		e.feed = exchange.NewFeed(cfg.API.ExchangeWSURL, logger)
	}
	return e, nil
}

// Decisions returns the channel of gated evaluation results.
func (e *Engine) Decisions() <-chan Decision {
	return e.decisions
}

// Start launches the evaluation loop. Non-blocking.
func (e *Engine) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	if e.feed != nil {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			_ = e.feed.Run(ctx)
		}()
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(ctx)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.metricsLoop(ctx)
	}()

	e.logger.Info("engine started",
		"cities", len(e.cfg.Cities),
		"poll_interval", e.cfg.Engine.PollInterval,
		"websocket", e.feed != nil,
	)
	return nil
}

// Stop cancels the loops and waits for them to drain.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	if e.feed != nil {
		_ = e.feed.Close()
	}
	e.wg.Wait()
	_ = e.journal.Close()
	e.logger.Info("engine stopped")
}

func (e *Engine) run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.Engine.PollInterval)
	defer ticker.Stop()

	e.evaluateAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.evaluateAll(ctx)
		}
	}
}

// evaluateAll runs one full pass over the configured cities.
func (e *Engine) evaluateAll(ctx context.Context) {
	cycleID := uuid.NewString()

	for _, city := range e.cfg.Cities {
		if ctx.Err() != nil {
			return
		}
		e.evaluateCity(ctx, cycleID, city)
	}
}

func (e *Engine) evaluateCity(ctx context.Context, cycleID string, city config.CityConfig) {
	reading, err := e.weather.Forecast(ctx, city)
	if err != nil {
		if errors.Is(err, weather.ErrRateLimited) {
			e.logger.Warn("weather fetch rate limited, skipping city", "city", city.Name)
		} else {
			e.logger.Error("weather fetch failed", "city", city.Name, "error", err)
		}
		return
	}

	markets, err := e.exchange.MarketsForEvent(ctx, city.EventTicker)
	if err != nil {
		if errors.Is(err, exchange.ErrRateLimited) {
			e.logger.Warn("market fetch rate limited, skipping city", "city", city.Name)
		} else {
			e.logger.Error("market fetch failed", "city", city.Name, "event", city.EventTicker, "error", err)
		}
		return
	}

	if e.feed != nil {
		tickers := make([]string, 0, len(markets))
		for _, m := range markets {
			tickers = append(tickers, m.Ticker)
		}
		if err := e.feed.Subscribe(tickers); err != nil {
			e.logger.Warn("ticker subscribe failed", "city", city.Name, "error", err)
		}
	}

	for _, market := range markets {
		if market.Status != "" && market.Status != "active" {
			continue
		}
		if e.feed != nil {
			market = e.feed.Overlay(market, e.cfg.Engine.PollInterval)
		}

		sig := e.strategy.Evaluate(reading, market)
		approved, failures := e.gates.CheckAll(sig, market, e.cfg.Engine.Quantity)
		now := time.Now()

		if err := e.journal.Record(journal.Entry{
			CycleID:      cycleID,
			City:         city.Name,
			Ticker:       market.Ticker,
			Signal:       sig,
			GatesPassed:  approved,
			GateFailures: failures,
			EvaluatedAt:  now,
		}); err != nil {
			e.logger.Error("journal write failed", "ticker", market.Ticker, "error", err)
		}

		e.emit(Decision{
			CycleID:   cycleID,
			City:      city.Name,
			Market:    market,
			Signal:    sig,
			Approved:  approved,
			Failures:  failures,
			Timestamp: now,
		})

		if sig.Decision != types.DecisionHold {
			e.logger.Info("decision",
				"cycle", cycleID,
				"city", city.Name,
				"ticker", market.Ticker,
				"decision", sig.Decision,
				"approved", approved,
				"failures", failures,
			)
		}
	}
}

// emit sends a decision to the consumer (non-blocking). If nothing drains
// the channel fast enough the oldest pending decision is sacrificed for
// the newest.
func (e *Engine) emit(d Decision) {
	select {
	case e.decisions <- d:
	default:
		select {
		case <-e.decisions:
		default:
		}
		select {
		case e.decisions <- d:
		default:
		}
	}
}

func (e *Engine) metricsLoop(ctx context.Context) {
	interval := e.cfg.Engine.MetricsInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for name, m := range e.limiters.AllMetrics() {
				e.logger.Info("rate limit metrics",
					"api", name,
					"total", m.TotalRequests,
					"throttled", m.ThrottledRequests,
					"rejected", m.RejectedRequests,
					"avg_wait", m.AvgWaitTime(),
				)
			}
		}
	}
}
