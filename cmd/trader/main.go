// Weather Trader — decides whether to trade "daily high temperature
// exceeds threshold" prediction markets for a set of U.S. cities.
//
// Architecture:
//
//	main.go              — entry point: loads config, starts engine, waits for SIGINT/SIGTERM
//	engine/engine.go     — orchestrator: fetch forecasts + markets, evaluate, gate, journal, emit
//	strategy/dailyhigh.go — normal-CDF pricing of the strike vs. the forecast high
//	gates/gates.go       — spread, liquidity, and edge checks before any order is considered
//	ratelimit/bucket.go  — token-bucket admission control on every outbound API call
//	exchange/client.go   — REST client for the prediction exchange's market data
//	exchange/ws.go       — ticker WebSocket feed with auto-reconnect (optional)
//	weather/client.go    — NWS-style forecast client, normalized readings
//	journal/journal.go   — JSON file journal of evaluation outcomes
//
// How it decides:
//
//	The forecast high is treated as normally distributed; P(high ≥ strike)
//	prices the YES side in cents. If that fair value beats the market mid
//	by more than the configured edge (after costs) and the forecast is
//	confident enough, the strategy emits a BUY on the cheap side. The
//	gates then reject anything with a wide spread, a thin book, or an
//	edge that no longer clears the floor. Order placement is downstream
//	of the Decisions channel and not part of this process.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"weather-trader/internal/config"
	"weather-trader/internal/engine"
	"weather-trader/internal/ratelimit"
)

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("WXT_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Set up logger
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	// One rate-limiter registry for the whole process, owned here and
	// injected into everything that makes outbound calls.
	limiters := ratelimit.NewManager()

	eng, err := engine.New(*cfg, limiters, logger)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	// Drain decisions; order placement consumes these in a separate system.
	go func() {
		for d := range eng.Decisions() {
			if d.Approved {
				logger.Info("approved decision awaiting execution",
					"ticker", d.Market.Ticker,
					"decision", d.Signal.Decision,
					"edge", d.Signal.Edge,
				)
			}
		}
	}()

	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	logger.Info("weather trader started",
		"cities", len(cfg.Cities),
		"poll_interval", cfg.Engine.PollInterval,
		"quantity", cfg.Engine.Quantity,
	)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	eng.Stop()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
