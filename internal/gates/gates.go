// Package gates validates trade signals against execution-quality limits
// before any order is placed.
//
// Each gate is an independent check on a Signal/Market pair:
//
//   - Spread:    the yes bid/ask spread must be tight enough that crossing
//     it doesn't eat the edge.
//   - Liquidity: volume + open interest must cover a multiple of the
//     intended quantity so the order can actually fill.
//   - Edge:      the signal's computed edge must clear a floor after costs.
//
// CheckAll runs every gate — no short-circuit — and reports each failure
// with a stable tag, so callers see the complete picture in one pass.
// Gates never raise: failures are ordinary results the caller acts on.
package gates

import (
	"log/slog"

	"weather-trader/internal/config"
	"weather-trader/pkg/types"
)

// Failure tags returned by CheckAll, listed in their fixed report order.
const (
	FailSpreadTooWide         = "spread_too_wide"
	FailInsufficientLiquidity = "insufficient_liquidity"
	FailInsufficientEdge      = "insufficient_edge"
)

// DefaultLiquidityMultiple is used when the configured liquidity multiple
// is unset.
const DefaultLiquidityMultiple = 3.0

// Checker runs pre-trade gates with thresholds resolved from configuration.
// It is stateless and safe for concurrent use.
type Checker struct {
	cfg    config.GatesConfig
	logger *slog.Logger
}

// NewChecker creates a gate checker.
func NewChecker(cfg config.GatesConfig, logger *slog.Logger) *Checker {
	return &Checker{
		cfg:    cfg,
		logger: logger.With("component", "gates"),
	}
}

// CheckSpread reports whether the market's yes spread is at most
// maxSpreadCents. A market missing either side of the quote fails.
func (g *Checker) CheckSpread(market types.Market, maxSpreadCents int) bool {
	spread, ok := market.SpreadCents()
	if !ok {
		g.logger.Debug("spread gate: no quote", "ticker", market.Ticker)
		return false
	}
	if spread > maxSpreadCents {
		g.logger.Debug("spread gate: too wide",
			"ticker", market.Ticker,
			"spread_cents", spread,
			"max_spread_cents", maxSpreadCents,
		)
		return false
	}
	g.logger.Debug("spread gate: ok", "ticker", market.Ticker, "spread_cents", spread)
	return true
}

// CheckLiquidity reports whether volume + open interest covers quantity
// times minLiquidityMultiple.
func (g *Checker) CheckLiquidity(market types.Market, quantity int, minLiquidityMultiple float64) bool {
	available := float64(market.Volume + market.OpenInterest)
	required := float64(quantity) * minLiquidityMultiple
	if available < required {
		g.logger.Debug("liquidity gate: insufficient",
			"ticker", market.Ticker,
			"available", available,
			"required", required,
		)
		return false
	}
	g.logger.Debug("liquidity gate: ok", "ticker", market.Ticker, "available", available)
	return true
}

// CheckEdge reports whether the signal's edge is at least minEdgeCents.
// It uses whatever edge the signal already carries, independent of its
// decision.
func (g *Checker) CheckEdge(signal types.Signal, minEdgeCents float64) bool {
	if signal.Edge < minEdgeCents {
		g.logger.Debug("edge gate: insufficient",
			"ticker", signal.Ticker,
			"edge_cents", signal.Edge,
			"min_edge_cents", minEdgeCents,
		)
		return false
	}
	g.logger.Debug("edge gate: ok", "ticker", signal.Ticker, "edge_cents", signal.Edge)
	return true
}

// CheckAll runs the spread, liquidity, and edge gates with thresholds from
// configuration. Every gate runs — failures don't short-circuit — and the
// returned tags appear in a fixed order: spread, liquidity, edge.
func (g *Checker) CheckAll(signal types.Signal, market types.Market, quantity int) (bool, []string) {
	maxSpread := g.cfg.SpreadMaxCents
	minEdgeCents := g.cfg.MinEdgeAfterCosts * 100
	multiple := g.cfg.MinLiquidityMultiple
	if multiple <= 0 {
		multiple = DefaultLiquidityMultiple
	}

	var failures []string
	if !g.CheckSpread(market, maxSpread) {
		failures = append(failures, FailSpreadTooWide)
	}
	if !g.CheckLiquidity(market, quantity, multiple) {
		failures = append(failures, FailInsufficientLiquidity)
	}
	if !g.CheckEdge(signal, minEdgeCents) {
		failures = append(failures, FailInsufficientEdge)
	}

	return len(failures) == 0, failures
}
