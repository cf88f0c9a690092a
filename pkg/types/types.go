// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the trader — market snapshots,
// normalized weather readings, trading signals, and reason codes. It has no
// dependencies on internal packages, so it can be imported by any layer.
//
// Optional numeric fields (quotes, strikes, forecast values) are pointers
// rather than sentinel values: a 0-cent bid is a legitimate price and must
// be distinguishable from "no bid".
package types

import (
	"fmt"
	"time"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Decision is what a strategy wants done with a market: open a position,
// close one, or stay out.
type Decision string

const (
	DecisionBuy  Decision = "BUY"
	DecisionSell Decision = "SELL"
	DecisionHold Decision = "HOLD"
)

// Side is which outcome of a binary market a trade targets.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// ReasonCode annotates a Signal with why the strategy or gates decided the
// way they did. The set is closed; consumers switch on it.
type ReasonCode string

const (
	// Positive — support acting on the signal.
	ReasonStrongEdge      ReasonCode = "STRONG_EDGE"
	ReasonForecastExtreme ReasonCode = "FORECAST_EXTREME"
	ReasonSourcesAgree    ReasonCode = "SOURCES_AGREE"
	ReasonSpreadOK        ReasonCode = "SPREAD_OK"
	ReasonLiquidityOK     ReasonCode = "LIQUIDITY_OK"

	// Negative — block execution.
	ReasonInsufficientEdge ReasonCode = "INSUFFICIENT_EDGE"
	ReasonHighUncertainty  ReasonCode = "HIGH_UNCERTAINTY"
	ReasonWideSpread       ReasonCode = "WIDE_SPREAD"
	ReasonLowLiquidity     ReasonCode = "LOW_LIQUIDITY"
	ReasonStaleData        ReasonCode = "STALE_DATA"
	ReasonMissingData      ReasonCode = "MISSING_DATA"

	// Neutral.
	ReasonNoOpportunity ReasonCode = "NO_OPPORTUNITY"
)

// ————————————————————————————————————————————————————————————————————————
// Market & weather inputs
// ————————————————————————————————————————————————————————————————————————

// Market is a point-in-time snapshot of one binary temperature market.
// Prices are integer cents on a 0–100 scale. Quote fields are nil when the
// corresponding side of the book is empty.
type Market struct {
	Ticker       string   `json:"ticker"`
	YesBid       *int     `json:"yes_bid,omitempty"`
	YesAsk       *int     `json:"yes_ask,omitempty"`
	NoBid        *int     `json:"no_bid,omitempty"`
	NoAsk        *int     `json:"no_ask,omitempty"`
	Volume       int64    `json:"volume"`
	OpenInterest int64    `json:"open_interest"`
	StrikePrice  *float64 `json:"strike_price,omitempty"` // °F the market resolves against
	Status       string   `json:"status"`
}

// SpreadCents returns yes_ask − yes_bid. The second return is false when
// either side of the quote is missing.
func (m Market) SpreadCents() (int, bool) {
	if m.YesBid == nil || m.YesAsk == nil {
		return 0, false
	}
	return *m.YesAsk - *m.YesBid, true
}

// MidPrice returns (yes_bid + yes_ask) / 2 in cents. The second return is
// false when either side of the quote is missing.
func (m Market) MidPrice() (float64, bool) {
	if m.YesBid == nil || m.YesAsk == nil {
		return 0, false
	}
	return (float64(*m.YesBid) + float64(*m.YesAsk)) / 2, true
}

// WeatherReading is a normalized forecast for one city. Temperature is the
// forecast daily high in °F; ForecastStdDev is the provider's uncertainty
// estimate, nil when the provider doesn't publish one.
type WeatherReading struct {
	City           string    `json:"city"`
	Temperature    *float64  `json:"temperature,omitempty"`
	ForecastStdDev *float64  `json:"forecast_std_dev,omitempty"`
	ObservedAt     time.Time `json:"observed_at"`
}

// ————————————————————————————————————————————————————————————————————————
// Signals
// ————————————————————————————————————————————————————————————————————————

// SignalFeatures carries the diagnostic inputs behind a signal so a decision
// can be audited after the fact.
type SignalFeatures struct {
	ForecastHigh *float64 `json:"forecast_high,omitempty"` // °F
	Threshold    *float64 `json:"threshold,omitempty"`     // °F
	StdDev       float64  `json:"std_dev"`                 // °F
	MarketPrice  *float64 `json:"market_price,omitempty"`  // mid, cents
}

// Signal is the output of one strategy evaluation. It is constructed once
// per evaluation and immutable afterward; persistence belongs to callers.
//
// Invariants (enforced by Validate): PYes in [0, 1], Uncertainty ≥ 0,
// Decision one of BUY/SELL/HOLD, and Side set whenever Decision is BUY or
// SELL.
type Signal struct {
	Ticker      string         `json:"ticker"`
	PYes        float64        `json:"p_yes"`
	Uncertainty float64        `json:"uncertainty"`
	Edge        float64        `json:"edge"` // cents, signed
	Decision    Decision       `json:"decision"`
	Side        *Side          `json:"side,omitempty"`
	MaxPrice    *float64       `json:"max_price,omitempty"` // cents
	Reasons     []ReasonCode   `json:"reasons"`
	Features    SignalFeatures `json:"features"`
}

// NewSignal validates s and returns it. Violations are programmer errors at
// the construction boundary and are never silently clamped.
func NewSignal(s Signal) (Signal, error) {
	if err := s.Validate(); err != nil {
		return Signal{}, err
	}
	return s, nil
}

// Validate checks the Signal construction invariants.
func (s Signal) Validate() error {
	if s.PYes < 0 || s.PYes > 1 {
		return fmt.Errorf("signal %s: p_yes %v outside [0, 1]", s.Ticker, s.PYes)
	}
	if s.Uncertainty < 0 {
		return fmt.Errorf("signal %s: uncertainty %v is negative", s.Ticker, s.Uncertainty)
	}
	switch s.Decision {
	case DecisionBuy, DecisionSell:
		if s.Side == nil {
			return fmt.Errorf("signal %s: decision %s requires a side", s.Ticker, s.Decision)
		}
	case DecisionHold:
	default:
		return fmt.Errorf("signal %s: unrecognized decision %q", s.Ticker, s.Decision)
	}
	if s.Side != nil && *s.Side != SideYes && *s.Side != SideNo {
		return fmt.Errorf("signal %s: unrecognized side %q", s.Ticker, *s.Side)
	}
	return nil
}
