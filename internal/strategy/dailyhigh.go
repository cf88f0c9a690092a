package strategy

import (
	"log/slog"
	"math"

	"weather-trader/internal/config"
	"weather-trader/pkg/types"
)

// DailyHighTemp evaluates "daily high temperature exceeds strike" markets.
//
// Evaluation is deterministic and side-effect-free apart from logging: one
// forecast plus one market snapshot in, one immutable Signal out. Missing
// inputs never fail — they degrade to a HOLD carrying MISSING_DATA so
// callers can always count on a valid Signal.
type DailyHighTemp struct {
	cfg    config.StrategyConfig
	logger *slog.Logger
}

// NewDailyHighTemp creates the strategy with its tunables.
func NewDailyHighTemp(cfg config.StrategyConfig, logger *slog.Logger) *DailyHighTemp {
	return &DailyHighTemp{
		cfg:    cfg,
		logger: logger.With("component", "strategy"),
	}
}

// Evaluate turns a forecast and a market snapshot into a Signal.
//
// Blocking reasons accumulate in a fixed order (missing quote data, missing
// mid price, high uncertainty, insufficient edge) with duplicates
// suppressed; any of them turns the decision into a HOLD. Otherwise the
// signal is a BUY on whichever side the model says is cheap. The strategy
// does not verify spread or liquidity itself — that is the gates' job.
func (s *DailyHighTemp) Evaluate(weather types.WeatherReading, market types.Market) types.Signal {
	if weather.Temperature == nil {
		return s.missingData(market, types.SignalFeatures{
			Threshold: market.StrikePrice,
			StdDev:    s.cfg.DefaultStdDev,
		})
	}
	if market.StrikePrice == nil {
		return s.missingData(market, types.SignalFeatures{
			ForecastHigh: weather.Temperature,
			StdDev:       s.cfg.DefaultStdDev,
		})
	}

	forecastHigh := *weather.Temperature
	threshold := *market.StrikePrice
	stdDev := s.cfg.DefaultStdDev
	if weather.ForecastStdDev != nil {
		stdDev = *weather.ForecastStdDev
	}

	pYes := ThresholdProbability(forecastHigh, threshold, stdDev)

	// 10°F of forecast spread is treated as maximal uncertainty.
	uncertainty := math.Min(stdDev/10.0, 1.0)

	var marketPrice *float64
	if mid, ok := market.MidPrice(); ok {
		marketPrice = &mid
	}

	reasons := reasonList{}
	if market.YesBid == nil && market.YesAsk == nil {
		reasons.add(types.ReasonMissingData)
	}
	if marketPrice == nil {
		reasons.add(types.ReasonMissingData)
	}
	if uncertainty > s.cfg.MaxUncertainty {
		reasons.add(types.ReasonHighUncertainty)
	}

	// The candidate side follows the model: p_yes above a half means YES is
	// the cheap side, otherwise NO. Edge is measured for that side only.
	side := types.SideYes
	if pYes <= 0.5 {
		side = types.SideNo
	}
	edge := 0.0
	if marketPrice != nil {
		if side == types.SideYes {
			edge = Edge(pYes, *marketPrice, s.cfg.TransactionCost)
		} else {
			edge = (1-pYes)*100 - (100 - *marketPrice) - s.cfg.TransactionCost
		}
		if edge < s.cfg.MinEdge*100 {
			reasons.add(types.ReasonInsufficientEdge)
		}
	}

	features := types.SignalFeatures{
		ForecastHigh: &forecastHigh,
		Threshold:    &threshold,
		StdDev:       stdDev,
		MarketPrice:  marketPrice,
	}

	if len(reasons.codes) > 0 {
		sig := types.Signal{
			Ticker:      market.Ticker,
			PYes:        pYes,
			Uncertainty: uncertainty,
			Edge:        edge,
			Decision:    types.DecisionHold,
			Reasons:     reasons.codes,
			Features:    features,
		}
		s.logger.Debug("hold",
			"ticker", market.Ticker,
			"p_yes", pYes,
			"uncertainty", uncertainty,
			"edge", edge,
			"reasons", reasons.codes,
		)
		return sig
	}

	maxPrice := pYes*100 - s.cfg.TransactionCost
	if side == types.SideNo {
		maxPrice = (1-pYes)*100 - s.cfg.TransactionCost
	}

	sig := types.Signal{
		Ticker:      market.Ticker,
		PYes:        pYes,
		Uncertainty: uncertainty,
		Edge:        edge,
		Decision:    types.DecisionBuy,
		Side:        &side,
		MaxPrice:    &maxPrice,
		Reasons:     []types.ReasonCode{types.ReasonStrongEdge, types.ReasonSpreadOK},
		Features:    features,
	}
	s.logger.Info("trade signal",
		"ticker", market.Ticker,
		"side", side,
		"p_yes", pYes,
		"edge", edge,
		"max_price", maxPrice,
		"forecast_high", forecastHigh,
		"threshold", threshold,
	)
	return sig
}

// missingData is the HOLD shape returned when a required input is absent:
// a coin-flip probability, maximal uncertainty, zero edge.
func (s *DailyHighTemp) missingData(market types.Market, features types.SignalFeatures) types.Signal {
	s.logger.Debug("hold: missing data", "ticker", market.Ticker)
	return types.Signal{
		Ticker:      market.Ticker,
		PYes:        0.5,
		Uncertainty: 1.0,
		Edge:        0.0,
		Decision:    types.DecisionHold,
		Reasons:     []types.ReasonCode{types.ReasonMissingData},
		Features:    features,
	}
}

// reasonList is an insertion-ordered set of reason codes. Order is the
// evaluation order, so downstream assertions are deterministic.
type reasonList struct {
	codes []types.ReasonCode
}

func (r *reasonList) add(code types.ReasonCode) {
	for _, c := range r.codes {
		if c == code {
			return
		}
	}
	r.codes = append(r.codes, code)
}
