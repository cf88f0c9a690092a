// Package strategy converts weather forecasts and market quotes into
// trading signals for binary "daily high exceeds threshold" markets.
//
// The probability model is deliberately simple: the realized daily high is
// assumed normally distributed around the forecast with a configurable
// standard deviation. P(high ≥ strike) then prices the YES side directly,
// and the edge is that fair value minus the market's mid, minus costs,
// all in cents on a 0–100 scale.
package strategy

import "math"

// normCDF is the standard normal CDF Φ(z), computed from the exact error
// function. Accurate to well below 1e-9 over the range that matters here.
func normCDF(z float64) float64 {
	return 0.5 * (1 + math.Erf(z/math.Sqrt2))
}

// ThresholdProbability returns P(value ≥ threshold) for a forecast value
// that is normally distributed with mean forecast and standard deviation
// stdDev. stdDev ≤ 0 degenerates to a step function: 1 if the forecast
// meets the threshold, else 0, never a fractional value.
func ThresholdProbability(forecast, threshold, stdDev float64) float64 {
	if stdDev <= 0 {
		if forecast >= threshold {
			return 1.0
		}
		return 0.0
	}
	return 1 - normCDF((threshold-forecast)/stdDev)
}

// Edge returns the expected value of a yes-side trade in cents: the
// probability-weighted payout minus the market price minus transaction
// costs. marketPrice is in cents on a 0–100 scale.
func Edge(pYes, marketPrice, transactionCost float64) float64 {
	return pYes*100 - marketPrice - transactionCost
}
