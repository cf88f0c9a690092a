package strategy

import (
	"log/slog"
	"math"
	"os"
	"reflect"
	"testing"

	"weather-trader/internal/config"
	"weather-trader/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func defaultParams() config.StrategyConfig {
	return config.StrategyConfig{
		MinEdge:         0.03,
		MaxUncertainty:  0.30,
		DefaultStdDev:   3.0,
		TransactionCost: 1.5,
	}
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func goodMarket() types.Market {
	return types.Market{
		Ticker:       "HIGHNY-23AUG26-T32",
		YesBid:       intPtr(45),
		YesAsk:       intPtr(48),
		Volume:       1000,
		OpenInterest: 5000,
		StrikePrice:  floatPtr(32.0),
		Status:       "active",
	}
}

func goodWeather() types.WeatherReading {
	return types.WeatherReading{
		City:           "New York",
		Temperature:    floatPtr(42.0),
		ForecastStdDev: floatPtr(3.0),
	}
}

func TestEvaluateBuyYesWhenForecastWellAboveStrike(t *testing.T) {
	t.Parallel()
	s := NewDailyHighTemp(defaultParams(), testLogger())

	// Forecast 42°F vs strike 32°F with σ=3 → fair value ~99.96¢ against a
	// ~46.5¢ mid: a strong yes-side buy.
	sig := s.Evaluate(goodWeather(), goodMarket())

	if sig.Decision != types.DecisionBuy {
		t.Fatalf("Decision = %s, want BUY (reasons %v)", sig.Decision, sig.Reasons)
	}
	if sig.PYes <= 0.5 {
		t.Errorf("PYes = %v, want > 0.5", sig.PYes)
	}
	if sig.Side == nil || *sig.Side != types.SideYes {
		t.Errorf("Side = %v, want yes", sig.Side)
	}
	if err := sig.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	wantEdge := sig.PYes*100 - 46.5 - 1.5
	if math.Abs(sig.Edge-wantEdge) > 1e-9 {
		t.Errorf("Edge = %v, want %v", sig.Edge, wantEdge)
	}
	if sig.MaxPrice == nil {
		t.Fatal("MaxPrice is nil on a BUY signal")
	}
	if want := sig.PYes*100 - 1.5; math.Abs(*sig.MaxPrice-want) > 1e-9 {
		t.Errorf("MaxPrice = %v, want %v", *sig.MaxPrice, want)
	}

	wantReasons := []types.ReasonCode{types.ReasonStrongEdge, types.ReasonSpreadOK}
	if !reflect.DeepEqual(sig.Reasons, wantReasons) {
		t.Errorf("Reasons = %v, want %v", sig.Reasons, wantReasons)
	}
}

func TestEvaluateBuyNoWhenForecastWellBelowStrike(t *testing.T) {
	t.Parallel()
	s := NewDailyHighTemp(defaultParams(), testLogger())

	weather := goodWeather()
	weather.Temperature = floatPtr(22.0) // 10°F below strike
	sig := s.Evaluate(weather, goodMarket())

	if sig.PYes >= 0.5 {
		t.Fatalf("PYes = %v, want < 0.5", sig.PYes)
	}
	if sig.Decision != types.DecisionBuy {
		t.Fatalf("Decision = %s, want BUY (reasons %v)", sig.Decision, sig.Reasons)
	}
	if sig.Side == nil || *sig.Side != types.SideNo {
		t.Errorf("Side = %v, want no", sig.Side)
	}

	// no-side edge: (1−p)*100 − (100 − mid) − cost
	wantEdge := (1-sig.PYes)*100 - (100 - 46.5) - 1.5
	if math.Abs(sig.Edge-wantEdge) > 1e-9 {
		t.Errorf("Edge = %v, want %v", sig.Edge, wantEdge)
	}
	if sig.MaxPrice == nil {
		t.Fatal("MaxPrice is nil on a BUY signal")
	}
	if want := (1-sig.PYes)*100 - 1.5; math.Abs(*sig.MaxPrice-want) > 1e-9 {
		t.Errorf("MaxPrice = %v, want %v", *sig.MaxPrice, want)
	}
}

func TestEvaluateForecastAtStrikeIsCoinFlip(t *testing.T) {
	t.Parallel()
	s := NewDailyHighTemp(defaultParams(), testLogger())

	weather := goodWeather()
	weather.Temperature = floatPtr(32.0) // exactly at strike
	sig := s.Evaluate(weather, goodMarket())

	if math.Abs(sig.PYes-0.5) > 0.01 {
		t.Errorf("PYes = %v, want 0.5 ± 0.01", sig.PYes)
	}
}

func TestEvaluateMissingTemperature(t *testing.T) {
	t.Parallel()
	s := NewDailyHighTemp(defaultParams(), testLogger())

	sig := s.Evaluate(types.WeatherReading{City: "New York"}, goodMarket())

	if sig.Decision != types.DecisionHold {
		t.Fatalf("Decision = %s, want HOLD", sig.Decision)
	}
	if sig.PYes != 0.5 || sig.Uncertainty != 1.0 || sig.Edge != 0.0 {
		t.Errorf("got (p=%v, u=%v, edge=%v), want (0.5, 1.0, 0.0)", sig.PYes, sig.Uncertainty, sig.Edge)
	}
	if !reflect.DeepEqual(sig.Reasons, []types.ReasonCode{types.ReasonMissingData}) {
		t.Errorf("Reasons = %v, want [MISSING_DATA]", sig.Reasons)
	}
	if sig.Side != nil || sig.MaxPrice != nil {
		t.Error("HOLD signal must have nil side and max price")
	}
	if sig.Features.Threshold == nil || *sig.Features.Threshold != 32.0 {
		t.Errorf("Features.Threshold = %v, want 32.0", sig.Features.Threshold)
	}
	if sig.Features.StdDev != 3.0 {
		t.Errorf("Features.StdDev = %v, want configured default 3.0", sig.Features.StdDev)
	}
}

func TestEvaluateMissingStrike(t *testing.T) {
	t.Parallel()
	s := NewDailyHighTemp(defaultParams(), testLogger())

	market := goodMarket()
	market.StrikePrice = nil
	sig := s.Evaluate(goodWeather(), market)

	if sig.Decision != types.DecisionHold {
		t.Fatalf("Decision = %s, want HOLD", sig.Decision)
	}
	if !reflect.DeepEqual(sig.Reasons, []types.ReasonCode{types.ReasonMissingData}) {
		t.Errorf("Reasons = %v, want [MISSING_DATA]", sig.Reasons)
	}
	if sig.Features.ForecastHigh == nil || *sig.Features.ForecastHigh != 42.0 {
		t.Errorf("Features.ForecastHigh = %v, want 42.0", sig.Features.ForecastHigh)
	}
}

func TestEvaluateMissingQuotesDoesNotDuplicateMissingData(t *testing.T) {
	t.Parallel()
	s := NewDailyHighTemp(defaultParams(), testLogger())

	// Both quote sides absent trips the no-quote check AND the no-mid
	// check; the reason must appear once.
	market := goodMarket()
	market.YesBid = nil
	market.YesAsk = nil
	sig := s.Evaluate(goodWeather(), market)

	if sig.Decision != types.DecisionHold {
		t.Fatalf("Decision = %s, want HOLD", sig.Decision)
	}
	if !reflect.DeepEqual(sig.Reasons, []types.ReasonCode{types.ReasonMissingData}) {
		t.Errorf("Reasons = %v, want exactly one MISSING_DATA", sig.Reasons)
	}
	if sig.Edge != 0.0 {
		t.Errorf("Edge = %v, want 0.0 when mid price was never available", sig.Edge)
	}
	if sig.Features.MarketPrice != nil {
		t.Errorf("Features.MarketPrice = %v, want nil", *sig.Features.MarketPrice)
	}
}

func TestEvaluateOneSidedQuoteStillMissingData(t *testing.T) {
	t.Parallel()
	s := NewDailyHighTemp(defaultParams(), testLogger())

	// Bid present, ask missing: mid is undefined even though a quote exists.
	market := goodMarket()
	market.YesAsk = nil
	sig := s.Evaluate(goodWeather(), market)

	if sig.Decision != types.DecisionHold {
		t.Fatalf("Decision = %s, want HOLD", sig.Decision)
	}
	if !reflect.DeepEqual(sig.Reasons, []types.ReasonCode{types.ReasonMissingData}) {
		t.Errorf("Reasons = %v, want [MISSING_DATA]", sig.Reasons)
	}
}

func TestEvaluateHighUncertaintyBlocks(t *testing.T) {
	t.Parallel()
	s := NewDailyHighTemp(defaultParams(), testLogger())

	weather := goodWeather()
	weather.ForecastStdDev = floatPtr(8.0) // uncertainty 0.8 > 0.30
	sig := s.Evaluate(weather, goodMarket())

	if sig.Decision != types.DecisionHold {
		t.Fatalf("Decision = %s, want HOLD", sig.Decision)
	}
	if math.Abs(sig.Uncertainty-0.8) > 1e-12 {
		t.Errorf("Uncertainty = %v, want 0.8", sig.Uncertainty)
	}
	if sig.Reasons[0] != types.ReasonHighUncertainty {
		t.Errorf("Reasons = %v, want HIGH_UNCERTAINTY first", sig.Reasons)
	}
	// Edge is still computed and reported even though the block was
	// uncertainty, not edge.
	if sig.Edge == 0.0 {
		t.Error("Edge = 0.0, want last computed trade-side edge")
	}
}

func TestEvaluateUncertaintyCappedAtOne(t *testing.T) {
	t.Parallel()
	s := NewDailyHighTemp(defaultParams(), testLogger())

	weather := goodWeather()
	weather.ForecastStdDev = floatPtr(25.0)
	sig := s.Evaluate(weather, goodMarket())

	if sig.Uncertainty != 1.0 {
		t.Errorf("Uncertainty = %v, want capped at 1.0", sig.Uncertainty)
	}
}

func TestEvaluateInsufficientEdge(t *testing.T) {
	t.Parallel()
	s := NewDailyHighTemp(defaultParams(), testLogger())

	// Forecast at the strike → fair value ~50¢; market mid 46.5¢ leaves
	// ~2¢ of no-side edge after the 1.5¢ cost, below the 3¢ floor.
	weather := goodWeather()
	weather.Temperature = floatPtr(32.0)
	sig := s.Evaluate(weather, goodMarket())

	if sig.Decision != types.DecisionHold {
		t.Fatalf("Decision = %s, want HOLD", sig.Decision)
	}
	if !reflect.DeepEqual(sig.Reasons, []types.ReasonCode{types.ReasonInsufficientEdge}) {
		t.Errorf("Reasons = %v, want [INSUFFICIENT_EDGE]", sig.Reasons)
	}
	if sig.Edge >= 3.0 {
		t.Errorf("Edge = %v, want below the 3¢ minimum", sig.Edge)
	}
}

func TestEvaluateUsesDefaultStdDevWhenProviderHasNone(t *testing.T) {
	t.Parallel()
	s := NewDailyHighTemp(defaultParams(), testLogger())

	weather := goodWeather()
	weather.ForecastStdDev = nil
	sig := s.Evaluate(weather, goodMarket())

	if sig.Features.StdDev != 3.0 {
		t.Errorf("Features.StdDev = %v, want default 3.0", sig.Features.StdDev)
	}
	if sig.Decision != types.DecisionBuy {
		t.Errorf("Decision = %s, want BUY", sig.Decision)
	}
}

func TestEvaluateFeaturesAlwaysPopulated(t *testing.T) {
	t.Parallel()
	s := NewDailyHighTemp(defaultParams(), testLogger())

	sig := s.Evaluate(goodWeather(), goodMarket())

	f := sig.Features
	if f.ForecastHigh == nil || *f.ForecastHigh != 42.0 {
		t.Errorf("ForecastHigh = %v, want 42.0", f.ForecastHigh)
	}
	if f.Threshold == nil || *f.Threshold != 32.0 {
		t.Errorf("Threshold = %v, want 32.0", f.Threshold)
	}
	if f.StdDev != 3.0 {
		t.Errorf("StdDev = %v, want 3.0", f.StdDev)
	}
	if f.MarketPrice == nil || *f.MarketPrice != 46.5 {
		t.Errorf("MarketPrice = %v, want 46.5", f.MarketPrice)
	}
}
