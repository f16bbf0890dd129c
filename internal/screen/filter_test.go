package screen

import (
	"testing"

	"satellite-trading-bot/config"
	"satellite-trading-bot/internal/exchange"
)

func screenConfig() *config.Config {
	cfg := config.Default()
	cfg.Technicals.RSIOversold = 30
	cfg.Technicals.RSIOverbought = 70
	cfg.Technicals.MinVolumeUSDT = 100000
	return cfg
}

func candles(closes []float64, quoteVolume float64) []exchange.Candle {
	out := make([]exchange.Candle, len(closes))
	for i, c := range closes {
		out[i] = exchange.Candle{
			Open:        c,
			High:        c * 1.001,
			Low:         c * 0.999,
			Close:       c,
			QuoteVolume: quoteVolume,
		}
	}
	return out
}

// rising yields RSI 100, falling yields RSI 0, neutral yields RSI 50,
// drifting yields RSI inside the sweet spot band.
func rising(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i)
	}
	return out
}

func falling(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 - float64(i)
	}
	return out
}

func neutral(n int) []float64 {
	out := make([]float64, n)
	price := 100.0
	for i := range out {
		if i%2 == 0 {
			price += 1.0
		} else {
			price -= 1.0
		}
		out[i] = price
	}
	return out
}

func drifting(n int) []float64 {
	out := make([]float64, n)
	price := 100.0
	for i := range out {
		if i%2 == 0 {
			price += 1.0
		} else {
			price -= 0.9
		}
		out[i] = price
	}
	return out
}

func TestEvaluateInsufficientHistory(t *testing.T) {
	f := NewFilter(screenConfig())
	v := f.Evaluate(candles(rising(5), 200000), candles(rising(5), 200000))
	if v.Candidate {
		t.Error("expected rejection with short history")
	}
}

func TestEvaluateVolumeVeto(t *testing.T) {
	f := NewFilter(screenConfig())
	v := f.Evaluate(candles(drifting(20), 50000), candles(neutral(20), 50000))
	if v.Candidate {
		t.Errorf("expected volume veto, got candidate: %s", v.Reason)
	}
}

func TestEvaluateVolatilityVeto(t *testing.T) {
	f := NewFilter(screenConfig())

	short := candles(drifting(20), 200000)
	// Spike in the last candle: 8% intrabar range.
	last := &short[len(short)-1]
	last.High = last.Close * 1.08
	last.Low = last.Close

	v := f.Evaluate(short, candles(neutral(20), 200000))
	if v.Candidate {
		t.Errorf("expected volatility veto, got candidate: %s", v.Reason)
	}
	if v.Volatility <= maxVolatility {
		t.Errorf("volatility = %v, expected above ceiling", v.Volatility)
	}
}

func TestEvaluateConfirmOverboughtVeto(t *testing.T) {
	f := NewFilter(screenConfig())
	v := f.Evaluate(candles(drifting(20), 200000), candles(rising(20), 200000))
	if v.Candidate {
		t.Errorf("expected overbought veto, got candidate: %s", v.Reason)
	}
	if v.ConfirmRSI < 70 {
		t.Errorf("confirm RSI = %v, expected overbought", v.ConfirmRSI)
	}
}

func TestEvaluateOversoldCandidate(t *testing.T) {
	f := NewFilter(screenConfig())
	v := f.Evaluate(candles(falling(20), 200000), candles(neutral(20), 200000))
	if !v.Candidate {
		t.Errorf("expected oversold candidate, got rejection: %s", v.Reason)
	}
	if v.ShortRSI >= 30 {
		t.Errorf("short RSI = %v, expected oversold", v.ShortRSI)
	}
}

func TestEvaluateSweetSpotCandidate(t *testing.T) {
	f := NewFilter(screenConfig())
	v := f.Evaluate(candles(drifting(20), 200000), candles(neutral(20), 200000))
	if !v.Candidate {
		t.Errorf("expected sweet spot candidate, got rejection: %s", v.Reason)
	}
	if v.ShortRSI < sweetSpotLow || v.ShortRSI > sweetSpotHigh {
		t.Errorf("short RSI = %v, expected inside [%v,%v]", v.ShortRSI, sweetSpotLow, sweetSpotHigh)
	}
}

func TestEvaluateRejectsOutsideBands(t *testing.T) {
	f := NewFilter(screenConfig())
	v := f.Evaluate(candles(rising(20), 200000), candles(neutral(20), 200000))
	if v.Candidate {
		t.Errorf("expected rejection outside entry bands, got candidate: %s", v.Reason)
	}
}

func TestCalculateRSIBounds(t *testing.T) {
	if got := CalculateRSI(candles(rising(20), 0), 14); got != 100 {
		t.Errorf("all-gains RSI = %v, want 100", got)
	}
	if got := CalculateRSI(candles(falling(20), 0), 14); got != 0 {
		t.Errorf("all-losses RSI = %v, want 0", got)
	}
	if got := CalculateRSI(candles(neutral(20), 0), 14); got != 50 {
		t.Errorf("balanced RSI = %v, want 50", got)
	}
	if got := CalculateRSI(candles(rising(5), 0), 14); got != 50 {
		t.Errorf("short-history RSI = %v, want neutral 50", got)
	}
}
