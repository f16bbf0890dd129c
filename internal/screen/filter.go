package screen

import (
	"fmt"

	"satellite-trading-bot/config"
	"satellite-trading-bot/internal/exchange"
)

const (
	rsiPeriod        = 14
	volatilityWindow = 3
	maxVolatility    = 0.05

	// Momentum band that still leaves headroom before overbought.
	sweetSpotLow  = 45.0
	sweetSpotHigh = 60.0
)

// Verdict is the outcome of the technical pre-screen for one pair.
type Verdict struct {
	Candidate   bool
	Reason      string
	ShortRSI    float64
	ConfirmRSI  float64
	Volatility  float64
	QuoteVolume float64
}

// Filter is the cheap technical gate that runs before any LLM call. It only
// decides whether a pair is worth analyzing; it never decides to trade.
type Filter struct {
	cfg *config.Config
}

// NewFilter creates a candidate filter reading thresholds from cfg.
func NewFilter(cfg *config.Config) *Filter {
	return &Filter{cfg: cfg}
}

// Evaluate screens a pair from its short-timeframe and confirmation-timeframe
// candles. Candles are ordered oldest first. A pair passes when it is liquid,
// not in a volatility spike, not overbought on the confirmation timeframe,
// and either oversold or inside the momentum sweet spot on the short one.
func (f *Filter) Evaluate(short, confirm []exchange.Candle) Verdict {
	p := f.cfg.Snapshot()

	v := Verdict{
		ShortRSI:   CalculateRSI(short, rsiPeriod),
		ConfirmRSI: CalculateRSI(confirm, rsiPeriod),
		Volatility: RecentVolatility(short, volatilityWindow),
	}
	if len(short) > 0 {
		v.QuoteVolume = short[len(short)-1].QuoteVolume
	}

	if len(short) < rsiPeriod+1 || len(confirm) < rsiPeriod+1 {
		v.Reason = "insufficient candle history"
		return v
	}

	if v.QuoteVolume < p.Technicals.MinVolumeUSDT {
		v.Reason = fmt.Sprintf("quote volume %.0f below minimum %.0f", v.QuoteVolume, p.Technicals.MinVolumeUSDT)
		return v
	}

	if v.Volatility > maxVolatility {
		v.Reason = fmt.Sprintf("volatility %.4f above ceiling %.4f", v.Volatility, maxVolatility)
		return v
	}

	if v.ConfirmRSI >= p.Technicals.RSIOverbought {
		v.Reason = fmt.Sprintf("confirmation RSI %.1f overbought", v.ConfirmRSI)
		return v
	}

	switch {
	case v.ShortRSI < p.Technicals.RSIOversold:
		v.Candidate = true
		v.Reason = fmt.Sprintf("oversold dip, RSI %.1f", v.ShortRSI)
	case v.ShortRSI >= sweetSpotLow && v.ShortRSI <= sweetSpotHigh:
		v.Candidate = true
		v.Reason = fmt.Sprintf("momentum sweet spot, RSI %.1f", v.ShortRSI)
	default:
		v.Reason = fmt.Sprintf("RSI %.1f outside entry bands", v.ShortRSI)
	}

	return v
}
