package screen

import "satellite-trading-bot/internal/exchange"

// CalculateRSI computes a simple-average RSI over the last period changes.
// Returns the neutral 50 when there is not enough history.
func CalculateRSI(candles []exchange.Candle, period int) float64 {
	if len(candles) < period+1 {
		return 50.0
	}

	gains := 0.0
	losses := 0.0

	for i := len(candles) - period; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		return 100.0
	}

	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// RecentVolatility returns the largest single-candle range, measured as
// high/low - 1, over the last n candles.
func RecentVolatility(candles []exchange.Candle, n int) float64 {
	if len(candles) == 0 {
		return 0
	}
	start := len(candles) - n
	if start < 0 {
		start = 0
	}

	maxRange := 0.0
	for _, c := range candles[start:] {
		if c.Low <= 0 {
			continue
		}
		r := c.High/c.Low - 1
		if r > maxRange {
			maxRange = r
		}
	}
	return maxRange
}
