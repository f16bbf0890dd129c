package llm

import (
	"fmt"
	"strings"
)

// SystemPromptNewsAnalysis evaluates one headline for short-term price impact
// on a specific pair. The response contract is strict JSON so the gate can
// fail closed on anything it cannot parse.
const SystemPromptNewsAnalysis = `You are a cryptocurrency market analyst. You evaluate a single news headline
for its likely short-term price impact on a specific trading pair.

Respond with ONLY a JSON object, no prose, in this exact structure:
{
  "sentiment": "BULLISH" | "BEARISH" | "NEUTRAL",
  "impact": "LOW" | "MEDIUM" | "HIGH",
  "confidence": 0-100,
  "target_gain_percent": <expected move size as a percent, 0 if none>,
  "suggested_action": "BUY" | "SELL" | "FOLD",
  "reasoning": "<one sentence>"
}

Be conservative with confidence. Confidence reflects how certain you are the
headline moves this pair, not how dramatic the headline sounds. Old, recycled,
or already-priced-in news is NEUTRAL with low confidence. Suggest FOLD
whenever the edge is unclear - missing a trade costs nothing.`

// BuildNewsPrompt renders the user prompt for a single headline evaluation.
func BuildNewsPrompt(pair, headline string, currentPrice, shortRSI float64) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Trading pair: %s\n", pair)
	if currentPrice > 0 {
		fmt.Fprintf(&b, "Current price: %.4f\n", currentPrice)
	}
	if shortRSI > 0 {
		fmt.Fprintf(&b, "Short-timeframe RSI: %.1f\n", shortRSI)
	}
	fmt.Fprintf(&b, "\nHeadline:\n%s\n", headline)

	return b.String()
}
