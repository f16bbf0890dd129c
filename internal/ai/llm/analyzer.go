package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"satellite-trading-bot/internal/logging"
)

// Sentiment and action labels the gate accepts from the model.
const (
	SentimentBullish = "BULLISH"
	SentimentBearish = "BEARISH"
	SentimentNeutral = "NEUTRAL"

	ImpactLow    = "LOW"
	ImpactMedium = "MEDIUM"
	ImpactHigh   = "HIGH"

	ActionBuy  = "BUY"
	ActionSell = "SELL"
	ActionFold = "FOLD"
)

const verdictCacheTTL = 6 * time.Hour

// NewsVerdict is the model's judgment of one headline for one pair.
type NewsVerdict struct {
	Sentiment         string  `json:"sentiment"`
	Impact            string  `json:"impact"`
	Confidence        float64 `json:"confidence"`
	TargetGainPercent float64 `json:"target_gain_percent"`
	SuggestedAction   string  `json:"suggested_action"`
	Reasoning         string  `json:"reasoning"`
}

// NewsAnalyzer runs headlines through the LLM and validates the structured
// verdict. Any failure - transport, parse, out-of-contract values - yields a
// nil verdict, which callers treat as FOLD.
type NewsAnalyzer struct {
	client *Client
	cache  *redis.Client // optional; nil disables caching
	log    *logging.Logger
}

// NewNewsAnalyzer creates an analyzer. cache may be nil.
func NewNewsAnalyzer(client *Client, cache *redis.Client) *NewsAnalyzer {
	return &NewsAnalyzer{
		client: client,
		cache:  cache,
		log:    logging.WithComponent("llm"),
	}
}

// IsConfigured reports whether the underlying client has an API key.
func (a *NewsAnalyzer) IsConfigured() bool {
	return a.client != nil && a.client.IsConfigured()
}

// AnalyzeNews evaluates a headline for a pair. Returns nil when no reliable
// verdict could be produced; the caller must not trade on a nil verdict.
func (a *NewsAnalyzer) AnalyzeNews(ctx context.Context, pair, headline string, currentPrice, shortRSI float64) *NewsVerdict {
	if !a.IsConfigured() || headline == "" {
		return nil
	}

	cacheKey := verdictCacheKey(pair, headline)
	if v := a.cached(ctx, cacheKey); v != nil {
		return v
	}

	prompt := BuildNewsPrompt(pair, headline, currentPrice, shortRSI)
	response, err := a.client.Complete(SystemPromptNewsAnalysis, prompt)
	if err != nil {
		a.log.Warn("News analysis failed", "pair", pair, "error", err)
		return nil
	}

	verdict, err := ParseNewsVerdict(response)
	if err != nil {
		a.log.Warn("News verdict rejected", "pair", pair, "error", err)
		return nil
	}

	a.store(ctx, cacheKey, verdict)
	return verdict
}

// ParseNewsVerdict decodes and validates a model response. The response must
// be the documented JSON object, optionally wrapped in a markdown code block.
func ParseNewsVerdict(response string) (*NewsVerdict, error) {
	clean := stripMarkdownCodeBlock(response)

	var v NewsVerdict
	if err := json.Unmarshal([]byte(clean), &v); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response: %w", err)
	}

	v.Sentiment = strings.ToUpper(strings.TrimSpace(v.Sentiment))
	v.Impact = strings.ToUpper(strings.TrimSpace(v.Impact))
	v.SuggestedAction = strings.ToUpper(strings.TrimSpace(v.SuggestedAction))

	switch v.Sentiment {
	case SentimentBullish, SentimentBearish, SentimentNeutral:
	default:
		return nil, fmt.Errorf("invalid sentiment %q", v.Sentiment)
	}
	switch v.Impact {
	case ImpactLow, ImpactMedium, ImpactHigh:
	default:
		return nil, fmt.Errorf("invalid impact %q", v.Impact)
	}
	switch v.SuggestedAction {
	case ActionBuy, ActionSell, ActionFold:
	default:
		return nil, fmt.Errorf("invalid suggested action %q", v.SuggestedAction)
	}
	if v.Confidence < 0 || v.Confidence > 100 {
		return nil, fmt.Errorf("confidence %v out of range", v.Confidence)
	}

	return &v, nil
}

// stripMarkdownCodeBlock removes markdown code block formatting from LLM responses
// Handles formats like: ```json\n{...}\n``` or ```\n{...}\n```
func stripMarkdownCodeBlock(response string) string {
	response = strings.TrimSpace(response)

	re := regexp.MustCompile("(?s)^```(?:json)?\\s*\\n?(.*?)\\n?```$")
	if matches := re.FindStringSubmatch(response); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	return response
}

func verdictCacheKey(pair, headline string) string {
	sum := sha256.Sum256([]byte(pair + "|" + headline))
	return "llm:verdict:" + hex.EncodeToString(sum[:16])
}

func (a *NewsAnalyzer) cached(ctx context.Context, key string) *NewsVerdict {
	if a.cache == nil {
		return nil
	}
	data, err := a.cache.Get(ctx, key).Bytes()
	if err != nil {
		return nil
	}
	var v NewsVerdict
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	return &v
}

func (a *NewsAnalyzer) store(ctx context.Context, key string, v *NewsVerdict) {
	if a.cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, key, data, verdictCacheTTL).Err(); err != nil {
		a.log.Debug("Verdict cache write failed", "error", err)
	}
}
