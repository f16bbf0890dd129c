package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"satellite-trading-bot/internal/logging"
)

const (
	defaultEndpoint = "https://api.alternative.me/fng/?limit=1"
	cacheTTL        = 15 * time.Minute
)

// Score is the market-wide fear/greed reading on a 0-100 scale, where 0 is
// extreme fear and 100 extreme greed.
type Score struct {
	Value     float64
	Label     string // "Extreme Fear", "Fear", "Neutral", "Greed", "Extreme Greed"
	FetchedAt time.Time
}

// FearGreedResponse from alternative.me API
type FearGreedResponse struct {
	Name string `json:"name"`
	Data []struct {
		Value               string `json:"value"`
		ValueClassification string `json:"value_classification"`
		Timestamp           string `json:"timestamp"`
	} `json:"data"`
}

// Gauge fetches and caches the fear/greed index. Readings are cached for 15
// minutes; the upstream only updates a few times a day.
type Gauge struct {
	endpoint   string
	httpClient *http.Client
	log        *logging.Logger

	mu   sync.Mutex
	last Score
}

// NewGauge creates a gauge against the public alternative.me endpoint.
func NewGauge() *Gauge {
	return &Gauge{
		endpoint: defaultEndpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: logging.WithComponent("sentiment"),
	}
}

// Current returns the fear/greed score, refreshing from upstream when the
// cached reading is stale. A fetch failure with no usable cache returns an
// error; the caller decides whether to treat that as a trading veto.
func (g *Gauge) Current(ctx context.Context) (Score, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.last.FetchedAt.IsZero() && time.Since(g.last.FetchedAt) < cacheTTL {
		return g.last, nil
	}

	score, err := g.fetch(ctx)
	if err != nil {
		if !g.last.FetchedAt.IsZero() {
			g.log.Warn("Fear/greed fetch failed, serving stale reading", "error", err)
			return g.last, nil
		}
		return Score{}, err
	}

	g.last = score
	return score, nil
}

func (g *Gauge) fetch(ctx context.Context) (Score, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", g.endpoint, nil)
	if err != nil {
		return Score{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Score{}, fmt.Errorf("failed to fetch fear/greed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Score{}, fmt.Errorf("failed to read response: %w", err)
	}

	var fgResp FearGreedResponse
	if err := json.Unmarshal(body, &fgResp); err != nil {
		return Score{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(fgResp.Data) == 0 {
		return Score{}, fmt.Errorf("no data in response")
	}

	var value float64
	if _, err := fmt.Sscanf(fgResp.Data[0].Value, "%f", &value); err != nil {
		return Score{}, fmt.Errorf("unparseable index value %q", fgResp.Data[0].Value)
	}
	if value < 0 || value > 100 {
		return Score{}, fmt.Errorf("index value %v out of range", value)
	}

	return Score{
		Value:     value,
		Label:     fgResp.Data[0].ValueClassification,
		FetchedAt: time.Now(),
	}, nil
}
