package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"satellite-trading-bot/config"
	"satellite-trading-bot/internal/logging"
)

// Headline is one news item for a pair.
type Headline struct {
	Title       string
	Source      string
	URL         string
	PublishedAt time.Time
}

// Feed pulls recent headlines from the CryptoPanic API, filtered to the base
// currency of a pair.
type Feed struct {
	apiKey     string
	baseURL    string
	maxItems   int
	httpClient *http.Client
	log        *logging.Logger
}

// NewFeed creates a headline feed from config.
func NewFeed(cfg config.NewsConfig) *Feed {
	maxItems := cfg.MaxItems
	if maxItems <= 0 {
		maxItems = 5
	}
	return &Feed{
		apiKey:   cfg.APIKey,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		maxItems: maxItems,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: logging.WithComponent("news"),
	}
}

// IsConfigured reports whether the feed has an API token.
func (f *Feed) IsConfigured() bool {
	return f.apiKey != ""
}

// Latest returns the most recent hot headlines mentioning the pair's base
// currency, newest first, capped at the configured max.
func (f *Feed) Latest(ctx context.Context, pair string) ([]Headline, error) {
	if !f.IsConfigured() {
		return nil, nil
	}

	currency := BaseCurrency(pair)
	reqURL := fmt.Sprintf("%s/posts/?auth_token=%s&currencies=%s&filter=hot",
		f.baseURL, url.QueryEscape(f.apiKey), url.QueryEscape(currency))

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news API returned %d", resp.StatusCode)
	}

	var result struct {
		Results []struct {
			Title  string `json:"title"`
			Source struct {
				Title string `json:"title"`
			} `json:"source"`
			URL         string `json:"url"`
			PublishedAt string `json:"published_at"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse news: %w", err)
	}

	headlines := make([]Headline, 0, len(result.Results))
	for _, item := range result.Results {
		if item.Title == "" {
			continue
		}
		publishedAt, _ := time.Parse(time.RFC3339, item.PublishedAt)
		headlines = append(headlines, Headline{
			Title:       item.Title,
			Source:      item.Source.Title,
			URL:         item.URL,
			PublishedAt: publishedAt,
		})
		if len(headlines) >= f.maxItems {
			break
		}
	}

	return headlines, nil
}

// BaseCurrency extracts the base asset symbol from a USDT-quoted pair,
// e.g. "SOLUSDT" -> "SOL".
func BaseCurrency(pair string) string {
	p := strings.ToUpper(pair)
	for _, quote := range []string{"USDT", "USDC", "BUSD", "BTC", "ETH"} {
		if strings.HasSuffix(p, quote) && len(p) > len(quote) {
			return strings.TrimSuffix(p, quote)
		}
	}
	return p
}
