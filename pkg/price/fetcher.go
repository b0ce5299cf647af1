package price

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// FeedFetcher queries a CoinGecko-style simple-price endpoint:
// GET <baseURL>?ids=<sym,sym>&vs_currencies=usd returning
// {"<sym>": {"usd": <price>}}.
type FeedFetcher struct {
	baseURL string
	client  *http.Client
}

// NewFeedFetcher creates a fetcher against the given simple-price URL.
func NewFeedFetcher(baseURL string) *FeedFetcher {
	return &FeedFetcher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (f *FeedFetcher) Fetch(ctx context.Context, symbols []string) (map[string]float64, error) {
	query := url.Values{}
	query.Set("ids", strings.Join(symbols, ","))
	query.Set("vs_currencies", "usd")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build price request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("price feed request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price feed returned status %d", resp.StatusCode)
	}

	var body map[string]map[string]float64

	err = json.NewDecoder(resp.Body).Decode(&body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode price feed response: %w", err)
	}

	prices := make(map[string]float64, len(body))

	for _, symbol := range symbols {
		if quote, ok := body[symbol]; ok {
			if usd, ok := quote["usd"]; ok {
				prices[symbol] = usd
			}
		}
	}

	return prices, nil
}
