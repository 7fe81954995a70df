package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const tavilySearchURL = "https://api.tavily.com/search"

type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type SearchResponse struct {
	Answer  string         `json:"answer"`
	Results []SearchResult `json:"results"`
}

// SearchClient is the web-search capability behind company enrichment.
type SearchClient interface {
	Search(ctx context.Context, query string) (*SearchResponse, error)
}

type tavilyRequest struct {
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

type tavilyClient struct {
	apiKey     string
	maxResults int
	httpClient *http.Client
}

func NewTavilyClient(apiKey string, maxResults int) SearchClient {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &tavilyClient{
		apiKey:     apiKey,
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Search runs a basic-depth search with a synthesized answer.
func (t *tavilyClient) Search(ctx context.Context, query string) (*SearchResponse, error) {
	if t.apiKey == "" {
		return nil, fmt.Errorf("tavily api key is not configured")
	}

	body, err := json.Marshal(tavilyRequest{
		Query:         query,
		SearchDepth:   "basic",
		MaxResults:    t.maxResults,
		IncludeAnswer: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	return t.do(ctx, body, 0)
}

func (t *tavilyClient) do(ctx context.Context, body []byte, backoff int) (*SearchResponse, error) {
	if backoff != 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(backoff) * time.Millisecond):
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tavilySearchURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call tavily: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		if backoff == 0 {
			backoff = 500
		}
		backoff *= 5
		if backoff > 10000 {
			return nil, fmt.Errorf("rate limited: max retries exceeded")
		}
		return t.do(ctx, body, backoff)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily api returned status: %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tavily response: %w", err)
	}

	var out SearchResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode tavily response: %w", err)
	}
	return &out, nil
}
