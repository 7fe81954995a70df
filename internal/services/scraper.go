package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const apifyBaseURL = "https://api.apify.com/v2"

type ScrapeResult struct {
	Profiles   []map[string]any
	FailedURLs []string
}

// ScraperService fetches raw profile documents for canonical profile URLs.
type ScraperService interface {
	ScrapeProfiles(ctx context.Context, profileURLs []string) (*ScrapeResult, error)
}

type apifyScraper struct {
	token      string
	actorID    string
	baseURL    string
	httpClient *http.Client
}

func NewApifyScraper(token, actorID string) ScraperService {
	return &apifyScraper{
		token:   token,
		actorID: actorID,
		baseURL: apifyBaseURL,
		// the actor runs synchronously and can take minutes
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

type apifyInput struct {
	ProfileURLs []string `json:"profileUrls"`
}

// ScrapeProfiles runs the actor and waits for its dataset. URLs with no
// matching profile in the dataset are reported as failed.
func (a *apifyScraper) ScrapeProfiles(ctx context.Context, profileURLs []string) (*ScrapeResult, error) {
	if len(profileURLs) == 0 {
		return &ScrapeResult{}, nil
	}
	if a.token == "" {
		return nil, fmt.Errorf("apify token is not configured")
	}

	body, err := json.Marshal(apifyInput{ProfileURLs: profileURLs})
	if err != nil {
		return nil, fmt.Errorf("failed to encode actor input: %w", err)
	}

	endpoint := fmt.Sprintf("%s/acts/%s/run-sync-get-dataset-items?token=%s",
		a.baseURL, url.PathEscape(a.actorID), url.QueryEscape(a.token))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	log.Printf("🔄 Starting Apify scrape for %d profiles...\n", len(profileURLs))
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to run apify actor: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read apify response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("apify run failed with status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to decode apify dataset: %w", err)
	}
	log.Printf("✅ Retrieved %d profiles from Apify\n", len(items))

	return &ScrapeResult{
		Profiles:   items,
		FailedURLs: missingProfiles(profileURLs, items),
	}, nil
}

// missingProfiles matches requested URLs against returned profiles by
// canonical profile id, falling back to a case-insensitive URL match.
func missingProfiles(requested []string, profiles []map[string]any) []string {
	returned := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		u, _ := p["linkedinUrl"].(string)
		if u == "" {
			u, _ = p["linkedinPublicUrl"].(string)
		}
		if id, ok := ProfileID(u); ok {
			returned[id] = true
		}
		returned[strings.ToLower(u)] = true
	}

	failed := []string{}
	for _, u := range requested {
		if id, ok := ProfileID(u); ok && returned[id] {
			continue
		}
		if returned[strings.ToLower(u)] {
			continue
		}
		failed = append(failed, u)
	}
	return failed
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
