package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/clinical-ddx-server/internal/domain"
)

// Searcher retrieves ranked evidence chunks for a free-text query
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]domain.EvidenceItem, error)
}

// HTTPConfig represents configuration for the evidence search HTTP client
type HTTPConfig struct {
	BaseURL   string        `json:"base_url"`
	Timeout   time.Duration `json:"timeout"`
	RateLimit float64       `json:"rate_limit"` // requests per second
	RateBurst int           `json:"rate_burst"`
}

// searchResponse represents the JSON response from the evidence search service
type searchResponse struct {
	Results []struct {
		ID         string  `json:"id"`
		Text       string  `json:"text"`
		Similarity float64 `json:"similarity"`
		DatasetTag string  `json:"dataset_tag"`
		Section    string  `json:"section"`
	} `json:"results"`
}

// HTTPClient queries the evidence search service over REST
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	rateLimit  *rate.Limiter
}

// NewHTTPClient creates a new evidence search client
func NewHTTPClient(config HTTPConfig) *HTTPClient {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 20
	}
	if config.RateBurst == 0 {
		config.RateBurst = 5
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst),
	}
}

// Search queries the evidence service and returns similarity-ranked chunks
func (c *HTTPClient) Search(ctx context.Context, query string, limit int) ([]domain.EvidenceItem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}

	if err := c.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	endpoint := fmt.Sprintf("%s/search?q=%s&limit=%s",
		c.baseURL, url.QueryEscape(query), strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("evidence search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("evidence search returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	items := make([]domain.EvidenceItem, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		items = append(items, domain.EvidenceItem{
			ID:         r.ID,
			Text:       r.Text,
			Similarity: r.Similarity,
			DatasetTag: r.DatasetTag,
			Section:    r.Section,
		})
	}
	return items, nil
}
