package fdcapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/fdcscrape/scraper/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	maxAttempts  = 3
	maxErrorBody = 1024
	userAgent    = "fdcscrape/1.0"
)

// SearchFood is one hit of the foods search endpoint
type SearchFood struct {
	FdcID       int    `json:"fdcId"`
	Description string `json:"description"`
	DataType    string `json:"dataType"`
}

// SearchResponse is the body of /v1/foods/search
type SearchResponse struct {
	TotalHits int          `json:"totalHits"`
	Foods     []SearchFood `json:"foods"`
}

// ClientConfig holds FoodData Central API settings
type ClientConfig struct {
	APIKey            string
	BaseURL           string
	DataType          string // comma-separated, e.g. "Foundation"
	DetailURLTemplate string // %d is the FDC id
	PageSize          int
}

// Client handles communication with the FoodData Central API. It can
// stand in for the browser search page: descriptions come from the search
// endpoint and detail links are built from the FDC id.
type Client struct {
	httpClient  *http.Client
	config      ClientConfig
	rateLimiter *rate.Limiter
	retryBase   time.Duration
	logger      zerolog.Logger

	mu   sync.Mutex
	last map[string]int // description -> FDC id of the latest search
}

var _ domain.SearchPage = (*Client)(nil)

// NewClient creates a new FDC API client
func NewClient(config ClientConfig, logger zerolog.Logger) *Client {
	if config.PageSize <= 0 {
		config.PageSize = 10
	}
	// FDC allows 1000 requests per hour, about 0.278 per second
	limiter := rate.NewLimiter(rate.Limit(0.278), 10)

	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		config:      config,
		rateLimiter: limiter,
		retryBase:   500 * time.Millisecond,
		logger:      logger.With().Str("component", "fdcapi").Logger(),
	}
}

// exponentialBackoff returns the wait before retrying after attempt
func exponentialBackoff(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(1<<(attempt-1))
}

// readLimitedBody reads at most limit bytes of body
func readLimitedBody(body io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, limit))
}

// doRequest executes an HTTP GET request with proper headers
func (c *Client) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFDCAPIFailure, err)
	}
	return resp, nil
}

// SearchFoods queries /v1/foods/search. Server errors and 429 are retried;
// other client errors are not. An empty result is not an error.
func (c *Client) SearchFoods(ctx context.Context, query string) (*SearchResponse, error) {
	params := url.Values{}
	params.Add("query", query)
	params.Add("api_key", c.config.APIKey)
	if c.config.DataType != "" {
		params.Add("dataType", c.config.DataType)
	}
	params.Add("pageSize", strconv.Itoa(c.config.PageSize))
	reqURL := fmt.Sprintf("%s/v1/foods/search?%s", c.config.BaseURL, params.Encode())

	logger := c.logger.With().Str("query", query).Logger()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(exponentialBackoff(c.retryBase, attempt-1)):
			}
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		resp, err := c.doRequest(ctx, reqURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn().Err(err).Int("attempt", attempt).Msg("request failed")
			lastErr = err
			continue
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := readLimitedBody(resp.Body, maxErrorBody)
			resp.Body.Close()
			logger.Warn().Int("status", resp.StatusCode).Int("attempt", attempt).Str("body", string(body)).Msg("API error")

			lastErr = fmt.Errorf("%w: status %d", domain.ErrFDCAPIFailure, resp.StatusCode)
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return nil, lastErr
			}
			continue
		}

		var searchResp SearchResponse
		err = json.NewDecoder(resp.Body).Decode(&searchResp)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}

		logger.Debug().Int("foods", len(searchResp.Foods)).Int("total_hits", searchResp.TotalHits).Msg("search complete")
		return &searchResp, nil
	}

	logger.Error().Err(lastErr).Msg("all retries failed")
	return nil, lastErr
}

// Search returns the descriptions of the search hits, in API order
func (c *Client) Search(ctx context.Context, query string) ([]string, error) {
	resp, err := c.SearchFoods(ctx, query)
	if err != nil {
		return nil, err
	}

	last := make(map[string]int, len(resp.Foods))
	descriptions := make([]string, 0, len(resp.Foods))
	for _, f := range resp.Foods {
		if f.Description == "" {
			continue
		}
		if _, dup := last[f.Description]; !dup {
			last[f.Description] = f.FdcID
		}
		descriptions = append(descriptions, f.Description)
	}

	c.mu.Lock()
	c.last = last
	c.mu.Unlock()
	return descriptions, nil
}

// LinkFor builds the detail page link of a description from the latest search
func (c *Client) LinkFor(ctx context.Context, description string) (string, error) {
	c.mu.Lock()
	id, ok := c.last[description]
	c.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: link %q", domain.ErrElementNotFound, description)
	}
	return fmt.Sprintf(c.config.DetailURLTemplate, id), nil
}
