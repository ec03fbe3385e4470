package perplexity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/transparency-atlas/backend/internal/metrics"
	"github.com/transparency-atlas/backend/pkg/circuitbreaker"
	"github.com/transparency-atlas/backend/pkg/logger"
	"github.com/transparency-atlas/backend/pkg/retry"
)

const DefaultBaseURL = "https://api.perplexity.ai"

type Request struct {
	Query            string `json:"query"`
	MaxResults       int    `json:"max_results"`
	MaxTokensPerPage int    `json:"max_tokens_per_page"`
}

type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Date    string `json:"date,omitempty"`
}

type Response struct {
	ID      string   `json:"id"`
	Results []Result `json:"results"`
}

// APIError is a non-2xx answer from the search API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("search returned status %d: %s", e.StatusCode, e.Body)
}

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Retry      *retry.Config
}

type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   time.Second,
		MaxDelay:       10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}
	if opts.Retry != nil {
		retryConfig = *opts.Retry
	}

	cb := circuitbreaker.New("search", circuitbreaker.Config{
		FailureThreshold: 3,
		Cooldown:         time.Minute,
		Logger:           logger.GetLogger(),
		OnStateChange: func(name string, _, to circuitbreaker.State) {
			metrics.CircuitState.WithLabelValues(name).Set(float64(to))
		},
	})

	return &Client{
		baseURL:     baseURL,
		apiKey:      opts.APIKey,
		httpClient:  httpClient,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

// Search runs one query. Authentication failures are not retried.
func (c *Client) Search(ctx context.Context, req Request) (*Response, error) {
	logger.Debug("Performing search",
		zap.String("query", req.Query),
		zap.Int("max_results", req.MaxResults),
	)

	var result *Response
	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.do(ctx, req)
			if err != nil {
				return err
			}
			result = resp
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	for i := range result.Results {
		result.Results[i].Snippet = CleanSnippet(result.Results[i].Snippet)
	}

	logger.Debug("Search completed", zap.Int("results", len(result.Results)))
	return result, nil
}

func (c *Client) do(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call search API: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, apiErr
		}
		return nil, retry.Permanent(apiErr)
	}

	var out Response
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to parse response: %w", err))
	}
	return &out, nil
}

// CleanSnippet strips markup some sources leave in snippets and collapses
// whitespace. Plain text passes through unchanged apart from whitespace.
func CleanSnippet(snippet string) string {
	text := snippet
	if strings.ContainsAny(snippet, "<>") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(snippet))
		if err == nil {
			doc.Find("script, style").Remove()
			text = doc.Text()
		}
	}
	return strings.Join(strings.Fields(text), " ")
}
