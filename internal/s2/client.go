package s2

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/matsen/arxgraph/internal/ratelimit"
)

const (
	// BaseURL is the Semantic Scholar graph API root.
	BaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultTimeout is the HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// paperFields limits the response to what the id-attachment loop reads.
	paperFields = "title,authors"
)

// Errors returned by the client.
var (
	ErrRateLimited  = errors.New("Semantic Scholar rate limit exceeded")
	ErrAPIError     = errors.New("Semantic Scholar API error")
	ErrNetworkError = errors.New("network error communicating with Semantic Scholar")
)

// Client fetches papers from the Semantic Scholar graph API.
type Client struct {
	httpClient *http.Client
	governor   *ratelimit.Governor
	baseURL    string
	apiKey     string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

// NewClient creates a Semantic Scholar client. apiKey may be empty; keyed
// requests get a higher rate allowance.
func NewClient(gov *ratelimit.Governor, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		governor:   gov,
		baseURL:    BaseURL,
		apiKey:     apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PaperByArxivID fetches one paper keyed as arXiv:<id>. The arXiv ID must
// be version-stripped. Returns (nil, nil) when S2 does not know the paper.
func (c *Client) PaperByArxivID(ctx context.Context, arxivID string) (*Paper, error) {
	for {
		if err := c.governor.Wait(ctx); err != nil {
			return nil, err
		}

		paper, err := c.fetch(ctx, arxivID)
		if errors.Is(err, ErrRateLimited) {
			if berr := c.governor.Backoff(ctx); berr != nil {
				return nil, berr
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		c.governor.Success()
		return paper, nil
	}
}

func (c *Client) fetch(ctx context.Context, arxivID string) (*Paper, error) {
	url := fmt.Sprintf("%s/paper/arXiv:%s?fields=%s", c.baseURL, arxivID, paperFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	req.Header.Set("User-Agent", "arxgraph/1.0")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return nil, nil
	case http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return nil, ErrRateLimited
	default:
		return nil, fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
	}

	var paper Paper
	if err := json.NewDecoder(resp.Body).Decode(&paper); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrAPIError, err)
	}
	return &paper, nil
}
