package openalex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/matsen/arxgraph/internal/ratelimit"
)

const (
	// BaseURL is the OpenAlex API root.
	BaseURL = "https://api.openalex.org"

	// DefaultTimeout is the HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxWorksPerBatch is the filter batch limit for the works endpoint.
	MaxWorksPerBatch = 50

	// MaxAuthorsPerBatch is the filter batch limit for the authors endpoint.
	MaxAuthorsPerBatch = 200

	// authorSelectFields narrows author profile responses to what the
	// enrichment loop actually reads.
	authorSelectFields = "id,display_name,summary_stats,cited_by_count,works_count,last_known_institutions"
)

// Errors returned by the client.
var (
	ErrRateLimited  = errors.New("OpenAlex rate limit exceeded")
	ErrAPIError     = errors.New("OpenAlex API error")
	ErrNetworkError = errors.New("network error communicating with OpenAlex")
	ErrBatchTooBig  = errors.New("OpenAlex filter batch exceeds endpoint limit")
)

// Client fetches works and author profiles from OpenAlex. Requests carry
// the configured contact email for the polite pool.
type Client struct {
	httpClient *http.Client
	governor   *ratelimit.Governor
	baseURL    string
	email      string
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

// NewClient creates an OpenAlex client. email joins the polite pool and
// must not be empty in production use.
func NewClient(gov *ratelimit.Governor, email string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		governor:   gov,
		baseURL:    BaseURL,
		email:      email,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DOIForArxivID returns the DataCite DOI OpenAlex indexes arXiv papers
// under. The arXiv ID must already be version-stripped.
func DOIForArxivID(arxivID string) string {
	return "10.48550/arxiv." + strings.ToLower(arxivID)
}

// WorksByDOI fetches up to MaxWorksPerBatch works in one request, the DOI
// filters joined with "|". DOIs with no matching work are simply absent
// from the result.
func (c *Client) WorksByDOI(ctx context.Context, dois []string) ([]Work, error) {
	if len(dois) == 0 {
		return nil, nil
	}
	if len(dois) > MaxWorksPerBatch {
		return nil, fmt.Errorf("%w: %d DOIs, max %d", ErrBatchTooBig, len(dois), MaxWorksPerBatch)
	}

	params := url.Values{}
	params.Set("filter", "doi:"+strings.Join(dois, "|"))
	params.Set("per-page", fmt.Sprintf("%d", MaxWorksPerBatch))

	var resp listResponse[Work]
	if err := c.get(ctx, "/works", params, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// AuthorsByID fetches up to MaxAuthorsPerBatch author profiles in one
// request, selecting only the fields the pipeline needs.
func (c *Client) AuthorsByID(ctx context.Context, ids []string) ([]Author, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxAuthorsPerBatch {
		return nil, fmt.Errorf("%w: %d ids, max %d", ErrBatchTooBig, len(ids), MaxAuthorsPerBatch)
	}

	params := url.Values{}
	params.Set("filter", "openalex:"+strings.Join(ids, "|"))
	params.Set("select", authorSelectFields)
	params.Set("per-page", fmt.Sprintf("%d", MaxAuthorsPerBatch))

	var resp listResponse[Author]
	if err := c.get(ctx, "/authors", params, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// get performs one governed GET, retrying after a governor backoff on 429.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	for {
		if err := c.governor.Wait(ctx); err != nil {
			return err
		}

		err := c.fetch(ctx, path, params, out)
		if errors.Is(err, ErrRateLimited) {
			if berr := c.governor.Backoff(ctx); berr != nil {
				return berr
			}
			continue
		}
		if err != nil {
			return err
		}
		c.governor.Success()
		return nil
	}
}

func (c *Client) fetch(ctx context.Context, path string, params url.Values, out any) error {
	if c.email != "" {
		params.Set("mailto", c.email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	req.Header.Set("User-Agent", "arxgraph/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return ErrRateLimited
	case http.StatusNotFound:
		// The list endpoints return empty result sets rather than 404;
		// treat a 404 the same way.
		return nil
	default:
		return fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrAPIError, err)
	}
	return nil
}
