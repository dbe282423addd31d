package arxiv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/matsen/arxgraph/internal/ratelimit"
)

const (
	// BaseURL is the arXiv export API endpoint.
	BaseURL = "http://export.arxiv.org/api/query"

	// DefaultTimeout is the HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// PageSize is the number of entries fetched per page.
	PageSize = 100

	// MaxResultsPerDay caps how many entries a single day query returns.
	MaxResultsPerDay = 1000
)

// Errors returned by the client.
var (
	ErrRateLimited  = errors.New("arXiv rate limit exceeded")
	ErrAPIError     = errors.New("arXiv API error")
	ErrNetworkError = errors.New("network error communicating with arXiv")
)

// Client fetches paper metadata from the arXiv search API.
type Client struct {
	httpClient *http.Client
	governor   *ratelimit.Governor
	baseURL    string
	categories []string
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

// WithCategories overrides the default category set.
func WithCategories(cats []string) ClientOption {
	return func(c *Client) {
		if len(cats) > 0 {
			c.categories = cats
		}
	}
}

// NewClient creates an arXiv client paced by the given governor.
func NewClient(gov *ratelimit.Governor, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		governor:   gov,
		baseURL:    BaseURL,
		categories: DefaultCategories,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Day fetches every paper submitted on the given day in the client's
// categories, paged in arXiv's descending-submittedDate order. Papers that
// appear more than once in the feed are deduplicated, keeping first sight.
//
// arXiv occasionally returns a non-final empty page for a day that still
// reports more total results; the empty page terminates the day without
// error.
func (c *Client) Day(ctx context.Context, day time.Time) ([]Paper, error) {
	var papers []Paper
	seen := make(map[string]bool)
	query := DayQuery(c.categories, day)

	for start := 0; start < MaxResultsPerDay; start += PageSize {
		feed, err := c.page(ctx, query, start)
		if err != nil {
			return nil, err
		}

		// Empty-page anomaly, or a genuinely exhausted day.
		if len(feed.Entries) == 0 {
			break
		}

		for _, entry := range feed.Entries {
			p, err := paperFromEntry(entry)
			if err != nil {
				continue
			}
			if seen[p.ArxivID] {
				continue
			}
			seen[p.ArxivID] = true
			papers = append(papers, p)
		}

		if start+PageSize >= feed.TotalResults {
			break
		}
	}

	return papers, nil
}

// page fetches one result page, retrying once after a governor backoff on 429.
func (c *Client) page(ctx context.Context, query string, start int) (*atomFeed, error) {
	for {
		if err := c.governor.Wait(ctx); err != nil {
			return nil, err
		}

		feed, err := c.fetchPage(ctx, query, start)
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
		return feed, nil
	}
}

func (c *Client) fetchPage(ctx context.Context, query string, start int) (*atomFeed, error) {
	params := url.Values{}
	params.Set("search_query", query)
	params.Set("start", fmt.Sprintf("%d", start))
	params.Set("max_results", fmt.Sprintf("%d", PageSize))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	req.Header.Set("User-Agent", "arxgraph/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		// arXiv signals throttling with 503 as well as 429.
		io.Copy(io.Discard, resp.Body)
		return nil, ErrRateLimited
	default:
		return nil, fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrNetworkError, err)
	}

	return parseFeed(body)
}

// versionSuffix matches the trailing vN on an arXiv ID.
var versionSuffix = regexp.MustCompile(`v(\d+)$`)

// StripVersion splits an arXiv ID into its version-free form and the
// version suffix ("v2" becomes "2"; empty when absent).
func StripVersion(id string) (clean, version string) {
	if m := versionSuffix.FindStringSubmatch(id); m != nil {
		return id[:len(id)-len(m[0])], m[1]
	}
	return id, ""
}

// idFromEntryURL extracts the arXiv ID from an Atom entry id such as
// http://arxiv.org/abs/2506.01234v1.
func idFromEntryURL(entryID string) string {
	idx := strings.LastIndex(entryID, "/abs/")
	if idx < 0 {
		return entryID
	}
	return entryID[idx+len("/abs/"):]
}
