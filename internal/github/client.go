// Package github provides a client for fetching repository star counts
// from the GitHub API, and extraction of repo references from abstracts.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/matsen/arxgraph/internal/ratelimit"
)

// Client is a GitHub API client for fetching repository metadata.
type Client struct {
	httpClient *http.Client
	governor   *ratelimit.Governor
	baseURL    string
	token      string
}

// Repo is the subset of repository metadata the pipeline consumes.
type Repo struct {
	FullName        string `json:"full_name"`
	StargazersCount int    `json:"stargazers_count"`
}

// Errors.
var (
	ErrInvalidRef   = errors.New("invalid GitHub repository reference")
	ErrRateLimited  = errors.New("GitHub API rate limit exceeded")
	ErrUnauthorized = errors.New("GitHub API authentication failed")
	ErrAPIError     = errors.New("GitHub API error")
	ErrNetworkError = errors.New("network error connecting to GitHub")
)

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

// NewClient creates a GitHub API client. token may be empty for
// unauthenticated requests.
func NewClient(gov *ratelimit.Governor, token string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		governor:   gov,
		baseURL:    "https://api.github.com",
		token:      token,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// repoRefPattern matches github.com/<owner>/<repo> references embedded in
// free text, tolerating a URL scheme prefix.
var repoRefPattern = regexp.MustCompile(`(?:https?://)?github\.com/([a-zA-Z0-9_.-]+)/([a-zA-Z0-9_.-]+)`)

// ExtractRepoRefs finds distinct owner/repo references in free text such
// as a paper abstract. Trailing URL and sentence punctuation is trimmed,
// as is a .git suffix. Order of first appearance is preserved.
func ExtractRepoRefs(text string) []string {
	matches := repoRefPattern.FindAllStringSubmatch(text, -1)
	var refs []string
	seen := make(map[string]bool)
	for _, m := range matches {
		owner, repo := m[1], m[2]
		repo = strings.TrimSuffix(repo, ".git")
		repo = strings.TrimRight(repo, ".,;:")
		if repo == "" {
			continue
		}
		ref := owner + "/" + repo
		key := strings.ToLower(ref)
		if seen[key] {
			continue
		}
		seen[key] = true
		refs = append(refs, ref)
	}
	return refs
}

// SplitRef splits an owner/repo reference.
func SplitRef(ref string) (owner, repo string, err error) {
	parts := strings.SplitN(ref, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return parts[0], parts[1], nil
}

// FetchRepo fetches repository metadata. Returns (nil, nil) when the
// repository does not exist or is private.
func (c *Client) FetchRepo(ctx context.Context, owner, repo string) (*Repo, error) {
	for {
		if err := c.governor.Wait(ctx); err != nil {
			return nil, err
		}

		meta, err := c.fetch(ctx, owner, repo)
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
		return meta, nil
	}
}

func (c *Client) fetch(ctx context.Context, owner, repo string) (*Repo, error) {
	apiURL := fmt.Sprintf("%s/repos/%s/%s", c.baseURL, owner, repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "arxgraph")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
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
	case http.StatusUnauthorized, http.StatusForbidden:
		io.Copy(io.Discard, resp.Body)
		if resp.Header.Get("X-RateLimit-Remaining") == "0" {
			return nil, ErrRateLimited
		}
		return nil, ErrUnauthorized
	case http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return nil, ErrRateLimited
	default:
		return nil, fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
	}

	var meta Repo
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrAPIError, err)
	}
	return &meta, nil
}
