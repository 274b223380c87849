package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/forgeworks/issuepilot/internal/types"
)

const defaultBaseURL = "https://api.github.com"

// GitHubClient is a thin GitHub REST implementation of Client. It adds
// the auth header, paces requests with a rate limiter, and decodes just
// the fields the core needs. Errors come back verbatim, body included,
// so authorization failures are recognizable by the caller.
type GitHubClient struct {
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// GitHubOption configures a GitHubClient.
type GitHubOption func(*GitHubClient)

// WithBaseURL overrides the API base URL (GitHub Enterprise, tests).
func WithBaseURL(url string) GitHubOption {
	return func(c *GitHubClient) { c.baseURL = url }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) GitHubOption {
	return func(c *GitHubClient) { c.http = h }
}

// NewGitHubClient creates a client authenticated with token.
func NewGitHubClient(token string, opts ...GitHubOption) *GitHubClient {
	c := &GitHubClient{
		token:   token,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		// Secondary rate limits bite well before the documented 5000/hr;
		// one request per 100ms stays comfortably under both.
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wireIssue is the subset of the GitHub issue payload the core uses.
type wireIssue struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	HTMLURL string `json:"html_url"`
	Labels  []struct {
		Name string `json:"name"`
	} `json:"labels"`
	PullRequest *struct{} `json:"pull_request,omitempty"`
}

func (w wireIssue) toIssue() types.Issue {
	labels := make([]string, 0, len(w.Labels))
	for _, l := range w.Labels {
		labels = append(labels, l.Name)
	}
	return types.Issue{
		Number:        w.Number,
		Title:         w.Title,
		Body:          w.Body,
		URL:           w.HTMLURL,
		Labels:        labels,
		IsPullRequest: w.PullRequest != nil,
	}
}

// FetchOpenIssues lists open issues, paging until exhausted.
func (c *GitHubClient) FetchOpenIssues(ctx context.Context, repo string) ([]types.Issue, error) {
	var issues []types.Issue
	for page := 1; ; page++ {
		path := fmt.Sprintf("/repos/%s/issues?state=open&per_page=100&page=%d", repo, page)
		var wire []wireIssue
		if err := c.get(ctx, path, &wire); err != nil {
			return nil, err
		}
		for _, w := range wire {
			issues = append(issues, w.toIssue())
		}
		if len(wire) < 100 {
			return issues, nil
		}
	}
}

// FetchIssue fetches a single issue by number.
func (c *GitHubClient) FetchIssue(ctx context.Context, repo string, number int) (*types.Issue, error) {
	var wire wireIssue
	if err := c.get(ctx, fmt.Sprintf("/repos/%s/issues/%d", repo, number), &wire); err != nil {
		return nil, err
	}
	issue := wire.toIssue()
	return &issue, nil
}

// FetchComments fetches an issue's comment thread.
func (c *GitHubClient) FetchComments(ctx context.Context, repo string, number int) ([]types.Comment, error) {
	var wire []struct {
		User struct {
			Login string `json:"login"`
		} `json:"user"`
		Body string `json:"body"`
	}
	if err := c.get(ctx, fmt.Sprintf("/repos/%s/issues/%d/comments?per_page=100", repo, number), &wire); err != nil {
		return nil, err
	}
	comments := make([]types.Comment, 0, len(wire))
	for _, w := range wire {
		comments = append(comments, types.Comment{Author: w.User.Login, Body: w.Body})
	}
	return comments, nil
}

// ApplyLabels adds labels to an issue, leaving existing labels in place.
func (c *GitHubClient) ApplyLabels(ctx context.Context, repo string, number int, labels []string) error {
	if len(labels) == 0 {
		return nil
	}
	body, err := json.Marshal(map[string][]string{"labels": labels})
	if err != nil {
		return fmt.Errorf("failed to encode labels: %w", err)
	}
	path := fmt.Sprintf("/repos/%s/issues/%d/labels", repo, number)
	return c.do(ctx, http.MethodPost, path, body, nil)
}

func (c *GitHubClient) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *GitHubClient) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, bytes.TrimSpace(text))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}
