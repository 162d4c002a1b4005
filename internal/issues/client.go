// Package issues talks to the GitHub issues REST API: fetching an issue to
// build a work prompt from, and counting open issues under a label.
package issues

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hochfrequenz/agent-orchestrator/internal/retry"
)

const (
	defaultBaseURL = "https://api.github.com"
	perPage        = 100
)

// Issue is the subset of issue fields the orchestrator cares about
type Issue struct {
	Number int      `json:"number"`
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"-"`
}

// Client fetches issues for one repository
type Client struct {
	client  *http.Client
	baseURL string
	owner   string
	repo    string
	token   string
}

// NewClient creates a Client for owner/repo. baseURL is overridable for
// tests; empty means the public API.
func NewClient(baseURL, owner, repo, token string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
		owner:   owner,
		repo:    repo,
		token:   token,
	}
}

type apiIssue struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	Labels []struct {
		Name string `json:"name"`
	} `json:"labels"`
	PullRequest *struct{} `json:"pull_request"`
}

func (a apiIssue) toIssue() Issue {
	labels := make([]string, len(a.Labels))
	for i, l := range a.Labels {
		labels[i] = l.Name
	}
	return Issue{Number: a.Number, Title: a.Title, Body: a.Body, Labels: labels}
}

// Get fetches one issue by number
func (c *Client) Get(ctx context.Context, number int) (Issue, error) {
	return retry.DoValue(ctx, fmt.Sprintf("fetch issue #%d", number), func() (Issue, error) {
		var raw apiIssue
		u := fmt.Sprintf("%s/repos/%s/%s/issues/%d", c.baseURL, c.owner, c.repo, number)
		if err := c.getJSON(ctx, u, &raw); err != nil {
			return Issue{}, err
		}
		return raw.toIssue(), nil
	})
}

// CountOpen counts open issues carrying the given label. The issues endpoint
// also returns pull requests, which are excluded. Pages of 100 are fetched
// until a short page signals the end.
func (c *Client) CountOpen(ctx context.Context, label string) (int, error) {
	count := 0
	for page := 1; ; page++ {
		q := url.Values{
			"state":    {"open"},
			"labels":   {label},
			"per_page": {strconv.Itoa(perPage)},
			"page":     {strconv.Itoa(page)},
		}
		u := fmt.Sprintf("%s/repos/%s/%s/issues?%s", c.baseURL, c.owner, c.repo, q.Encode())

		batch, err := retry.DoValue(ctx, fmt.Sprintf("list issues page %d", page), func() ([]apiIssue, error) {
			var batch []apiIssue
			return batch, c.getJSON(ctx, u, &batch)
		})
		if err != nil {
			return 0, err
		}

		for _, issue := range batch {
			if issue.PullRequest == nil {
				count++
			}
		}
		if len(batch) < perPage {
			return count, nil
		}
	}
}

func (c *Client) getJSON(ctx context.Context, url string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &retry.StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	return json.NewDecoder(resp.Body).Decode(v)
}
