// Package review polls the external review system for the merge/CI state of
// a change. Two independent status sources (the legacy combined status and
// the per-check list) are fetched concurrently and folded into one verdict.
package review

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hochfrequenz/agent-orchestrator/internal/domain"
	"github.com/hochfrequenz/agent-orchestrator/internal/retry"
)

const defaultBaseURL = "https://api.github.com"

// Poller fetches review status for pull requests
type Poller struct {
	client  *http.Client
	baseURL string
	token   string
}

// NewPoller creates a Poller. baseURL is overridable for tests; empty means
// the public API.
func NewPoller(baseURL, token string) *Poller {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Poller{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
		token:   token,
	}
}

type pullResponse struct {
	Merged    bool  `json:"merged"`
	Mergeable *bool `json:"mergeable"`
	Head      struct {
		SHA string `json:"sha"`
		Ref string `json:"ref"`
	} `json:"head"`
}

type combinedStatus struct {
	State    string `json:"state"`
	Statuses []struct {
		Context     string `json:"context"`
		State       string `json:"state"`
		Description string `json:"description"`
	} `json:"statuses"`
}

type checkRunList struct {
	CheckRuns []checkRun `json:"check_runs"`
}

type checkRun struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
	Output     struct {
		Summary string `json:"summary"`
	} `json:"output"`
}

// GetStatus returns the point-in-time review verdict for a change. Every
// network call goes through the retry executor. An already-merged change
// short-circuits without querying CI.
func (p *Poller) GetStatus(ctx context.Context, ref domain.PullRequestRef) (domain.ReviewStatus, error) {
	pr, err := retry.DoValue(ctx, fmt.Sprintf("fetch PR %s", ref), func() (pullResponse, error) {
		var pr pullResponse
		url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", p.baseURL, ref.Owner, ref.Repo, ref.Number)
		return pr, p.getJSON(ctx, url, &pr)
	})
	if err != nil {
		return domain.ReviewStatus{}, err
	}

	status := domain.ReviewStatus{
		Merged:    pr.Merged,
		Mergeable: mergeable(pr.Mergeable),
		Branch:    pr.Head.Ref,
	}

	if pr.Merged {
		status.CI = domain.CISuccess
		return status, nil
	}

	var legacy combinedStatus
	var checks checkRunList

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return retry.Do(gctx, fmt.Sprintf("fetch combined status %s", ref), func() error {
			url := fmt.Sprintf("%s/repos/%s/%s/commits/%s/status", p.baseURL, ref.Owner, ref.Repo, pr.Head.SHA)
			return p.getJSON(gctx, url, &legacy)
		})
	})
	g.Go(func() error {
		return retry.Do(gctx, fmt.Sprintf("fetch check runs %s", ref), func() error {
			url := fmt.Sprintf("%s/repos/%s/%s/commits/%s/check-runs", p.baseURL, ref.Owner, ref.Repo, pr.Head.SHA)
			return p.getJSON(gctx, url, &checks)
		})
	})
	if err := g.Wait(); err != nil {
		return domain.ReviewStatus{}, err
	}

	status.CI, status.FailureDetails = settle(legacy, checks.CheckRuns)
	return status, nil
}

// settle folds both status sources into one verdict. The asymmetry is
// deliberate: one failing check reports failure immediately, while success
// waits for every source to reach a terminal state so a false "passing"
// verdict can never race ahead of slow checks.
func settle(legacy combinedStatus, checks []checkRun) (domain.CIStatus, []string) {
	var details []string

	failed := legacy.State == "failure" || legacy.State == "error"
	for _, s := range legacy.Statuses {
		if s.State == "failure" || s.State == "error" {
			failed = true
			details = append(details, fmt.Sprintf("%s: %s", s.Context, orDefault(s.Description, s.State)))
		}
	}

	allCompleted := true
	allGreen := true
	for _, c := range checks {
		if c.Status != "completed" {
			allCompleted = false
			continue
		}
		switch c.Conclusion {
		case "failure", "timed_out":
			failed = true
			details = append(details, fmt.Sprintf("%s: %s", c.Name, orDefault(c.Output.Summary, c.Conclusion)))
		case "success", "skipped":
		default:
			allGreen = false
		}
	}

	if failed {
		if len(details) == 0 {
			details = []string{"CI failed (no failing check details captured)"}
		}
		return domain.CIFailure, details
	}
	if legacy.State == "success" && allCompleted && allGreen {
		return domain.CISuccess, nil
	}
	return domain.CIPending, nil
}

func orDefault(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

func mergeable(m *bool) domain.Mergeable {
	switch {
	case m == nil:
		return domain.MergeableUnknown
	case *m:
		return domain.MergeableYes
	default:
		return domain.MergeableNo
	}
}

// getJSON performs one GET, surfacing non-2xx responses as StatusError so
// the retry executor can classify them.
func (p *Poller) getJSON(ctx context.Context, url string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
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
