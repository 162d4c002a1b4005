package domain

import "time"

// Run is one supervised execution of an agent against one unit of work.
// It owns an ordered, append-only activity log; entries are never mutated
// after insertion.
type Run struct {
	ID          string          `json:"id"`
	IssueNumber int             `json:"issue_number,omitempty"`
	Label       string          `json:"label"`
	Status      RunStatus       `json:"status"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
	SessionID   string          `json:"session_id,omitempty"`
	Worktree    *Worktree       `json:"worktree,omitempty"`
	PullRequest *PullRequestRef `json:"pull_request,omitempty"`
	Result      *RunResult      `json:"result,omitempty"`
	Review      *ReviewStatus   `json:"review,omitempty"`
	Error       string          `json:"error,omitempty"`
	Activity    []ActivityEntry `json:"activity,omitempty"`
}

// Clone returns a deep copy safe to hand to read consumers.
func (r *Run) Clone() *Run {
	c := *r
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		c.FinishedAt = &t
	}
	if r.Worktree != nil {
		w := *r.Worktree
		c.Worktree = &w
	}
	if r.PullRequest != nil {
		p := *r.PullRequest
		c.PullRequest = &p
	}
	if r.Result != nil {
		res := *r.Result
		c.Result = &res
	}
	if r.Review != nil {
		rev := *r.Review
		rev.FailureDetails = make([]string, len(r.Review.FailureDetails))
		copy(rev.FailureDetails, r.Review.FailureDetails)
		c.Review = &rev
	}
	c.Activity = make([]ActivityEntry, len(r.Activity))
	copy(c.Activity, r.Activity)
	return &c
}

// RunResult is the terminal payload of a successful run
type RunResult struct {
	Result   string        `json:"result"`
	CostUSD  float64       `json:"cost_usd"`
	Duration time.Duration `json:"duration"`
	NumTurns int           `json:"num_turns"`
}

// ActivityEntry is one observable event in a run's timeline
type ActivityEntry struct {
	Timestamp time.Time    `json:"timestamp"`
	Kind      ActivityKind `json:"kind"`
	Summary   string       `json:"summary"`
	Detail    string       `json:"detail,omitempty"`
	Subagent  bool         `json:"subagent,omitempty"`
}

// Worktree is an isolated filesystem + branch pair bound to one run
type Worktree struct {
	Path   string `json:"path"`
	Branch string `json:"branch"`
	// FromBranch is set when the worktree tracks an externally supplied
	// branch instead of a fresh one
	FromBranch string `json:"from_branch,omitempty"`
}
