package domain

import "fmt"

// PullRequestRef identifies a change under review in the external system
type PullRequestRef struct {
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Number int    `json:"number"`
}

func (r PullRequestRef) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}

// ReviewStatus is the point-in-time verdict for a change under review.
// CI is failure only once a failing source has been observed; it is success
// only once every contributing source has settled. A verdict never flips
// from failure back to pending due to partial data.
type ReviewStatus struct {
	Merged         bool      `json:"merged"`
	Mergeable      Mergeable `json:"mergeable"`
	Branch         string    `json:"branch,omitempty"`
	CI             CIStatus  `json:"ci"`
	FailureDetails []string  `json:"failure_details,omitempty"`
}
