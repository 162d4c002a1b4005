package domain

// RunStatus represents the execution state of a run
type RunStatus string

const (
	RunRunning  RunStatus = "running"
	RunComplete RunStatus = "completed"
	RunFailed   RunStatus = "failed"
	RunTimedOut RunStatus = "timed_out"
)

// Terminal reports whether the status is a final state
func (s RunStatus) Terminal() bool {
	return s == RunComplete || s == RunFailed || s == RunTimedOut
}

// ActivityKind classifies an entry in a run's activity log
type ActivityKind string

const (
	ActivityStatus  ActivityKind = "status"
	ActivityToolUse ActivityKind = "tool_use"
	ActivityText    ActivityKind = "text"
	ActivityResult  ActivityKind = "result"
	ActivityError   ActivityKind = "error"
)

// Mergeable is the tri-state mergeability of a change under review
type Mergeable string

const (
	MergeableYes     Mergeable = "true"
	MergeableNo      Mergeable = "false"
	MergeableUnknown Mergeable = "unknown"
)

// CIStatus is the aggregate verdict across all status sources for a revision
type CIStatus string

const (
	CISuccess CIStatus = "success"
	CIFailure CIStatus = "failure"
	CIPending CIStatus = "pending"
)
