// Package registry holds the process-wide state of in-flight and historical
// runs. It is the single piece of shared mutable memory: every mutation goes
// through a critical section, and read consumers only ever see copies.
package registry

import (
	"sync"
	"time"

	"github.com/hochfrequenz/agent-orchestrator/internal/domain"
)

const (
	// activityCap bounds each run's activity log; oldest entries are
	// evicted first so long-lived runs cannot grow without bound
	activityCap = 200
	// historyCap bounds the retained terminal runs
	historyCap = 50
)

// Store persists terminal runs. Implemented by runstore; nil disables
// persistence.
type Store interface {
	SaveRun(run *domain.Run) error
}

// QueuedRun describes a run that has been scheduled but not started
type QueuedRun struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	IssueNumber int       `json:"issue_number,omitempty"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// Event is a change notification fanned out to live consumers
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Snapshot is the full read view handed to the dashboard
type Snapshot struct {
	Paused    bool          `json:"paused"`
	Agents    []*domain.Run `json:"agents"`
	History   []*domain.Run `json:"history"`
	Queue     []QueuedRun   `json:"queue"`
	StartedAt time.Time     `json:"started_at"`
}

// Registry is constructed once by the composition root and passed by
// reference; there is no package-level instance.
type Registry struct {
	mu        sync.Mutex
	paused    bool
	startedAt time.Time
	active    map[string]*domain.Run
	order     []string
	history   []*domain.Run
	queue     []QueuedRun
	store     Store

	subMu sync.Mutex
	subs  map[chan Event]bool
}

// New creates an empty Registry. store may be nil.
func New(store Store) *Registry {
	return &Registry{
		startedAt: time.Now(),
		active:    make(map[string]*domain.Run),
		store:     store,
		subs:      make(map[chan Event]bool),
	}
}

// Restore seeds the history from persisted terminal runs, newest first (the
// order the store returns them). Non-terminal runs are skipped; a process
// that died mid-run cannot resume supervision of it. No events are published.
func (r *Registry) Restore(runs []*domain.Run) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(runs) - 1; i >= 0; i-- {
		run := runs[i]
		if !run.Status.Terminal() {
			continue
		}
		r.history = append(r.history, run)
	}
	if len(r.history) > historyCap {
		r.history = r.history[len(r.history)-historyCap:]
	}
}

// StartRun registers a new in-flight run
func (r *Registry) StartRun(run *domain.Run) {
	r.mu.Lock()
	run.Status = domain.RunRunning
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	r.active[run.ID] = run
	r.order = append(r.order, run.ID)
	snapshot := run.Clone()
	r.mu.Unlock()

	r.publish(Event{Type: "run_started", Data: snapshot})
}

// AppendActivity appends entries to a run's log in arrival order, evicting
// the oldest entries beyond the retention cap. Returns false for unknown
// run IDs.
func (r *Registry) AppendActivity(runID string, entries ...domain.ActivityEntry) bool {
	if len(entries) == 0 {
		return true
	}

	r.mu.Lock()
	run, ok := r.active[runID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	run.Activity = append(run.Activity, entries...)
	if len(run.Activity) > activityCap {
		run.Activity = run.Activity[len(run.Activity)-activityCap:]
	}
	r.mu.Unlock()

	r.publish(Event{Type: "activity", Data: map[string]interface{}{
		"run_id":  runID,
		"entries": entries,
	}})
	return true
}

// SetSessionID records the agent session identifier once known
func (r *Registry) SetSessionID(runID, sessionID string) {
	r.mu.Lock()
	if run, ok := r.active[runID]; ok && sessionID != "" {
		run.SessionID = sessionID
	}
	r.mu.Unlock()
}

// SetPullRequest binds a run to the change it opened for review
func (r *Registry) SetPullRequest(runID string, ref domain.PullRequestRef) {
	r.mu.Lock()
	if run, ok := r.active[runID]; ok {
		run.PullRequest = &ref
	}
	r.mu.Unlock()
}

// FinishRun moves a run to its terminal state exactly once; repeated calls
// for the same run are ignored. The run is retained in bounded history.
func (r *Registry) FinishRun(runID string, status domain.RunStatus, result *domain.RunResult, errMsg string) {
	if !status.Terminal() {
		return
	}

	r.mu.Lock()
	run, ok := r.active[runID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.active, runID)
	for i, id := range r.order {
		if id == runID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	now := time.Now()
	run.Status = status
	run.FinishedAt = &now
	if result != nil {
		run.Result = result
	}
	if errMsg != "" {
		run.Error = errMsg
	}

	r.history = append(r.history, run)
	if len(r.history) > historyCap {
		r.history = r.history[len(r.history)-historyCap:]
	}
	snapshot := run.Clone()
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.SaveRun(snapshot); err != nil {
			// Persistence is advisory; the in-memory registry stays
			// authoritative for the dashboard.
			logPersistFailure(runID, err)
		}
	}

	r.publish(Event{Type: "run_finished", Data: snapshot})
}

// ActiveCount returns the number of in-flight runs
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// SetPaused toggles the global pause flag
func (r *Registry) SetPaused(paused bool) {
	r.mu.Lock()
	r.paused = paused
	r.mu.Unlock()

	r.publish(Event{Type: "paused", Data: paused})
}

// Paused returns the global pause flag
func (r *Registry) Paused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused
}

// Enqueue records a run descriptor awaiting a free slot
func (r *Registry) Enqueue(q QueuedRun) {
	r.mu.Lock()
	if q.EnqueuedAt.IsZero() {
		q.EnqueuedAt = time.Now()
	}
	r.queue = append(r.queue, q)
	r.mu.Unlock()
}

// Dequeue removes and returns the oldest queued descriptor
func (r *Registry) Dequeue() (QueuedRun, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return QueuedRun{}, false
	}
	q := r.queue[0]
	r.queue = r.queue[1:]
	return q, true
}

// Snapshot returns a deep copy of the full registry state for read
// consumers. Writers are never blocked longer than the copy takes.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Paused:    r.paused,
		StartedAt: r.startedAt,
		Agents:    make([]*domain.Run, 0, len(r.order)),
		History:   make([]*domain.Run, 0, len(r.history)),
		Queue:     make([]QueuedRun, len(r.queue)),
	}
	for _, id := range r.order {
		snap.Agents = append(snap.Agents, r.active[id].Clone())
	}
	for _, run := range r.history {
		snap.History = append(snap.History, run.Clone())
	}
	copy(snap.Queue, r.queue)
	return snap
}

// Activities returns a copy of a run's activity log. The second return is
// false for unknown run IDs; unknown is not an error for pollers.
func (r *Registry) Activities(runID string) ([]domain.ActivityEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if run, ok := r.active[runID]; ok {
		out := make([]domain.ActivityEntry, len(run.Activity))
		copy(out, run.Activity)
		return out, true
	}
	for _, run := range r.history {
		if run.ID == runID {
			out := make([]domain.ActivityEntry, len(run.Activity))
			copy(out, run.Activity)
			return out, true
		}
	}
	return nil, false
}

// Run returns a copy of a run by ID, checking active runs then history
func (r *Registry) Run(runID string) (*domain.Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if run, ok := r.active[runID]; ok {
		return run.Clone(), true
	}
	for _, run := range r.history {
		if run.ID == runID {
			return run.Clone(), true
		}
	}
	return nil, false
}

// RunsAwaitingReview returns terminal runs bound to an unmerged change
func (r *Registry) RunsAwaitingReview() []*domain.Run {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.Run
	for _, run := range r.history {
		if run.PullRequest == nil || run.Status != domain.RunComplete {
			continue
		}
		if run.Review != nil && run.Review.Merged {
			continue
		}
		out = append(out, run.Clone())
	}
	return out
}

// RecordReview stores a review verdict on a retained run and appends a
// status activity for it. History runs are eligible; reviews settle after
// the run itself is terminal.
func (r *Registry) RecordReview(runID string, status domain.ReviewStatus, summary string) bool {
	r.mu.Lock()
	run, ok := r.active[runID]
	if !ok {
		for _, h := range r.history {
			if h.ID == runID {
				run = h
				ok = true
				break
			}
		}
	}
	if !ok {
		r.mu.Unlock()
		return false
	}

	run.Review = &status
	entry := domain.ActivityEntry{
		Timestamp: time.Now(),
		Kind:      domain.ActivityStatus,
		Summary:   summary,
	}
	run.Activity = append(run.Activity, entry)
	if len(run.Activity) > activityCap {
		run.Activity = run.Activity[len(run.Activity)-activityCap:]
	}
	snapshot := run.Clone()
	r.mu.Unlock()

	// Verdicts survive restarts the same way terminal states do
	if r.store != nil && snapshot.Status.Terminal() {
		if err := r.store.SaveRun(snapshot); err != nil {
			logPersistFailure(runID, err)
		}
	}

	r.publish(Event{Type: "review", Data: map[string]interface{}{
		"run_id": runID,
		"review": status,
	}})
	return true
}
