// Package notify fans run lifecycle events out to operators.
package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hochfrequenz/agent-orchestrator/internal/domain"
)

// Level represents notification severity
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

// Notification is one message to operators
type Notification struct {
	Title   string
	Message string
	Level   Level
	RunID   string
	PRURL   string
}

// Notifier sends notifications
type Notifier interface {
	Send(n Notification) error
}

// MultiNotifier sends to multiple notifiers; the last error wins
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a notifier that sends to all provided notifiers
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Send sends the notification to all notifiers
func (m *MultiNotifier) Send(n Notification) error {
	var lastErr error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(n); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// NoopNotifier does nothing (for testing or disabled notifications)
type NoopNotifier struct{}

func (NoopNotifier) Send(n Notification) error { return nil }

// RunFinished builds the notification for a run reaching a terminal state.
func RunFinished(run *domain.Run) Notification {
	elapsed := "unknown duration"
	if run.FinishedAt != nil {
		elapsed = humanizeDuration(run.FinishedAt.Sub(run.StartedAt))
	}

	n := Notification{RunID: run.ID}
	if run.PullRequest != nil {
		n.PRURL = fmt.Sprintf("https://github.com/%s/%s/pull/%d",
			run.PullRequest.Owner, run.PullRequest.Repo, run.PullRequest.Number)
	}

	switch run.Status {
	case domain.RunComplete:
		n.Level = LevelSuccess
		n.Title = fmt.Sprintf("Run %s completed", run.Label)
		n.Message = fmt.Sprintf("Finished after %s", elapsed)
		if run.Result != nil && run.Result.CostUSD > 0 {
			n.Message += fmt.Sprintf(" (%d turns, $%.2f)", run.Result.NumTurns, run.Result.CostUSD)
		}
	case domain.RunTimedOut:
		n.Level = LevelWarning
		n.Title = fmt.Sprintf("Run %s timed out", run.Label)
		n.Message = fmt.Sprintf("Gave up after %s; output may be partial", elapsed)
	default:
		n.Level = LevelError
		n.Title = fmt.Sprintf("Run %s failed", run.Label)
		n.Message = run.Error
	}
	return n
}

// CIFailed builds the notification for a reconciled run whose CI went red.
func CIFailed(run *domain.Run, details []string) Notification {
	msg := "CI failed"
	if len(details) > 0 {
		msg = "CI failed: " + details[0]
	}
	n := Notification{
		Title:   fmt.Sprintf("Run %s needs attention", run.Label),
		Message: msg,
		Level:   LevelError,
		RunID:   run.ID,
	}
	if run.PullRequest != nil {
		n.PRURL = fmt.Sprintf("https://github.com/%s/%s/pull/%d",
			run.PullRequest.Owner, run.PullRequest.Repo, run.PullRequest.Number)
	}
	return n
}

// humanizeDuration renders durations the way humanize renders times, as a
// coarse relative phrase ("3 minutes", "1 hour").
func humanizeDuration(d time.Duration) string {
	now := time.Now()
	s := strings.TrimSpace(humanize.RelTime(now.Add(-d), now, "", ""))
	if s == "now" {
		return "under a minute"
	}
	return s
}
