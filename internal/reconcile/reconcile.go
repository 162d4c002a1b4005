// Package reconcile periodically re-checks the review state of finished runs
// that opened a pull request, so the dashboard reflects merges and CI
// failures that happen long after the agent exits.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/hochfrequenz/agent-orchestrator/internal/domain"
	"github.com/hochfrequenz/agent-orchestrator/internal/notify"
	"github.com/hochfrequenz/agent-orchestrator/internal/registry"
)

// defaultSchedule keeps well under GitHub API rate limits at 50 tracked runs
const defaultSchedule = "@every 2m"

// StatusSource yields the current review verdict for a change
type StatusSource interface {
	GetStatus(ctx context.Context, ref domain.PullRequestRef) (domain.ReviewStatus, error)
}

// Reconciler drives the periodic review sweep
type Reconciler struct {
	registry *registry.Registry
	source   StatusSource
	notifier notify.Notifier
	schedule string
	cron     *cron.Cron
}

// New creates a Reconciler. schedule is a cron spec; empty means every two
// minutes. notifier may be nil.
func New(reg *registry.Registry, source StatusSource, notifier notify.Notifier, schedule string) *Reconciler {
	if schedule == "" {
		schedule = defaultSchedule
	}
	if notifier == nil {
		notifier = notify.NoopNotifier{}
	}
	return &Reconciler{
		registry: reg,
		source:   source,
		notifier: notifier,
		schedule: schedule,
	}
}

// Start begins the periodic sweep. The returned error only reflects an
// invalid schedule spec.
func (r *Reconciler) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(r.schedule, func() { r.Sweep(ctx) }); err != nil {
		return fmt.Errorf("reconcile schedule %q: %w", r.schedule, err)
	}
	r.cron = c
	c.Start()

	go func() {
		<-ctx.Done()
		c.Stop()
	}()
	return nil
}

// Stop halts the sweep without waiting for a running sweep to finish
func (r *Reconciler) Stop() {
	if r.cron != nil {
		r.cron.Stop()
	}
}

// Sweep polls review status once for every run awaiting review. Failures on
// one run never block the others.
func (r *Reconciler) Sweep(ctx context.Context) {
	for _, run := range r.registry.RunsAwaitingReview() {
		if ctx.Err() != nil {
			return
		}
		status, err := r.source.GetStatus(ctx, *run.PullRequest)
		if err != nil {
			log.Printf("Warning: review status for %s: %v", run.PullRequest, err)
			continue
		}

		changed := run.Review == nil ||
			run.Review.Merged != status.Merged ||
			run.Review.CI != status.CI
		if !changed {
			continue
		}

		r.registry.RecordReview(run.ID, status, summarize(run, status))

		if status.CI == domain.CIFailure && (run.Review == nil || run.Review.CI != domain.CIFailure) {
			if err := r.notifier.Send(notify.CIFailed(run, status.FailureDetails)); err != nil {
				log.Printf("Warning: notify CI failure for %s: %v", run.ID, err)
			}
		}
	}
}

func summarize(run *domain.Run, status domain.ReviewStatus) string {
	ref := run.PullRequest.String()
	switch {
	case status.Merged:
		return fmt.Sprintf("%s merged", ref)
	case status.CI == domain.CIFailure:
		detail := ""
		if len(status.FailureDetails) > 0 {
			detail = ": " + strings.Join(status.FailureDetails, "; ")
		}
		return fmt.Sprintf("CI failed on %s%s", ref, detail)
	case status.CI == domain.CISuccess:
		return fmt.Sprintf("CI green on %s, awaiting merge", ref)
	default:
		return fmt.Sprintf("CI pending on %s", ref)
	}
}
