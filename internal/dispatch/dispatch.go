// Package dispatch launches queued runs as capacity frees up. It is the only
// consumer of the registry queue: a periodic tick drains queued descriptors
// while the orchestrator is unpaused and below its parallelism cap.
package dispatch

import (
	"context"
	"log"
	"time"

	"github.com/hochfrequenz/agent-orchestrator/internal/registry"
	"github.com/hochfrequenz/agent-orchestrator/internal/runner"
)

const (
	defaultMaxParallel = 3
	defaultInterval    = 5 * time.Second
)

// Launcher starts a run from a spec. Implemented by runner.Runner.
type Launcher interface {
	Start(ctx context.Context, spec runner.Spec) (string, error)
}

// SpecBuilder turns a queued descriptor into a launchable spec, typically by
// fetching the issue and rendering its prompt. A build failure drops the
// descriptor; the issue can be re-enqueued.
type SpecBuilder func(ctx context.Context, q registry.QueuedRun) (runner.Spec, error)

// Dispatcher drains the run queue under the parallelism cap
type Dispatcher struct {
	registry    *registry.Registry
	launcher    Launcher
	build       SpecBuilder
	maxParallel int
	interval    time.Duration
}

// New creates a Dispatcher. maxParallel <= 0 falls back to the default cap.
func New(reg *registry.Registry, launcher Launcher, build SpecBuilder, maxParallel int) *Dispatcher {
	if maxParallel <= 0 {
		maxParallel = defaultMaxParallel
	}
	return &Dispatcher{
		registry:    reg,
		launcher:    launcher,
		build:       build,
		maxParallel: maxParallel,
		interval:    defaultInterval,
	}
}

// Run ticks until ctx is cancelled, dispatching queued runs on each tick
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.Dispatch(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Dispatch starts queued runs until the queue is empty, the orchestrator is
// paused, or the parallelism cap is reached.
func (d *Dispatcher) Dispatch(ctx context.Context) {
	for ctx.Err() == nil && !d.registry.Paused() && d.registry.ActiveCount() < d.maxParallel {
		q, ok := d.registry.Dequeue()
		if !ok {
			return
		}

		spec, err := d.build(ctx, q)
		if err != nil {
			log.Printf("Warning: dispatch %s: %v", q.Label, err)
			continue
		}
		spec.RunID = q.ID

		if _, err := d.launcher.Start(ctx, spec); err != nil {
			log.Printf("Warning: starting %s: %v", q.Label, err)
		}
	}
}
