// Package runner supervises agent processes: one isolated worktree and one
// stream-json subprocess per run, with absolute and inactivity timeouts.
// Each run is an independent task; a stalled agent never blocks its peers or
// the registry read path.
package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"github.com/hochfrequenz/agent-orchestrator/internal/domain"
	"github.com/hochfrequenz/agent-orchestrator/internal/registry"
	"github.com/hochfrequenz/agent-orchestrator/internal/stream"
	"github.com/hochfrequenz/agent-orchestrator/internal/worktree"
)

// orchestratorNamespace is a fixed UUID namespace for deterministic session
// IDs, so a rerun of the same unit of work can resume its agent session.
var orchestratorNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

const (
	defaultAbsoluteTimeout   = 45 * time.Minute
	defaultInactivityTimeout = 5 * time.Minute
)

// Config holds runner settings
type Config struct {
	Executable        string
	AbsoluteTimeout   time.Duration
	InactivityTimeout time.Duration
}

// Spec describes one run to start
type Spec struct {
	RunID       string // generated when empty
	Name        string // worktree name; also keys stale-state recovery
	Label       string
	IssueNumber int
	Prompt      string
	FromBranch  string // continue work on an existing review branch
}

// Runner launches and supervises agent runs
type Runner struct {
	cfg       Config
	registry  *registry.Registry
	worktrees *worktree.Manager
}

// New creates a Runner
func New(cfg Config, reg *registry.Registry, worktrees *worktree.Manager) *Runner {
	if cfg.Executable == "" {
		cfg.Executable = "claude"
	}
	if cfg.AbsoluteTimeout == 0 {
		cfg.AbsoluteTimeout = defaultAbsoluteTimeout
	}
	if cfg.InactivityTimeout == 0 {
		cfg.InactivityTimeout = defaultInactivityTimeout
	}
	return &Runner{cfg: cfg, registry: reg, worktrees: worktrees}
}

// Start provisions a sandbox, spawns the agent and supervises it in the
// background. The returned run ID is immediately queryable in the registry.
func (r *Runner) Start(ctx context.Context, spec Spec) (string, error) {
	if spec.Prompt == "" {
		return "", fmt.Errorf("run %s: no prompt", spec.Name)
	}

	wtPath, err := r.worktrees.Create(spec.Name, spec.FromBranch)
	if err != nil {
		return "", fmt.Errorf("starting run %s: %w", spec.Name, err)
	}

	runID := spec.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	sessionID := uuid.NewSHA1(orchestratorNamespace, []byte(spec.Name)).String()

	run := &domain.Run{
		ID:          runID,
		IssueNumber: spec.IssueNumber,
		Label:       spec.Label,
		StartedAt:   time.Now(),
		SessionID:   sessionID,
		Worktree: &domain.Worktree{
			Path:       wtPath,
			Branch:     worktree.BranchName(spec.Name),
			FromBranch: spec.FromBranch,
		},
	}

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.AbsoluteTimeout)

	cmd := exec.CommandContext(runCtx, r.cfg.Executable,
		"--print",
		"--verbose",
		"--dangerously-skip-permissions",
		"--output-format", "stream-json",
		"--session-id", sessionID,
		"-p", spec.Prompt,
	)
	cmd.Dir = wtPath

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		r.worktrees.Remove(spec.Name, spec.FromBranch != "")
		return "", err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		r.worktrees.Remove(spec.Name, spec.FromBranch != "")
		return "", err
	}

	if err := cmd.Start(); err != nil {
		cancel()
		r.worktrees.Remove(spec.Name, spec.FromBranch != "")
		return "", fmt.Errorf("starting %s: %w", r.cfg.Executable, err)
	}

	r.registry.StartRun(run)

	go r.supervise(runCtx, cancel, cmd, spec, runID, stdout, stderr)

	return runID, nil
}

// supervise consumes the agent's message stream in arrival order and drives
// the run to exactly one terminal state.
func (r *Runner) supervise(ctx context.Context, cancel context.CancelFunc, cmd *exec.Cmd, spec Spec, runID string, stdout, stderr io.ReadCloser) {
	defer cancel()
	defer r.worktrees.Remove(spec.Name, spec.FromBranch != "")

	lines := make(chan string, 64)
	go readLines(stdout, lines, true)
	go readLines(stderr, nil, false)

	var result *domain.RunResult
	var errMsg string
	sawTerminal := false
	timedOut := false

	inactivity := time.NewTimer(r.cfg.InactivityTimeout)
	defer inactivity.Stop()

	wtPath := r.worktrees.Path(spec.Name)

consume:
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				break consume
			}
			if !inactivity.Stop() {
				<-inactivity.C
			}
			inactivity.Reset(r.cfg.InactivityTimeout)

			msg, ok := stream.ParseLine([]byte(line))
			if !ok {
				continue
			}
			tr := stream.Translate(msg, wtPath)
			if tr.SessionID != "" {
				r.registry.SetSessionID(runID, tr.SessionID)
			}
			r.registry.AppendActivity(runID, tr.Activities...)
			if tr.SuccessResult != nil {
				result = tr.SuccessResult
				sawTerminal = true
			}
			if tr.ErrorMessage != "" {
				errMsg = tr.ErrorMessage
				sawTerminal = true
			}

		case <-inactivity.C:
			timedOut = true
			cancel()
			drain(lines)
			break consume

		case <-ctx.Done():
			timedOut = true
			drain(lines)
			break consume
		}
	}

	waitErr := cmd.Wait()

	switch {
	case timedOut:
		// A buffered result is still reported; operators must know
		// output may be partial, hence the distinct terminal status.
		r.registry.FinishRun(runID, domain.RunTimedOut, result, "run timed out")
	case errMsg != "":
		r.registry.FinishRun(runID, domain.RunFailed, nil, errMsg)
	case result != nil:
		r.registry.FinishRun(runID, domain.RunComplete, result, "")
	case waitErr != nil:
		r.registry.FinishRun(runID, domain.RunFailed, nil, truncateErr(waitErr))
	case !sawTerminal:
		r.registry.FinishRun(runID, domain.RunFailed, nil, "agent stream ended without a result")
	}
}

// readLines scans a stream into the channel; a nil channel just drains.
// stream-json lines can be long, so the scanner buffer is enlarged.
func readLines(rc io.ReadCloser, out chan<- string, closeWhenDone bool) {
	defer rc.Close()
	scanner := bufio.NewScanner(rc)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	for scanner.Scan() {
		if out != nil {
			out <- scanner.Text()
		}
	}
	if closeWhenDone && out != nil {
		close(out)
	}
}

// drain consumes remaining buffered lines after cancellation so the reader
// goroutine can exit.
func drain(lines <-chan string) {
	go func() {
		for range lines {
		}
	}()
}

const errLimit = 500

func truncateErr(err error) string {
	s := err.Error()
	if len(s) > errLimit {
		return s[:errLimit]
	}
	return s
}
