package runner

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hochfrequenz/agent-orchestrator/internal/domain"
	"github.com/hochfrequenz/agent-orchestrator/internal/registry"
	"github.com/hochfrequenz/agent-orchestrator/internal/worktree"
)

func setupGitRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	cmds := [][]string{
		{"git", "init"},
		{"git", "config", "user.email", "test@test.com"},
		{"git", "config", "user.name", "Test"},
	}
	for _, args := range cmds {
		cmd := exec.Command(args[0], args[1:]...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("%v failed: %s", args, out)
		}
	}

	os.WriteFile(filepath.Join(dir, "README.md"), []byte("# Test"), 0644)
	cmd := exec.Command("git", "add", ".")
	cmd.Dir = dir
	cmd.Run()
	cmd = exec.Command("git", "commit", "-m", "Initial commit")
	cmd.Dir = dir
	cmd.Run()

	return dir
}

// fakeAgent writes a shell script that plays back the given stream-json
// lines, standing in for the real agent executable.
func fakeAgent(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-agent")
	content := "#!/bin/sh\n" + script
	if err := os.WriteFile(path, []byte(content), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func waitForTerminal(t *testing.T, reg *registry.Registry, runID string, timeout time.Duration) *domain.Run {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if run, ok := reg.Run(runID); ok && run.Status.Terminal() {
			return run
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("run did not reach a terminal state")
	return nil
}

func TestRunner_EndToEndSuccess(t *testing.T) {
	repoDir := setupGitRepo(t)
	reg := registry.New(nil)
	wt := worktree.NewManager(repoDir)

	// The workdir placeholder is substituted at runtime by the shell: the
	// fake agent emits a tool_use whose path lives under the worktree.
	agent := fakeAgent(t, `
echo '{"type":"system","subtype":"init","session_id":"sess-1"}'
echo "{\"type\":\"assistant\",\"message\":{\"content\":[{\"type\":\"tool_use\",\"name\":\"Read\",\"input\":{\"file_path\":\"$PWD/src/app.ts\"}}]}}"
echo '{"type":"result","subtype":"success","result":"done","total_cost_usd":0.1,"duration_ms":1200,"num_turns":3}'
`)

	r := New(Config{Executable: agent}, reg, wt)
	runID, err := r.Start(context.Background(), Spec{Name: "issue-42", Label: "issue 42", Prompt: "fix it"})
	if err != nil {
		t.Fatal(err)
	}

	run := waitForTerminal(t, reg, runID, 5*time.Second)

	if run.Status != domain.RunComplete {
		t.Fatalf("status = %v (error: %q), want completed", run.Status, run.Error)
	}
	if run.Result == nil || run.Result.Result != "done" {
		t.Fatalf("result = %+v, want 'done'", run.Result)
	}
	if run.SessionID != "sess-1" {
		t.Errorf("session id = %q, want sess-1", run.SessionID)
	}

	entries, ok := reg.Activities(runID)
	if !ok {
		t.Fatal("activities not found")
	}
	if len(entries) != 3 {
		t.Fatalf("activities = %d, want 3: %+v", len(entries), entries)
	}
	if entries[0].Kind != domain.ActivityStatus || entries[0].Summary != "Agent started" {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if entries[1].Kind != domain.ActivityToolUse || !strings.HasSuffix(entries[1].Summary, ": src/app.ts") {
		t.Errorf("entry 1 = %+v, want tool_use ending in ': src/app.ts'", entries[1])
	}
	if entries[2].Kind != domain.ActivityResult || entries[2].Summary != "Agent completed successfully" {
		t.Errorf("entry 2 = %+v", entries[2])
	}

	// Worktree torn down after the terminal transition
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(run.Worktree.Path); os.IsNotExist(err) {
			break
		}
		if time.Now().After(deadline) {
			t.Error("worktree not removed after completion")
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestRunner_ErrorResult(t *testing.T) {
	repoDir := setupGitRepo(t)
	reg := registry.New(nil)
	wt := worktree.NewManager(repoDir)

	agent := fakeAgent(t, `
echo '{"type":"system","subtype":"init","session_id":"s"}'
echo '{"type":"result","subtype":"error_during_execution","is_error":true,"errors":[{"message":"tool crashed"}]}'
`)

	r := New(Config{Executable: agent}, reg, wt)
	runID, err := r.Start(context.Background(), Spec{Name: "issue-43", Label: "issue 43", Prompt: "fix it"})
	if err != nil {
		t.Fatal(err)
	}

	run := waitForTerminal(t, reg, runID, 5*time.Second)
	if run.Status != domain.RunFailed {
		t.Fatalf("status = %v, want failed", run.Status)
	}
	if run.Error != "tool crashed" {
		t.Errorf("error = %q, want 'tool crashed'", run.Error)
	}
}

func TestRunner_InactivityTimeout(t *testing.T) {
	repoDir := setupGitRepo(t)
	reg := registry.New(nil)
	wt := worktree.NewManager(repoDir)

	agent := fakeAgent(t, `
echo '{"type":"system","subtype":"init","session_id":"s"}'
sleep 30
`)

	r := New(Config{Executable: agent, InactivityTimeout: 200 * time.Millisecond}, reg, wt)
	runID, err := r.Start(context.Background(), Spec{Name: "issue-44", Label: "issue 44", Prompt: "fix it"})
	if err != nil {
		t.Fatal(err)
	}

	run := waitForTerminal(t, reg, runID, 5*time.Second)
	if run.Status != domain.RunTimedOut {
		t.Fatalf("status = %v, want timed_out", run.Status)
	}
}

func TestRunner_StreamEndsWithoutResult(t *testing.T) {
	repoDir := setupGitRepo(t)
	reg := registry.New(nil)
	wt := worktree.NewManager(repoDir)

	agent := fakeAgent(t, `
echo '{"type":"system","subtype":"init","session_id":"s"}'
`)

	r := New(Config{Executable: agent}, reg, wt)
	runID, err := r.Start(context.Background(), Spec{Name: "issue-45", Label: "issue 45", Prompt: "fix it"})
	if err != nil {
		t.Fatal(err)
	}

	run := waitForTerminal(t, reg, runID, 5*time.Second)
	if run.Status != domain.RunFailed {
		t.Fatalf("status = %v, want failed", run.Status)
	}
	if !strings.Contains(run.Error, "without a result") {
		t.Errorf("error = %q", run.Error)
	}
}

func TestRunner_RequiresPrompt(t *testing.T) {
	reg := registry.New(nil)
	wt := worktree.NewManager(t.TempDir())
	r := New(Config{Executable: "claude"}, reg, wt)

	if _, err := r.Start(context.Background(), Spec{Name: "x"}); err == nil {
		t.Fatal("Start without prompt succeeded, want error")
	}
}
