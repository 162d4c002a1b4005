package worktree

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
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

	readme := filepath.Join(dir, "README.md")
	os.WriteFile(readme, []byte("# Test"), 0644)

	cmd := exec.Command("git", "add", ".")
	cmd.Dir = dir
	cmd.Run()

	cmd = exec.Command("git", "commit", "-m", "Initial commit")
	cmd.Dir = dir
	cmd.Run()

	return dir
}

func gitLines(t *testing.T, dir string, args ...string) []string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("git %v: %v", args, err)
	}
	var lines []string
	for _, l := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func TestManager_Create(t *testing.T) {
	repoDir := setupGitRepo(t)
	mgr := NewManager(repoDir)

	wtPath, err := mgr.Create("fix-login", "")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(wtPath); os.IsNotExist(err) {
		t.Error("worktree directory not created")
	}
	if want := filepath.Join(repoDir, ".claude", "worktrees", "fix-login"); wtPath != want {
		t.Errorf("path = %q, want %q", wtPath, want)
	}

	branches := gitLines(t, repoDir, "branch", "--list", "worktree-fix-login")
	if len(branches) == 0 {
		t.Error("branch worktree-fix-login not created")
	}
}

func TestManager_CreateIdempotentAfterInterruption(t *testing.T) {
	repoDir := setupGitRepo(t)
	mgr := NewManager(repoDir)

	// First run interrupted: worktree left behind without teardown
	first, err := mgr.Create("fix-login", "")
	if err != nil {
		t.Fatal(err)
	}

	// Second run with the same name must self-heal
	second, err := mgr.Create("fix-login", "")
	if err != nil {
		t.Fatalf("second Create failed: %v", err)
	}
	if first != second {
		t.Errorf("paths differ: %q vs %q", first, second)
	}

	// Exactly one worktree directory and one branch remain
	wts, err := mgr.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(wts) != 1 {
		t.Errorf("worktrees = %v, want exactly one", wts)
	}
	branches := gitLines(t, repoDir, "branch", "--list", "worktree-fix-login")
	if len(branches) != 1 {
		t.Errorf("branches = %v, want exactly one", branches)
	}
}

func TestManager_CreateSurvivesDeletedDirectory(t *testing.T) {
	repoDir := setupGitRepo(t)
	mgr := NewManager(repoDir)

	wtPath, err := mgr.Create("fix-login", "")
	if err != nil {
		t.Fatal(err)
	}

	// Simulate a directory deleted without `git worktree remove`, which
	// leaves dangling metadata that blocks recreation until pruned.
	if err := os.RemoveAll(wtPath); err != nil {
		t.Fatal(err)
	}

	if _, err := mgr.Create("fix-login", ""); err != nil {
		t.Fatalf("Create after manual deletion failed: %v", err)
	}
}

func TestManager_CreateFromMissingBranchFails(t *testing.T) {
	repoDir := setupGitRepo(t)
	mgr := NewManager(repoDir)

	_, err := mgr.Create("fix-login", "no-such-branch")
	if err == nil {
		t.Fatal("Create from missing branch succeeded, want error")
	}
	if !strings.Contains(err.Error(), "fix-login") {
		t.Errorf("error %q does not name the worktree", err)
	}
}

func TestManager_Remove(t *testing.T) {
	repoDir := setupGitRepo(t)
	mgr := NewManager(repoDir)

	wtPath, err := mgr.Create("fix-login", "")
	if err != nil {
		t.Fatal(err)
	}

	mgr.Remove("fix-login", false)

	if _, err := os.Stat(wtPath); !os.IsNotExist(err) {
		t.Error("worktree directory still exists")
	}
	branches := gitLines(t, repoDir, "branch", "--list", "worktree-fix-login")
	if len(branches) != 0 {
		t.Errorf("branch still exists: %v", branches)
	}
}

func TestManager_RemoveKeepBranch(t *testing.T) {
	repoDir := setupGitRepo(t)
	mgr := NewManager(repoDir)

	if _, err := mgr.Create("fix-login", ""); err != nil {
		t.Fatal(err)
	}

	mgr.Remove("fix-login", true)

	branches := gitLines(t, repoDir, "branch", "--list", "worktree-fix-login")
	if len(branches) != 1 {
		t.Errorf("branch was deleted despite keepBranch: %v", branches)
	}
}

func TestManager_RemoveMissingIsQuiet(t *testing.T) {
	repoDir := setupGitRepo(t)
	mgr := NewManager(repoDir)

	// Must not panic or abort; failures are logged only
	mgr.Remove("never-created", false)
}

func TestBranchName(t *testing.T) {
	if got := BranchName("issue-42"); got != "worktree-issue-42" {
		t.Errorf("BranchName = %q, want worktree-issue-42", got)
	}
}
