// Package worktree manages isolated git worktree sandboxes, one per agent
// run. Branch names are deterministic from the worktree name so stale state
// from an interrupted run is always locatable and removable.
package worktree

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// worktreesSubdir is where run sandboxes live under the project root
const worktreesSubdir = ".claude/worktrees"

// Manager handles git worktree operations for a single repository
type Manager struct {
	repoDir string
}

// NewManager creates a Manager rooted at the given repository
func NewManager(repoDir string) *Manager {
	return &Manager{repoDir: repoDir}
}

// Path returns the on-disk location for a named worktree
func (m *Manager) Path(name string) string {
	return filepath.Join(m.repoDir, worktreesSubdir, name)
}

// BranchName returns the deterministic branch for a named worktree
func BranchName(name string) string {
	return "worktree-" + name
}

// Create provisions a worktree for a run. If fromBranch is non-empty the
// worktree checks out that existing branch (fetched from origin); otherwise
// a fresh branch is created from the current head. Leftovers from an
// interrupted prior run with the same name are removed first.
func (m *Manager) Create(name, fromBranch string) (string, error) {
	wtPath := m.Path(name)
	branch := BranchName(name)

	if err := os.MkdirAll(filepath.Dir(wtPath), 0755); err != nil {
		return "", fmt.Errorf("creating worktree dir: %w", err)
	}

	// Prune dangling metadata first: a directory deleted without a proper
	// `git worktree remove` otherwise blocks recreation.
	m.git("worktree", "prune")

	// A live directory at the target path is stale state from an
	// interrupted run. Remove it before proceeding.
	if _, err := os.Stat(wtPath); err == nil {
		m.git("worktree", "remove", "--force", wtPath)
		os.RemoveAll(wtPath)
		m.git("worktree", "prune")
		if fromBranch == "" {
			m.git("branch", "-D", branch)
		}
	}

	if fromBranch != "" {
		// Continue work on a previously opened change. Fetch/checkout
		// failures are fatal: the run cannot start without its branch.
		if out, err := m.gitOutput("fetch", "origin", fromBranch); err != nil {
			return "", fmt.Errorf("worktree %s: fetching branch %s: %s: %w", name, fromBranch, out, err)
		}
		if out, err := m.gitOutput("worktree", "add", wtPath, fromBranch); err != nil {
			return "", fmt.Errorf("worktree %s: checking out %s: %s: %w", name, fromBranch, out, err)
		}
		return wtPath, nil
	}

	// Fresh branch from the current head. Force-delete any orphan branch of
	// the deterministic name left over from earlier tooling.
	m.git("branch", "-D", branch)
	if out, err := m.gitOutput("worktree", "add", "-b", branch, wtPath, "HEAD"); err != nil {
		return "", fmt.Errorf("worktree %s: git worktree add: %s: %w", name, out, err)
	}

	return wtPath, nil
}

// Remove tears down a worktree. Best-effort: failures are logged rather than
// returned so a failed cleanup never aborts a larger run-termination
// sequence. The deterministic branch is deleted unless keepBranch is set
// (set when the branch is a reviewed change that must outlive the worktree).
func (m *Manager) Remove(name string, keepBranch bool) {
	wtPath := m.Path(name)

	if out, err := m.gitOutput("worktree", "remove", "--force", wtPath); err != nil {
		log.Printf("Warning: removing worktree %s: %s: %v", name, strings.TrimSpace(string(out)), err)
		// The directory may still be there if git refused
		if err := os.RemoveAll(wtPath); err != nil {
			log.Printf("Warning: removing worktree dir %s: %v", wtPath, err)
		}
	}

	m.git("worktree", "prune")

	if !keepBranch {
		m.git("branch", "-D", BranchName(name))
	}
}

// List returns the paths of all worktrees under the managed subdirectory
func (m *Manager) List() ([]string, error) {
	out, err := m.gitOutput("worktree", "list", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("git worktree list: %w", err)
	}

	prefix := filepath.Join(m.repoDir, worktreesSubdir)
	var paths []string
	for _, line := range strings.Split(string(out), "\n") {
		if strings.HasPrefix(line, "worktree ") {
			path := strings.TrimPrefix(line, "worktree ")
			if strings.HasPrefix(path, prefix) {
				paths = append(paths, path)
			}
		}
	}
	return paths, nil
}

// git runs a git command in the repo, ignoring errors
func (m *Manager) git(args ...string) {
	cmd := exec.Command("git", args...)
	cmd.Dir = m.repoDir
	cmd.Run()
}

// gitOutput runs a git command in the repo, returning combined output
func (m *Manager) gitOutput(args ...string) ([]byte, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = m.repoDir
	return cmd.CombinedOutput()
}
