// Package runstore provides SQLite-backed persistence for terminal runs, so
// the history collection survives orchestrator restarts.
package runstore

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hochfrequenz/agent-orchestrator/internal/domain"
)

// Store persists run history
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun inserts or updates a run record. Activity logs are not persisted;
// they are bounded in-memory state.
func (s *Store) SaveRun(run *domain.Run) error {
	var prOwner, prRepo string
	var prNumber int
	if run.PullRequest != nil {
		prOwner = run.PullRequest.Owner
		prRepo = run.PullRequest.Repo
		prNumber = run.PullRequest.Number
	}

	var wtPath, branch string
	if run.Worktree != nil {
		wtPath = run.Worktree.Path
		branch = run.Worktree.Branch
	}

	var result string
	var costUSD float64
	var durationMS int64
	var numTurns int
	if run.Result != nil {
		result = run.Result.Result
		costUSD = run.Result.CostUSD
		durationMS = run.Result.Duration.Milliseconds()
		numTurns = run.Result.NumTurns
	}

	var reviewMerged bool
	var reviewCI string
	if run.Review != nil {
		reviewMerged = run.Review.Merged
		reviewCI = string(run.Review.CI)
	}

	_, err := s.db.Exec(`
		INSERT INTO runs (id, issue_number, label, status, started_at, finished_at, session_id,
			worktree_path, branch, pr_owner, pr_repo, pr_number, result, cost_usd, duration_ms, num_turns,
			review_merged, review_ci, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			finished_at = excluded.finished_at,
			session_id = excluded.session_id,
			result = excluded.result,
			cost_usd = excluded.cost_usd,
			duration_ms = excluded.duration_ms,
			num_turns = excluded.num_turns,
			review_merged = excluded.review_merged,
			review_ci = excluded.review_ci,
			error = excluded.error
	`,
		run.ID,
		run.IssueNumber,
		run.Label,
		string(run.Status),
		run.StartedAt,
		run.FinishedAt,
		run.SessionID,
		wtPath,
		branch,
		prOwner,
		prRepo,
		prNumber,
		result,
		costUSD,
		durationMS,
		numTurns,
		reviewMerged,
		reviewCI,
		run.Error,
	)
	return err
}

// UpdateRunStatus updates only a run's status and error message
func (s *Store) UpdateRunStatus(id string, status domain.RunStatus, errMsg string) error {
	_, err := s.db.Exec(`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(status), errMsg, time.Now(), id)
	return err
}

// ListRecentRuns returns up to limit runs, newest first
func (s *Store) ListRecentRuns(limit int) ([]*domain.Run, error) {
	rows, err := s.db.Query(`
		SELECT id, issue_number, label, status, started_at, finished_at, session_id,
			worktree_path, branch, pr_owner, pr_repo, pr_number, result, cost_usd, duration_ms, num_turns,
			review_merged, review_ci, error
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun retrieves one run by ID; returns nil when not found
func (s *Store) GetRun(id string) (*domain.Run, error) {
	rows, err := s.db.Query(`
		SELECT id, issue_number, label, status, started_at, finished_at, session_id,
			worktree_path, branch, pr_owner, pr_repo, pr_number, result, cost_usd, duration_ms, num_turns,
			review_merged, review_ci, error
		FROM runs WHERE id = ?
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanRun(rows)
}

func scanRun(rows *sql.Rows) (*domain.Run, error) {
	var run domain.Run
	var status string
	var finishedAt sql.NullTime
	var sessionID, wtPath, branch, prOwner, prRepo, result, reviewCI, errMsg sql.NullString
	var prNumber, numTurns sql.NullInt64
	var costUSD sql.NullFloat64
	var durationMS sql.NullInt64
	var reviewMerged sql.NullBool

	err := rows.Scan(&run.ID, &run.IssueNumber, &run.Label, &status, &run.StartedAt, &finishedAt,
		&sessionID, &wtPath, &branch, &prOwner, &prRepo, &prNumber,
		&result, &costUSD, &durationMS, &numTurns, &reviewMerged, &reviewCI, &errMsg)
	if err != nil {
		return nil, err
	}

	run.Status = domain.RunStatus(status)
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	run.SessionID = sessionID.String
	run.Error = errMsg.String

	if wtPath.String != "" {
		run.Worktree = &domain.Worktree{Path: wtPath.String, Branch: branch.String}
	}
	if prOwner.String != "" && prRepo.String != "" && prNumber.Int64 > 0 {
		run.PullRequest = &domain.PullRequestRef{
			Owner:  prOwner.String,
			Repo:   prRepo.String,
			Number: int(prNumber.Int64),
		}
	}
	if result.String != "" || costUSD.Float64 > 0 || numTurns.Int64 > 0 {
		run.Result = &domain.RunResult{
			Result:   result.String,
			CostUSD:  costUSD.Float64,
			Duration: time.Duration(durationMS.Int64) * time.Millisecond,
			NumTurns: int(numTurns.Int64),
		}
	}
	if reviewMerged.Bool || reviewCI.String != "" {
		run.Review = &domain.ReviewStatus{
			Merged: reviewMerged.Bool,
			CI:     domain.CIStatus(reviewCI.String),
		}
	}

	return &run, nil
}
