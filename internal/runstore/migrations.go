package runstore

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    issue_number INTEGER,
    label TEXT NOT NULL,
    status TEXT NOT NULL,
    started_at TIMESTAMP,
    finished_at TIMESTAMP,
    session_id TEXT,
    worktree_path TEXT,
    branch TEXT,
    pr_owner TEXT,
    pr_repo TEXT,
    pr_number INTEGER,
    result TEXT,
    cost_usd REAL,
    duration_ms INTEGER,
    num_turns INTEGER,
    review_merged INTEGER,
    review_ci TEXT,
    error TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`
