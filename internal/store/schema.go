package store

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    stamp TEXT NOT NULL,
    created_at TEXT NOT NULL,
    function TEXT,
    file TEXT,
    title TEXT,
    author TEXT,
    collection TEXT,
    tags TEXT,
    output_dir TEXT NOT NULL,
    code_path TEXT,
    html_path TEXT,
    entry_dir TEXT,
    remote_id TEXT,
    outcome TEXT,
    warnings INTEGER NOT NULL DEFAULT 0,
    duration_ms INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS run_plots (
    run_id TEXT NOT NULL,
    idx INTEGER NOT NULL,
    path TEXT NOT NULL,
    PRIMARY KEY (run_id, idx),
    FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS builds (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    site_dir TEXT NOT NULL,
    output_dir TEXT NOT NULL,
    built_at TEXT NOT NULL,
    collections INTEGER NOT NULL,
    entries INTEGER NOT NULL,
    pages INTEGER NOT NULL,
    skipped INTEGER NOT NULL,
    failures INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS publishes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    snapshot_dir TEXT NOT NULL,
    remote_id TEXT,
    backend_url TEXT NOT NULL,
    published_at TEXT NOT NULL,
    files INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_runs_collection ON runs(collection);
CREATE INDEX IF NOT EXISTS idx_builds_site ON builds(site_dir);
`
