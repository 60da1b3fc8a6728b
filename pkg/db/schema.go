package db

const schema = `
-- Performance and reliability settings
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA foreign_keys = ON;
PRAGMA temp_store = MEMORY;

-- One row per word-count run. Timestamps are Unix milliseconds.
CREATE TABLE IF NOT EXISTS jobs (
    job_id TEXT PRIMARY KEY,
    state TEXT NOT NULL,              -- COMPLETED, FAILED
    input TEXT,
    output TEXT,
    reducers INTEGER NOT NULL,
    splits INTEGER DEFAULT 0,
    combiner BOOLEAN DEFAULT 0,
    started_at INTEGER NOT NULL,
    finished_at INTEGER,
    elapsed_ms INTEGER DEFAULT 0,

    input_bytes INTEGER DEFAULT 0,
    lines INTEGER DEFAULT 0,
    skipped_lines INTEGER DEFAULT 0,
    tokens INTEGER DEFAULT 0,
    shuffled_pairs INTEGER DEFAULT 0,
    unique_keys INTEGER DEFAULT 0,

    -- Top keywords as JSON array: ["word1:count1", ...]
    top_keywords TEXT,
    error TEXT
);

CREATE INDEX IF NOT EXISTS idx_jobs_started ON jobs(started_at);
CREATE INDEX IF NOT EXISTS idx_jobs_input_reducers ON jobs(input, reducers);

-- Published partition files of completed jobs
CREATE TABLE IF NOT EXISTS job_partitions (
    job_id TEXT NOT NULL,
    partition_index INTEGER NOT NULL,
    file TEXT NOT NULL,
    key_count INTEGER DEFAULT 0,
    total INTEGER DEFAULT 0,
    sha256 TEXT,
    elapsed_ms INTEGER DEFAULT 0,
    PRIMARY KEY (job_id, partition_index),
    FOREIGN KEY (job_id) REFERENCES jobs(job_id) ON DELETE CASCADE
);

-- State machine history
CREATE TABLE IF NOT EXISTS job_transitions (
    transition_id INTEGER PRIMARY KEY AUTOINCREMENT,
    job_id TEXT NOT NULL,
    from_state TEXT NOT NULL,
    to_state TEXT NOT NULL,
    at INTEGER NOT NULL,
    FOREIGN KEY (job_id) REFERENCES jobs(job_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_job_transitions_job ON job_transitions(job_id);
`
