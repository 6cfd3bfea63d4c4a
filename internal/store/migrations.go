package store

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id           TEXT PRIMARY KEY,
    started_at   DATETIME NOT NULL,
    finished_at  DATETIME NOT NULL,
    story_count  INTEGER NOT NULL DEFAULT 0,
    failed_units TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_runs_finished_at ON runs(finished_at);

CREATE TABLE IF NOT EXISTS stories (
    run_id         TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    rank           INTEGER NOT NULL,
    title          TEXT NOT NULL,
    url            TEXT NOT NULL,
    source         TEXT NOT NULL,
    type           TEXT NOT NULL,
    position       INTEGER,
    upvotes        INTEGER,
    sort           TEXT NOT NULL DEFAULT '',
    virality_score INTEGER NOT NULL,
    collected_at   DATETIME NOT NULL,
    PRIMARY KEY (run_id, rank)
);

CREATE INDEX IF NOT EXISTS idx_stories_source ON stories(source);
CREATE INDEX IF NOT EXISTS idx_stories_score ON stories(virality_score);
`
