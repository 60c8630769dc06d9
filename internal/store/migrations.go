package store

const schema = `
CREATE TABLE IF NOT EXISTS titles (
    tid             TEXT PRIMARY KEY,
    name            TEXT,
    version         TEXT,
    size            INTEGER,
    release_date    TEXT,
    is_base         BOOLEAN NOT NULL DEFAULT 0,
    is_update       BOOLEAN NOT NULL DEFAULT 0,
    is_dlc          BOOLEAN NOT NULL DEFAULT 0,
    base_tid        TEXT,
    total_downloads INTEGER NOT NULL DEFAULT 0,
    last_updated    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_titles_base ON titles(is_base);
CREATE INDEX IF NOT EXISTS idx_titles_downloads ON titles(total_downloads);

CREATE TABLE IF NOT EXISTS downloads (
    tid   TEXT NOT NULL,
    date  TEXT NOT NULL,
    count INTEGER NOT NULL,
    PRIMARY KEY (tid, date)
);

CREATE INDEX IF NOT EXISTS idx_downloads_date ON downloads(date);

CREATE TABLE IF NOT EXISTS global_stats (
    id            INTEGER PRIMARY KEY CHECK (id = 1),
    last_72h      INTEGER NOT NULL DEFAULT 0,
    last_7d       INTEGER NOT NULL DEFAULT 0,
    last_30d      INTEGER NOT NULL DEFAULT 0,
    all_time      INTEGER NOT NULL DEFAULT 0,
    evolution_72h REAL NOT NULL DEFAULT 0,
    evolution_7d  REAL NOT NULL DEFAULT 0,
    evolution_30d REAL NOT NULL DEFAULT 0,
    last_updated  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS analytics_daily (
    date             TEXT PRIMARY KEY,
    total_downloads  INTEGER NOT NULL DEFAULT 0,
    unique_titles    INTEGER NOT NULL DEFAULT 0,
    data_transferred INTEGER NOT NULL DEFAULT 0,
    base_downloads   INTEGER NOT NULL DEFAULT 0,
    update_downloads INTEGER NOT NULL DEFAULT 0,
    dlc_downloads    INTEGER NOT NULL DEFAULT 0,
    base_data        INTEGER NOT NULL DEFAULT 0,
    update_data      INTEGER NOT NULL DEFAULT 0,
    dlc_data         INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS analytics_weekly (
    year             INTEGER NOT NULL,
    week             INTEGER NOT NULL CHECK (week >= 1 AND week <= 53),
    total_downloads  INTEGER NOT NULL DEFAULT 0,
    data_transferred INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (year, week)
);

CREATE TABLE IF NOT EXISTS analytics_monthly (
    year             INTEGER NOT NULL,
    month            INTEGER NOT NULL CHECK (month >= 1 AND month <= 12),
    total_downloads  INTEGER NOT NULL DEFAULT 0,
    data_transferred INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (year, month)
);

CREATE TABLE IF NOT EXISTS analytics_period_stats (
    period           TEXT NOT NULL CHECK (period IN ('72h', '7d', '30d', 'all')),
    content_type     TEXT NOT NULL CHECK (content_type IN ('base', 'update', 'dlc', 'all')),
    total_downloads  INTEGER NOT NULL DEFAULT 0,
    data_transferred INTEGER NOT NULL DEFAULT 0,
    unique_items     INTEGER NOT NULL DEFAULT 0,
    growth_rate      REAL NOT NULL DEFAULT 0,
    last_updated     DATETIME NOT NULL,
    PRIMARY KEY (period, content_type)
);

CREATE TABLE IF NOT EXISTS analytics_cache (
    period     TEXT PRIMARY KEY,
    data       TEXT NOT NULL,
    created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS current_rankings (
    tid                TEXT NOT NULL,
    period             TEXT NOT NULL CHECK (period IN ('72h', '7d', '30d', 'all')),
    content_type       TEXT NOT NULL CHECK (content_type IN ('base', 'update', 'dlc')),
    rank               INTEGER NOT NULL,
    previous_rank      INTEGER,
    rank_change        INTEGER NOT NULL DEFAULT 0,
    downloads          INTEGER NOT NULL,
    previous_downloads INTEGER NOT NULL DEFAULT 0,
    last_updated       DATETIME NOT NULL,
    PRIMARY KEY (tid, period, content_type)
);

CREATE INDEX IF NOT EXISTS idx_current_rankings_scope ON current_rankings(period, content_type, rank);

CREATE TABLE IF NOT EXISTS rankings_history (
    tid          TEXT NOT NULL,
    period       TEXT NOT NULL CHECK (period IN ('72h', '7d', '30d', 'all')),
    content_type TEXT NOT NULL CHECK (content_type IN ('base', 'update', 'dlc')),
    rank         INTEGER NOT NULL,
    downloads    INTEGER NOT NULL,
    date         TEXT NOT NULL,
    PRIMARY KEY (tid, period, content_type, date)
);

CREATE INDEX IF NOT EXISTS idx_rankings_history_date ON rankings_history(date);
CREATE INDEX IF NOT EXISTS idx_rankings_history_scope ON rankings_history(period, content_type);

CREATE TABLE IF NOT EXISTS home_rankings (
    tid          TEXT NOT NULL,
    period       TEXT NOT NULL CHECK (period IN ('72h', '7d', '30d', 'all')),
    rank         INTEGER NOT NULL,
    downloads    INTEGER NOT NULL,
    last_updated DATETIME NOT NULL,
    PRIMARY KEY (tid, period)
);

CREATE INDEX IF NOT EXISTS idx_home_rankings_period ON home_rankings(period, rank);

INSERT OR IGNORE INTO global_stats (id, last_72h, last_7d, last_30d, all_time, last_updated)
VALUES (1, 0, 0, 0, 0, datetime('now'));
`
