package storage

const schema = `
PRAGMA foreign_keys = ON;

-- Users mirror the identity provider; nothing here is authoritative.
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    display_name TEXT NOT NULL DEFAULT '',
    email TEXT NOT NULL DEFAULT '',
    updated_at DATETIME NOT NULL
);

-- A study set and its generated outline (stored as JSON).
CREATE TABLE IF NOT EXISTS study_sets (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    title TEXT NOT NULL,
    summary TEXT NOT NULL,
    outline TEXT NOT NULL DEFAULT '[]',
    source_hash TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_study_sets_user ON study_sets(user_id, created_at);

CREATE TABLE IF NOT EXISTS keywords (
    id TEXT PRIMARY KEY,
    study_set_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    term TEXT NOT NULL,
    definition TEXT NOT NULL,
    source_sentence TEXT NOT NULL DEFAULT '',
    ai_score INTEGER NOT NULL,

    FOREIGN KEY(study_set_id) REFERENCES study_sets(id) ON DELETE CASCADE
);

-- One row per (keyword, user); writing a score never touches other users' rows.
CREATE TABLE IF NOT EXISTS keyword_scores (
    keyword_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    score INTEGER NOT NULL,
    updated_at DATETIME NOT NULL,

    PRIMARY KEY (keyword_id, user_id),
    FOREIGN KEY(keyword_id) REFERENCES keywords(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS flashcards (
    id TEXT PRIMARY KEY,
    study_set_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    front TEXT NOT NULL,
    back TEXT NOT NULL,
    edited INTEGER NOT NULL DEFAULT 0,
    interval REAL NOT NULL,
    ease_factor REAL NOT NULL,
    next_review_date DATETIME NOT NULL,

    FOREIGN KEY(study_set_id) REFERENCES study_sets(id) ON DELETE CASCADE
);

-- Options are stored as a JSON array.
CREATE TABLE IF NOT EXISTS practice_questions (
    id TEXT PRIMARY KEY,
    study_set_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    bloom_level TEXT NOT NULL,
    kind TEXT NOT NULL,
    question TEXT NOT NULL,
    options TEXT NOT NULL DEFAULT '[]',
    correct_answer TEXT NOT NULL DEFAULT '',
    rubric TEXT NOT NULL DEFAULT '',

    FOREIGN KEY(study_set_id) REFERENCES study_sets(id) ON DELETE CASCADE
);

-- Sources are folders or git repositories of material to ingest.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    path TEXT NOT NULL,
    type TEXT NOT NULL,
    last_scanned DATETIME,

    UNIQUE(user_id, path)
);

-- Materials already turned into study sets, keyed by content hash.
CREATE TABLE IF NOT EXISTS materials (
    hash TEXT NOT NULL,
    source_id INTEGER NOT NULL,
    study_set_id TEXT NOT NULL,
    path TEXT NOT NULL,
    created_at DATETIME NOT NULL,

    PRIMARY KEY (hash, source_id),
    FOREIGN KEY(source_id) REFERENCES sources(id) ON DELETE CASCADE
);
`
