package store

// schema contains the SQL statements to create the profile database schema.
// The viewer never runs it; only Create does.
const schema = `
-- Functions table, one row per line of the top-down dump
CREATE TABLE IF NOT EXISTS functions (
    id             TEXT PRIMARY KEY,
    function_stack TEXT NOT NULL,
    short_name     TEXT NOT NULL,
    full_signature TEXT NOT NULL,
    total_time     REAL NOT NULL,
    self_time      REAL NOT NULL,
    percentage     REAL NOT NULL,
    indent_level   INTEGER NOT NULL,
    line_number    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_indent ON functions(indent_level);
CREATE INDEX IF NOT EXISTS idx_percentage ON functions(percentage);
CREATE INDEX IF NOT EXISTS idx_line_number ON functions(line_number);

-- Call relationships; parent_id NULL marks a root
CREATE TABLE IF NOT EXISTS call_relationships (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    parent_id TEXT,
    child_id  TEXT NOT NULL,
    FOREIGN KEY (parent_id) REFERENCES functions(id),
    FOREIGN KEY (child_id) REFERENCES functions(id)
);

CREATE INDEX IF NOT EXISTS idx_parent ON call_relationships(parent_id);
CREATE INDEX IF NOT EXISTS idx_child ON call_relationships(child_id);

-- Children cache: call_relationships joined with child attributes
CREATE TABLE IF NOT EXISTS function_children_cache (
    parent_id            TEXT NOT NULL,
    child_id             TEXT NOT NULL,
    child_short_name     TEXT NOT NULL,
    child_full_signature TEXT NOT NULL,
    child_total_time     REAL NOT NULL,
    child_self_time      REAL NOT NULL,
    child_percentage     REAL NOT NULL,
    child_indent_level   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cache_parent ON function_children_cache(parent_id, child_total_time DESC);

-- Metadata table for ingest info
CREATE TABLE IF NOT EXISTS metadata (
    key   TEXT PRIMARY KEY,
    value TEXT
);
`

// rebuildCacheSQL repopulates function_children_cache from the join it mirrors.
const rebuildCacheSQL = `
INSERT INTO function_children_cache (
    parent_id, child_id, child_short_name, child_full_signature,
    child_total_time, child_self_time, child_percentage, child_indent_level
)
SELECT cr.parent_id, f.id, f.short_name, f.full_signature,
       f.total_time, f.self_time, f.percentage, f.indent_level
FROM call_relationships cr
JOIN functions f ON f.id = cr.child_id
WHERE cr.parent_id IS NOT NULL
`

// cacheJoinSQL is the join the cache must equal, column for column.
const cacheJoinSQL = `
SELECT cr.parent_id, f.id, f.short_name, f.full_signature,
       f.total_time, f.self_time, f.percentage, f.indent_level
FROM call_relationships cr
JOIN functions f ON f.id = cr.child_id
WHERE cr.parent_id IS NOT NULL
`

const cacheRowsSQL = `
SELECT parent_id, child_id, child_short_name, child_full_signature,
       child_total_time, child_self_time, child_percentage, child_indent_level
FROM function_children_cache
`
