package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrDatabaseNotFound is returned when the database file does not exist or cannot be resolved.
	ErrDatabaseNotFound = errors.New("database not found")
	// ErrFunctionNotFound is returned when no function matches the requested id or name.
	ErrFunctionNotFound = errors.New("function not found")
)

// Store wraps a profile database.
type Store struct {
	db       *sql.DB
	dbPath   string
	readOnly bool
}

// Open opens an existing profile database read-only.
// It returns ErrDatabaseNotFound if the file does not exist.
func Open(path string) (*Store, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", filepath.Base(absPath), ErrDatabaseNotFound)
		}
		return nil, fmt.Errorf("stat %s: %w", absPath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory: %w", filepath.Base(absPath), ErrDatabaseNotFound)
	}

	dsn := (&url.URL{Scheme: "file", Path: absPath, RawQuery: "mode=ro"}).String()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database %s: %w", absPath, err)
	}

	return &Store{db: db, dbPath: absPath, readOnly: true}, nil
}

// Create creates or opens a profile database for writing and ensures the schema exists.
func Create(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = DELETE",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000", // 64MB cache
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, dbPath: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DBPath returns the path to the database file.
func (s *Store) DBPath() string {
	return s.dbPath
}

const functionColumns = `id, short_name, full_signature, total_time, self_time, percentage, indent_level, line_number`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFunction(row rowScanner) (*Function, error) {
	var f Function
	if err := row.Scan(&f.ID, &f.ShortName, &f.FullSignature, &f.TotalTime, &f.SelfTime,
		&f.Percentage, &f.IndentLevel, &f.LineNumber); err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *Store) queryFunctions(ctx context.Context, query string, args ...any) ([]Function, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Function
	for rows.Next() {
		f, err := scanFunction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning function: %w", err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// ListFunctions returns every function ordered by the given key.
func (s *Store) ListFunctions(ctx context.Context, sort SortKey) ([]Function, error) {
	fns, err := s.queryFunctions(ctx, `SELECT `+functionColumns+` FROM functions ORDER BY `+sort.orderBy())
	if err != nil {
		return nil, fmt.Errorf("listing functions: %w", err)
	}
	return fns, nil
}

// GetFunction returns the function with the given id.
func (s *Store) GetFunction(ctx context.Context, id FunctionID) (*Function, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+functionColumns+` FROM functions WHERE id = ?`, id)
	f, err := scanFunction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("function %q: %w", id, ErrFunctionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting function %q: %w", id, err)
	}
	return f, nil
}

// GetChildren returns the cached immediate children of a function, heaviest first.
func (s *Store) GetChildren(ctx context.Context, id FunctionID) ([]Child, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT parent_id, child_id, child_short_name, child_full_signature,
		       child_total_time, child_self_time, child_percentage, child_indent_level
		FROM function_children_cache
		WHERE parent_id = ?
		ORDER BY child_total_time DESC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying children of %q: %w", id, err)
	}
	defer rows.Close()

	var children []Child
	for rows.Next() {
		var c Child
		if err := rows.Scan(&c.ParentID, &c.ID, &c.ShortName, &c.FullSignature,
			&c.TotalTime, &c.SelfTime, &c.Percentage, &c.IndentLevel); err != nil {
			return nil, fmt.Errorf("scanning child: %w", err)
		}
		children = append(children, c)
	}
	return children, rows.Err()
}

// Roots returns the functions recorded without a caller, in dump order.
func (s *Store) Roots(ctx context.Context) ([]Function, error) {
	fns, err := s.queryFunctions(ctx, `
		SELECT `+functionColumns+` FROM functions
		WHERE id IN (SELECT child_id FROM call_relationships WHERE parent_id IS NULL)
		ORDER BY line_number
	`)
	if err != nil {
		return nil, fmt.Errorf("listing roots: %w", err)
	}
	return fns, nil
}

// FindByName returns the first function, in dump order, whose short name contains needle.
func (s *Store) FindByName(ctx context.Context, needle string) (*Function, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+functionColumns+` FROM functions
		WHERE instr(short_name, ?) > 0
		ORDER BY line_number
		LIMIT 1
	`, needle)
	f, err := scanFunction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("name %q: %w", needle, ErrFunctionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("finding %q: %w", needle, err)
	}
	return f, nil
}

// Descendants returns the rows nested under fn in the original dump, in dump order.
// The subtree ends at the next row indented at or above fn. maxDepth limits how many
// levels below fn are returned; 0 returns the whole subtree.
func (s *Store) Descendants(ctx context.Context, fn *Function, maxDepth int) ([]Function, error) {
	fns, err := s.queryFunctions(ctx, `
		SELECT `+functionColumns+` FROM functions
		WHERE line_number > ?
		  AND line_number < COALESCE(
		      (SELECT MIN(line_number) FROM functions WHERE line_number > ? AND indent_level <= ?),
		      9223372036854775807)
		  AND (? = 0 OR indent_level <= ?)
		ORDER BY line_number
	`, fn.LineNumber, fn.LineNumber, fn.IndentLevel, maxDepth, fn.IndentLevel+maxDepth)
	if err != nil {
		return nil, fmt.Errorf("descendants of %q: %w", fn.ID, err)
	}
	return fns, nil
}

// RebuildChildrenCache replaces the cache contents with the current join in one transaction.
// It returns the number of cache rows written.
func (s *Store) RebuildChildrenCache(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning cache rebuild: %w", err)
	}
	defer tx.Rollback()

	n, err := rebuildChildrenCache(ctx, tx)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing cache rebuild: %w", err)
	}
	return n, nil
}

func rebuildChildrenCache(ctx context.Context, tx *sql.Tx) (int64, error) {
	if _, err := tx.ExecContext(ctx, "DELETE FROM function_children_cache"); err != nil {
		return 0, fmt.Errorf("clearing children cache: %w", err)
	}
	res, err := tx.ExecContext(ctx, rebuildCacheSQL)
	if err != nil {
		return 0, fmt.Errorf("populating children cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting cache rows: %w", err)
	}
	return n, nil
}

// CacheStatus compares the children cache against the join it mirrors.
type CacheStatus struct {
	CacheRows int `json:"cache_rows"`
	JoinRows  int `json:"join_rows"`
	Missing   int `json:"missing"` // In the join but not in the cache
	Extra     int `json:"extra"`   // In the cache but not in the join
}

// Fresh reports whether the cache equals the join.
func (c CacheStatus) Fresh() bool {
	return c.Missing == 0 && c.Extra == 0 && c.CacheRows == c.JoinRows
}

// CheckChildrenCache reports how far the cache has drifted from the join.
func (s *Store) CheckChildrenCache(ctx context.Context) (*CacheStatus, error) {
	var st CacheStatus
	queries := []struct {
		name  string
		query string
		dest  *int
	}{
		{"cache rows", "SELECT COUNT(*) FROM function_children_cache", &st.CacheRows},
		{"join rows", "SELECT COUNT(*) FROM (" + cacheJoinSQL + ")", &st.JoinRows},
		{"missing rows", "SELECT COUNT(*) FROM (" + cacheJoinSQL + " EXCEPT " + cacheRowsSQL + ")", &st.Missing},
		{"extra rows", "SELECT COUNT(*) FROM (" + cacheRowsSQL + " EXCEPT " + cacheJoinSQL + ")", &st.Extra},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("counting %s: %w", q.name, err)
		}
	}
	return &st, nil
}

// GetMetadata retrieves a value from the metadata table.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	return value, err
}

// Stats holds statistics about a profile database.
type Stats struct {
	FunctionCount     int       `json:"function_count"`
	RelationshipCount int       `json:"relationship_count"`
	RootCount         int       `json:"root_count"`
	CacheRowCount     int       `json:"cache_row_count"`
	SourceFile        string    `json:"source_file,omitempty"`
	TotalCPUTime      float64   `json:"total_cpu_time,omitempty"`
	IngestedAt        time.Time `json:"ingested_at"`
}

// GetStats returns statistics about the profile data.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	rows := []struct {
		name  string
		query string
		dest  *int
	}{
		{"functions", "SELECT COUNT(*) FROM functions", &stats.FunctionCount},
		{"call_relationships", "SELECT COUNT(*) FROM call_relationships", &stats.RelationshipCount},
		{"roots", "SELECT COUNT(*) FROM call_relationships WHERE parent_id IS NULL", &stats.RootCount},
		{"function_children_cache", "SELECT COUNT(*) FROM function_children_cache", &stats.CacheRowCount},
	}

	for _, r := range rows {
		if err := s.db.QueryRowContext(ctx, r.query).Scan(r.dest); err != nil {
			return nil, fmt.Errorf("counting %s: %w", r.name, err)
		}
	}

	// Metadata is written by the importer; databases built elsewhere may lack it.
	if src, err := s.GetMetadata("source_file"); err == nil {
		stats.SourceFile = src
	}
	if v, err := s.GetMetadata("total_cpu_time"); err == nil {
		stats.TotalCPUTime, _ = strconv.ParseFloat(v, 64)
	}
	if ts, err := s.GetMetadata("ingested_at"); err == nil {
		stats.IngestedAt, _ = time.Parse(time.RFC3339, ts)
	}

	return stats, nil
}

// BeginBatch starts a transaction for writing a whole profile.
// Nothing is visible to readers until Commit; call Rollback on error.
func (s *Store) BeginBatch(ctx context.Context) (*BatchTx, error) {
	if s.readOnly {
		return nil, fmt.Errorf("database %s is open read-only", filepath.Base(s.dbPath))
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &BatchTx{ctx: ctx, tx: tx}, nil
}

// BatchTx wraps a transaction for batch operations.
type BatchTx struct {
	ctx context.Context
	tx  *sql.Tx
}

// Commit commits the batch transaction.
func (b *BatchTx) Commit() error {
	return b.tx.Commit()
}

// Rollback rolls back the batch transaction.
func (b *BatchTx) Rollback() error {
	return b.tx.Rollback()
}

// Clear removes all data (for re-ingesting).
func (b *BatchTx) Clear() error {
	tables := []string{"function_children_cache", "call_relationships", "functions", "metadata"}
	for _, table := range tables {
		if _, err := b.tx.ExecContext(b.ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing table %s: %w", table, err)
		}
	}
	return nil
}

// RebuildChildrenCache refills the cache from the rows written so far in the batch.
func (b *BatchTx) RebuildChildrenCache() (int64, error) {
	return rebuildChildrenCache(b.ctx, b.tx)
}

// SetMetadata stores a key-value pair in the metadata table.
func (b *BatchTx) SetMetadata(key, value string) error {
	_, err := b.tx.ExecContext(b.ctx, `
		INSERT INTO metadata (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// InsertFunction inserts or replaces a function within the batch.
func (b *BatchTx) InsertFunction(f *Function) error {
	_, err := b.tx.ExecContext(b.ctx, `
		INSERT OR REPLACE INTO functions
			(id, function_stack, short_name, full_signature, total_time, self_time, percentage, indent_level, line_number)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, f.ID, f.FunctionStack, f.ShortName, f.FullSignature, f.TotalTime, f.SelfTime,
		f.Percentage, f.IndentLevel, f.LineNumber)
	return err
}

// InsertRelationship inserts a call relationship within the batch.
func (b *BatchTx) InsertRelationship(rel *Relationship) error {
	var parent any
	if rel.ParentID != nil {
		parent = string(*rel.ParentID)
	}
	_, err := b.tx.ExecContext(b.ctx, `
		INSERT INTO call_relationships (parent_id, child_id)
		VALUES (?, ?)
	`, parent, rel.ChildID)
	return err
}
