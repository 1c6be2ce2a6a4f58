package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/abramin/proftree/internal/config"
	"github.com/abramin/proftree/internal/store"
)

// Importer coordinates the CSV to SQLite pipeline.
type Importer struct {
	cfg     *config.Config
	csvPath string
	dbPath  string
	parser  *Parser
}

// NewImporter creates an importer for the given dump. An empty dbPath writes
// next to the CSV file with a .db extension.
func NewImporter(cfg *config.Config, csvPath, dbPath string) *Importer {
	if dbPath == "" {
		dbPath = DefaultDBPath(csvPath)
	}
	parser := NewParser()
	if cfg != nil {
		if cfg.Ingest.HeaderPrefix != "" {
			parser.HeaderPrefix = cfg.Ingest.HeaderPrefix
		}
		if cfg.Ingest.Delimiter != "" {
			parser.Delimiter = cfg.Ingest.Delimiter
		}
	}
	return &Importer{
		cfg:     cfg,
		csvPath: csvPath,
		dbPath:  dbPath,
		parser:  parser,
	}
}

// DefaultDBPath maps "profile.csv" to "profile.db".
func DefaultDBPath(csvPath string) string {
	ext := filepath.Ext(csvPath)
	return csvPath[:len(csvPath)-len(ext)] + ".db"
}

// Result holds the results of an import run.
type Result struct {
	FunctionCount     int
	RelationshipCount int
	CacheRowCount     int64
	CPUTime           float64
	Duration          time.Duration
	DBPath            string
}

// Run parses the dump, replaces the database contents and rebuilds the children cache.
func (im *Importer) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	f, err := os.Open(im.csvPath)
	if err != nil {
		return nil, fmt.Errorf("opening dump: %w", err)
	}
	defer f.Close()

	prof, err := im.parser.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(im.csvPath), err)
	}

	st, err := store.Create(im.dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	meta := map[string]string{
		"ingested_at":    time.Now().UTC().Format(time.RFC3339),
		"source_file":    filepath.Base(im.csvPath),
		"total_cpu_time": strconv.FormatFloat(prof.CPUTime, 'g', -1, 64),
	}
	cacheRows, err := writeProfile(ctx, st, prof, meta)
	if err != nil {
		return nil, err
	}

	return &Result{
		FunctionCount:     len(prof.Functions),
		RelationshipCount: len(prof.Relationships),
		CacheRowCount:     cacheRows,
		CPUTime:           prof.CPUTime,
		Duration:          time.Since(start),
		DBPath:            st.DBPath(),
	}, nil
}

// writeProfile replaces the database contents in a single transaction, so a
// failed import leaves the previous profile and its cache untouched.
func writeProfile(ctx context.Context, st *store.Store, prof *Profile, meta map[string]string) (int64, error) {
	batch, err := st.BeginBatch(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning batch: %w", err)
	}
	defer batch.Rollback()

	if err := batch.Clear(); err != nil {
		return 0, fmt.Errorf("clearing store: %w", err)
	}
	for i := range prof.Functions {
		if err := batch.InsertFunction(&prof.Functions[i]); err != nil {
			return 0, fmt.Errorf("inserting function %s: %w", prof.Functions[i].ID, err)
		}
	}
	for i := range prof.Relationships {
		if err := batch.InsertRelationship(&prof.Relationships[i]); err != nil {
			return 0, fmt.Errorf("inserting relationship: %w", err)
		}
	}

	cacheRows, err := batch.RebuildChildrenCache()
	if err != nil {
		return 0, fmt.Errorf("building children cache: %w", err)
	}
	for k, v := range meta {
		if err := batch.SetMetadata(k, v); err != nil {
			return 0, fmt.Errorf("storing metadata: %w", err)
		}
	}

	if err := batch.Commit(); err != nil {
		return 0, fmt.Errorf("committing batch: %w", err)
	}
	return cacheRows, nil
}
