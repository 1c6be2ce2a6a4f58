package ingest

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abramin/proftree/internal/config"
	"github.com/abramin/proftree/internal/store"
)

const sampleDump = `Some profiler preamble
Column info;ignored
Function Stack;CPU Time:Total;CPU Time:Self;Full Name
Total;10.0;0;[Root]
 main;9.0;1.0;main(int, char**)
  work;6.0;6.0;work()

  io;2.0;2.0;io<T>(std::vector<T>&)
 idle;1.0;1.0;idle()
broken line
`

func TestParse(t *testing.T) {
	prof, err := NewParser().Parse(strings.NewReader(sampleDump))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if prof.CPUTime != 10.0 {
		t.Errorf("expected cpu time 10, got %v", prof.CPUTime)
	}
	if len(prof.Functions) != 5 {
		t.Fatalf("expected 5 functions, got %d", len(prof.Functions))
	}
	if len(prof.Relationships) != 5 {
		t.Fatalf("expected 5 relationships, got %d", len(prof.Relationships))
	}

	tests := []struct {
		name   string
		indent int
		line   int
		pct    float64
	}{
		{"Total", 0, 4, 100},
		{"main", 1, 5, 90},
		{"work", 2, 6, 60},
		{"io", 2, 8, 20},
		{"idle", 1, 9, 10},
	}
	for i, tt := range tests {
		fn := prof.Functions[i]
		if fn.ShortName != tt.name {
			t.Errorf("row %d: expected name %q, got %q", i, tt.name, fn.ShortName)
		}
		if fn.IndentLevel != tt.indent {
			t.Errorf("%s: expected indent %d, got %d", tt.name, tt.indent, fn.IndentLevel)
		}
		if fn.LineNumber != tt.line {
			t.Errorf("%s: expected line %d, got %d", tt.name, tt.line, fn.LineNumber)
		}
		if math.Abs(fn.Percentage-tt.pct) > 1e-9 {
			t.Errorf("%s: expected percentage %v, got %v", tt.name, tt.pct, fn.Percentage)
		}
		if fn.ID != FunctionID(fn.FullSignature, fn.LineNumber) {
			t.Errorf("%s: id does not match signature hash", tt.name)
		}
	}

	if prof.Relationships[0].ParentID != nil {
		t.Error("expected first row to be a root")
	}
	parentOf := func(i int) store.FunctionID {
		return *prof.Relationships[i].ParentID
	}
	if parentOf(1) != prof.Functions[0].ID {
		t.Error("expected main under Total")
	}
	if parentOf(2) != prof.Functions[1].ID || parentOf(3) != prof.Functions[1].ID {
		t.Error("expected work and io under main")
	}
	if parentOf(4) != prof.Functions[0].ID {
		t.Error("expected idle under Total")
	}
}

func TestParseMissingHeader(t *testing.T) {
	_, err := NewParser().Parse(strings.NewReader("a;b;c;d\n"))
	if err == nil {
		t.Fatal("expected error for dump without header")
	}
}

func TestParseBadTotals(t *testing.T) {
	dump := "Function Stack;Total;Self;Name\nTotal;n/a;0;[Root]\n child;0.5;x;child()\n"
	prof, err := NewParser().Parse(strings.NewReader(dump))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if prof.CPUTime != 1.0 {
		t.Errorf("expected fallback cpu time 1.0, got %v", prof.CPUTime)
	}
	if prof.Functions[0].TotalTime != 0 {
		t.Errorf("expected unparsable total to be 0, got %v", prof.Functions[0].TotalTime)
	}
	if prof.Functions[1].SelfTime != 0 {
		t.Errorf("expected unparsable self to be 0, got %v", prof.Functions[1].SelfTime)
	}
	if prof.Functions[1].Percentage != 50 {
		t.Errorf("expected 50%%, got %v", prof.Functions[1].Percentage)
	}
}

func TestFunctionIDStable(t *testing.T) {
	a := FunctionID("main()", 5)
	if len(a) != 16 {
		t.Fatalf("expected 16 hex chars, got %q", a)
	}
	if a != FunctionID("main()", 5) {
		t.Error("expected identical ids for identical input")
	}
	if a == FunctionID("main()", 6) {
		t.Error("expected line number to change the id")
	}
}

func TestDefaultDBPath(t *testing.T) {
	tests := []struct{ in, want string }{
		{"profile.csv", "profile.db"},
		{"/tmp/step3.top-down.csv", "/tmp/step3.top-down.db"},
		{"noext", "noext.db"},
	}
	for _, tt := range tests {
		if got := DefaultDBPath(tt.in); got != tt.want {
			t.Errorf("DefaultDBPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestImporterRun(t *testing.T) {
	tmpDir := t.TempDir()
	csvPath := filepath.Join(tmpDir, "profile.csv")
	if err := os.WriteFile(csvPath, []byte(sampleDump), 0644); err != nil {
		t.Fatal(err)
	}

	im := NewImporter(config.Default(), csvPath, "")
	res, err := im.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.FunctionCount != 5 || res.RelationshipCount != 5 {
		t.Errorf("unexpected counts: %+v", res)
	}
	if res.CacheRowCount != 4 {
		t.Errorf("expected 4 cache rows, got %d", res.CacheRowCount)
	}
	if res.DBPath != filepath.Join(tmpDir, "profile.db") {
		t.Errorf("unexpected db path %s", res.DBPath)
	}

	// Re-running replaces rather than duplicates
	if _, err := im.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	st, err := store.Open(res.DBPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	stats, err := st.GetStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FunctionCount != 5 || stats.RootCount != 1 {
		t.Errorf("unexpected stats after re-import: %+v", stats)
	}
	if stats.SourceFile != "profile.csv" {
		t.Errorf("expected source file metadata, got %q", stats.SourceFile)
	}
	if stats.TotalCPUTime != 10 {
		t.Errorf("expected total cpu time 10, got %v", stats.TotalCPUTime)
	}

	mainFn, err := st.FindByName(ctx, "main")
	if err != nil {
		t.Fatal(err)
	}
	children, err := st.GetChildren(ctx, mainFn.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 2 || children[0].ShortName != "work" {
		t.Errorf("unexpected children of main: %+v", children)
	}

	status, err := st.CheckChildrenCache(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !status.Fresh() {
		t.Errorf("expected fresh cache after import, got %+v", status)
	}
}

func TestImporterFailedRunKeepsPreviousProfile(t *testing.T) {
	tmpDir := t.TempDir()
	csvPath := filepath.Join(tmpDir, "profile.csv")
	if err := os.WriteFile(csvPath, []byte(sampleDump), 0644); err != nil {
		t.Fatal(err)
	}

	im := NewImporter(config.Default(), csvPath, "")
	res, err := im.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// A smaller dump whose import is cancelled must not replace the first one.
	smaller := "Function Stack;CPU Time:Total;CPU Time:Self;Full Name\nTotal;3.0;3.0;[Root]\n"
	if err := os.WriteFile(csvPath, []byte(smaller), 0644); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := im.Run(ctx); err == nil {
		t.Fatal("expected cancelled import to fail")
	}

	st, err := store.Open(res.DBPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	stats, err := st.GetStats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.FunctionCount != 5 || stats.CacheRowCount != 4 {
		t.Errorf("expected previous profile to survive, got %+v", stats)
	}
	if stats.TotalCPUTime != 10 {
		t.Errorf("expected previous metadata to survive, got cpu time %v", stats.TotalCPUTime)
	}

	status, err := st.CheckChildrenCache(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !status.Fresh() {
		t.Errorf("expected fresh cache after failed import, got %+v", status)
	}
}

func TestImporterCustomDelimiter(t *testing.T) {
	tmpDir := t.TempDir()
	csvPath := filepath.Join(tmpDir, "tabs.tsv")
	dump := "Stack\tTotal\tSelf\tName\nTotal\t2\t0\t[Root]\n f\t2\t2\tf()\n"
	if err := os.WriteFile(csvPath, []byte(dump), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Ingest.HeaderPrefix = "Stack\t"
	cfg.Ingest.Delimiter = "\t"

	res, err := NewImporter(cfg, csvPath, filepath.Join(tmpDir, "out", "tabs.db")).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.FunctionCount != 2 || res.CacheRowCount != 1 {
		t.Errorf("unexpected result: %+v", res)
	}
}
