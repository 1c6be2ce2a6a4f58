package render

import (
	"strings"
	"testing"

	"github.com/abramin/proftree/internal/store"
)

func TestFormatTime(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{2.5, "2.500s"},
		{1.0, "1.000s"},
		{0.999999, "999.999ms"},
		{0.001, "1.000ms"},
		{0.0005, "500.000µs"},
		{0.000001, "1.000µs"},
		{0.0000009999, "999.900ns"},
		{0, "0.000ns"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatTime(tt.in); got != tt.want {
				t.Errorf("FormatTime(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRequestURLs(t *testing.T) {
	req := Request{DB: "step3.db", Sort: store.SortSelf}

	if got := req.ListURL(store.SortName); got != "/?db=step3.db&sort=name" {
		t.Errorf("unexpected list url %q", got)
	}
	if got := req.FunctionURL("abc"); got != "/?db=step3.db&id=abc&sort=self&view=function" {
		t.Errorf("unexpected function url %q", got)
	}

	noDB := Request{Sort: store.SortTotal}
	if got := noDB.ListURL(store.SortTotal); got != "/?sort=total" {
		t.Errorf("unexpected list url without db %q", got)
	}
}

var testFunctions = []store.Function{
	{ID: "a1", ShortName: "main", FullSignature: "main(int, char**)", TotalTime: 9, SelfTime: 1, Percentage: 90, IndentLevel: 1},
	{ID: "b2", ShortName: "<init>", FullSignature: "std::vector<int>::push_back(int&&)", TotalTime: 0.002, SelfTime: 0.002, Percentage: 0.02, IndentLevel: 2},
}

func TestFunctionList(t *testing.T) {
	req := Request{DB: "profile.db", Sort: store.SortSelf}
	out, err := FunctionList(req, testFunctions)
	if err != nil {
		t.Fatalf("FunctionList: %v", err)
	}
	page := string(out)

	if n := strings.Count(page, `class="function-link"`); n != len(testFunctions) {
		t.Errorf("expected %d rows, got %d", len(testFunctions), n)
	}
	if !strings.Contains(page, "Total functions: 2") {
		t.Error("expected function count in info line")
	}
	if !strings.Contains(page, "Sorted by: Self Time") {
		t.Error("expected active sort title")
	}
	if !strings.Contains(page, `class="sort-button active">Self Time</a>`) {
		t.Error("expected Self Time marked active")
	}
	if strings.Contains(page, `class="sort-button active">Total Time</a>`) {
		t.Error("expected Total Time not active")
	}
	if !strings.Contains(page, `href="/?db=profile.db&amp;sort=name"`) {
		t.Error("expected name sort link carrying db")
	}
	if !strings.Contains(page, `href="/?db=profile.db&amp;id=a1&amp;sort=self&amp;view=function"`) {
		t.Error("expected detail link carrying sort and db")
	}
	if strings.Contains(page, "<init>") || !strings.Contains(page, "&lt;init&gt;") {
		t.Error("expected function name to be escaped")
	}
	if !strings.Contains(page, "std::vector&lt;int&gt;::push_back(int&amp;&amp;)") {
		t.Error("expected signature to be escaped")
	}
	if !strings.Contains(page, "2.000ms") || !strings.Contains(page, "90.00%") {
		t.Error("expected formatted times and percentages")
	}
}

func TestFunctionListLargeCount(t *testing.T) {
	fns := make([]store.Function, 1500)
	for i := range fns {
		fns[i] = store.Function{ID: store.FunctionID("f"), ShortName: "f"}
	}
	out, err := FunctionList(Request{Sort: store.SortTotal}, fns)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "Total functions: 1,500") {
		t.Error("expected thousands separator in count")
	}
}

func TestFunctionDetail(t *testing.T) {
	req := Request{DB: "profile.db", Sort: store.SortName, View: ViewFunction, ID: "a1"}
	children := []store.Child{
		{ParentID: "a1", ID: "c1", ShortName: "work", FullSignature: "work()", TotalTime: 6, SelfTime: 6, Percentage: 60, IndentLevel: 2},
		{ParentID: "a1", ID: "c2", ShortName: "io", FullSignature: "io()", TotalTime: 2, SelfTime: 2, Percentage: 20, IndentLevel: 2},
	}

	out, err := FunctionDetail(req, &testFunctions[0], children)
	if err != nil {
		t.Fatalf("FunctionDetail: %v", err)
	}
	page := string(out)

	if !strings.Contains(page, "<title>Function Details: main</title>") {
		t.Error("expected detail title")
	}
	if !strings.Contains(page, "Immediate Children (2)") {
		t.Error("expected child count heading")
	}
	if strings.Count(page, `class="function-link"`) != 2 {
		t.Error("expected a row per child")
	}
	if !strings.Contains(page, `href="/?db=profile.db&amp;sort=name" class="back-link"`) {
		t.Error("expected back link preserving sort")
	}
	if !strings.Contains(page, "9.000s (90.00% of total)") {
		t.Error("expected total time with percentage")
	}
	if strings.Contains(page, "leaf function") {
		t.Error("did not expect leaf notice")
	}
}

func TestFunctionDetailLeaf(t *testing.T) {
	req := Request{DB: "profile.db", Sort: store.SortTotal, View: ViewFunction, ID: "b2"}

	out, err := FunctionDetail(req, &testFunctions[1], nil)
	if err != nil {
		t.Fatalf("FunctionDetail: %v", err)
	}
	page := string(out)

	if !strings.Contains(page, "This function has no children (leaf function).") {
		t.Error("expected leaf notice")
	}
	if strings.Contains(page, "<table>") {
		t.Error("expected no child table for leaf")
	}
	if !strings.Contains(page, "<title>Function Details: &lt;init&gt;</title>") {
		t.Error("expected escaped title")
	}
}

func TestFunctionNotFound(t *testing.T) {
	req := Request{DB: "profile.db", Sort: store.SortSelf, ID: `<script>"x"`}
	out, err := FunctionNotFound(req)
	if err != nil {
		t.Fatalf("FunctionNotFound: %v", err)
	}
	page := string(out)

	if !strings.Contains(page, "<h1>Function Not Found</h1>") {
		t.Error("expected not-found heading")
	}
	if strings.Contains(page, "<script>") {
		t.Error("expected id to be escaped")
	}
	if !strings.Contains(page, `href="/?db=profile.db&amp;sort=self"`) {
		t.Error("expected back link preserving sort")
	}
}

func TestDatabaseNotFound(t *testing.T) {
	out, err := DatabaseNotFound(Request{DB: "missing.db", Sort: store.SortTotal})
	if err != nil {
		t.Fatalf("DatabaseNotFound: %v", err)
	}
	page := string(out)

	if !strings.Contains(page, "<h1>Database Not Found</h1>") {
		t.Error("expected database not-found heading")
	}
	if !strings.Contains(page, "missing.db") {
		t.Error("expected database name in message")
	}
	if strings.Contains(page, "db=missing.db") {
		t.Error("back link should drop the missing database")
	}
}

func TestError(t *testing.T) {
	out, err := Error("boom <b>bold</b>\ngoroutine 1 [running]:")
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	page := string(out)

	if !strings.Contains(page, "<h1>Error</h1>") {
		t.Error("expected error heading")
	}
	if !strings.Contains(page, "<pre>boom &lt;b&gt;bold&lt;/b&gt;\ngoroutine 1 [running]:</pre>") {
		t.Error("expected escaped diagnostic detail in pre block")
	}
}
