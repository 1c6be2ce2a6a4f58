// Package render turns query results into HTML pages.
//
// Every page is a pure function of the request and the data passed in; nothing
// here touches the database or the network.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"

	"github.com/dustin/go-humanize"

	"github.com/abramin/proftree/internal/store"
)

// ViewFunction selects the detail page.
const ViewFunction = "function"

// Request is the immutable per-request context pages are rendered against.
type Request struct {
	DB   string // Resolved database file name, carried on every link
	View string
	ID   store.FunctionID
	Sort store.SortKey
}

// ListURL returns the list page link for the given sort key.
func (r Request) ListURL(sort store.SortKey) string {
	v := url.Values{}
	if r.DB != "" {
		v.Set("db", r.DB)
	}
	v.Set("sort", string(sort))
	return "/?" + v.Encode()
}

// FunctionURL returns the detail page link for id, preserving sort and database.
func (r Request) FunctionURL(id store.FunctionID) string {
	v := url.Values{}
	if r.DB != "" {
		v.Set("db", r.DB)
	}
	v.Set("view", ViewFunction)
	v.Set("id", string(id))
	v.Set("sort", string(r.Sort))
	return "/?" + v.Encode()
}

// FormatTime renders a duration in seconds with a unit chosen by magnitude.
func FormatTime(seconds float64) string {
	switch {
	case seconds >= 1.0:
		return fmt.Sprintf("%.3fs", seconds)
	case seconds >= 0.001:
		return fmt.Sprintf("%.3fms", seconds*1000)
	case seconds >= 0.000001:
		return fmt.Sprintf("%.3fµs", seconds*1000000)
	default:
		return fmt.Sprintf("%.3fns", seconds*1000000000)
	}
}

func formatPercent(p float64) string {
	return fmt.Sprintf("%.2f%%", p)
}

var pages = template.Must(template.New("pages").Funcs(template.FuncMap{
	"formatTime": FormatTime,
	"percent":    formatPercent,
}).Parse(tmplBase + tmplList + tmplDetail + tmplNotFound + tmplError))

type row struct {
	URL        string
	Name       string
	Total      float64
	Self       float64
	Percentage float64
	Indent     int
	Signature  string
}

type sortLink struct {
	URL    string
	Label  string
	Active bool
}

type listPage struct {
	DBName    string
	Count     string
	SortTitle string
	SortLinks []sortLink
	Rows      []row
}

type detailPage struct {
	Function *store.Function
	BackURL  string
	Rows     []row
}

type notFoundPage struct {
	Title   string
	Message string
	BackURL string
}

type errorPage struct {
	Detail string
}

// sortLinks returns the three sort controls with the active one marked.
func sortLinks(req Request) []sortLink {
	keys := []store.SortKey{store.SortTotal, store.SortSelf, store.SortName}
	links := make([]sortLink, 0, len(keys))
	for _, k := range keys {
		links = append(links, sortLink{
			URL:    req.ListURL(k),
			Label:  k.Title(),
			Active: k == req.Sort,
		})
	}
	return links
}

func execute(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("rendering %s page: %w", name, err)
	}
	return buf.Bytes(), nil
}

// FunctionList renders the flat function table.
func FunctionList(req Request, fns []store.Function) ([]byte, error) {
	rows := make([]row, 0, len(fns))
	for _, f := range fns {
		rows = append(rows, row{
			URL:        req.FunctionURL(f.ID),
			Name:       f.ShortName,
			Total:      f.TotalTime,
			Self:       f.SelfTime,
			Percentage: f.Percentage,
			Indent:     f.IndentLevel,
			Signature:  f.FullSignature,
		})
	}
	return execute("list", listPage{
		DBName:    req.DB,
		Count:     humanize.Comma(int64(len(fns))),
		SortTitle: req.Sort.Title(),
		SortLinks: sortLinks(req),
		Rows:      rows,
	})
}

// FunctionDetail renders one function and its immediate children.
// With no children the page carries a leaf notice instead of a table.
func FunctionDetail(req Request, fn *store.Function, children []store.Child) ([]byte, error) {
	rows := make([]row, 0, len(children))
	for _, c := range children {
		rows = append(rows, row{
			URL:        req.FunctionURL(c.ID),
			Name:       c.ShortName,
			Total:      c.TotalTime,
			Self:       c.SelfTime,
			Percentage: c.Percentage,
			Indent:     c.IndentLevel,
			Signature:  c.FullSignature,
		})
	}
	return execute("detail", detailPage{
		Function: fn,
		BackURL:  req.ListURL(req.Sort),
		Rows:     rows,
	})
}

// FunctionNotFound renders the page for an id with no matching function.
func FunctionNotFound(req Request) ([]byte, error) {
	return execute("notfound", notFoundPage{
		Title:   "Function Not Found",
		Message: fmt.Sprintf("Function ID \"%s\" not found in database.", req.ID),
		BackURL: req.ListURL(req.Sort),
	})
}

// DatabaseNotFound renders the page for a database file that does not exist.
func DatabaseNotFound(req Request) ([]byte, error) {
	return execute("notfound", notFoundPage{
		Title:   "Database Not Found",
		Message: fmt.Sprintf("Database %q not found.", req.DB),
		BackURL: (Request{Sort: req.Sort}).ListURL(req.Sort),
	})
}

// Error renders the generic failure page with diagnostic detail.
func Error(detail string) ([]byte, error) {
	return execute("error", errorPage{Detail: detail})
}
