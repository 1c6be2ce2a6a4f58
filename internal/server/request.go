package server

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/abramin/proftree/internal/render"
	"github.com/abramin/proftree/internal/store"
)

// ResolveDB maps a db request parameter onto a file inside dataDir.
// Only the final path element of param is used, with backslashes treated as
// separators, so the result never leaves dataDir. An empty param selects defaultDB.
func ResolveDB(dataDir, defaultDB, param string) (name, path string, err error) {
	name = param
	if strings.TrimSpace(name) == "" {
		name = defaultDB
	}
	name = strings.ReplaceAll(name, `\`, "/")
	name = strings.TrimRight(name, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(name)

	switch {
	case name == "", name == ".", name == "..", strings.ContainsRune(name, 0):
		return name, "", fmt.Errorf("invalid database name %q: %w", param, store.ErrDatabaseNotFound)
	}
	return name, filepath.Join(dataDir, name), nil
}

// parseRequest builds the immutable request context from query parameters.
// The db field holds the resolved file name so links never carry path segments.
func (s *Server) parseRequest(r *http.Request) (render.Request, string, error) {
	q := r.URL.Query()
	req := render.Request{
		View: q.Get("view"),
		ID:   store.FunctionID(q.Get("id")),
		Sort: store.ParseSortKey(q.Get("sort")),
	}

	name, path, err := ResolveDB(s.cfg.DataDir, s.cfg.DefaultDB, q.Get("db"))
	req.DB = name
	return req, path, err
}

// wantsDetail reports whether the request selects the function detail page.
func wantsDetail(req render.Request) bool {
	return req.View == render.ViewFunction && req.ID != ""
}
