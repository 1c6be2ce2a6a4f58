package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/abramin/proftree/internal/config"
	"github.com/abramin/proftree/internal/render"
	"github.com/abramin/proftree/internal/store"
)

// Server is the proftree HTTP server.
type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	metrics    *metrics
	handler    http.Handler
	port       int
}

// New creates a new server instance. No database is opened until a request arrives.
func New(cfg *config.Config) (*Server, error) {
	info, err := os.Stat(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data directory %s is not a directory", cfg.DataDir)
	}

	s := &Server{
		cfg:     cfg,
		metrics: newMetrics(),
		port:    cfg.Server.Port,
	}

	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/api/health", s.corsMiddleware(s.handleHealth))
	mux.HandleFunc("/api/stats", s.corsMiddleware(s.handleStats))
	mux.HandleFunc("/api/tree", s.corsMiddleware(s.handleTree))
	mux.HandleFunc("/api/hotpath", s.corsMiddleware(s.handleHotPath))

	if cfg.MetricsEnabled() {
		mux.Handle(cfg.Metrics.Path, s.metrics.handler())
	}

	// Viewer pages
	mux.HandleFunc("/", s.handleIndex)

	var h http.Handler = s.recoverMiddleware(mux)
	if cfg.GzipEnabled() {
		h = gzhttp.GzipHandler(h)
	}
	s.handler = s.logMiddleware(h)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s, nil
}

// Start starts the server and blocks until shutdown.
func (s *Server) Start() error {
	// Setup graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on http://localhost:%d (data dir %s)", s.port, s.cfg.DataDir)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// corsMiddleware adds CORS headers for local development.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding JSON: %v", err)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeHTML writes a complete HTML page.
func writeHTML(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(body)
}

// handleIndex serves the list and detail pages.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, dbPath, err := s.parseRequest(r)
	page, status, body, err := s.renderPage(r.Context(), req, dbPath, err)
	if err != nil {
		s.writeFailure(w, err)
		s.metrics.observe(pageError, start)
		return
	}
	writeHTML(w, status, body)
	s.metrics.observe(page, start)
}

// renderPage runs the queries for one request and renders the resulting page.
// A non-nil error means the request failed unexpectedly.
func (s *Server) renderPage(ctx context.Context, req render.Request, dbPath string, resolveErr error) (string, int, []byte, error) {
	if resolveErr != nil {
		return s.databaseNotFound(req, resolveErr)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return s.databaseNotFound(req, err)
	}
	defer st.Close()

	if wantsDetail(req) {
		fn, err := st.GetFunction(ctx, req.ID)
		if errors.Is(err, store.ErrFunctionNotFound) {
			body, err := render.FunctionNotFound(req)
			return pageFunctionNotFound, http.StatusNotFound, body, err
		}
		if err != nil {
			return "", 0, nil, err
		}
		children, err := st.GetChildren(ctx, req.ID)
		if err != nil {
			return "", 0, nil, err
		}
		body, err := render.FunctionDetail(req, fn, children)
		return pageDetail, http.StatusOK, body, err
	}

	fns, err := st.ListFunctions(ctx, req.Sort)
	if err != nil {
		return "", 0, nil, err
	}
	body, err := render.FunctionList(req, fns)
	return pageList, http.StatusOK, body, err
}

func (s *Server) databaseNotFound(req render.Request, err error) (string, int, []byte, error) {
	if !errors.Is(err, store.ErrDatabaseNotFound) {
		return "", 0, nil, err
	}
	body, rerr := render.DatabaseNotFound(req)
	return pageDatabaseNotFound, http.StatusNotFound, body, rerr
}

// writeFailure renders the generic error page, falling back to plain text.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	log.Printf("Request failed: %v", err)
	body, rerr := render.Error(err.Error())
	if rerr != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeHTML(w, http.StatusInternalServerError, body)
}

// openForAPI resolves and opens the database named by the db parameter,
// writing a JSON error when it cannot.
func (s *Server) openForAPI(w http.ResponseWriter, r *http.Request) (*store.Store, bool) {
	_, dbPath, err := ResolveDB(s.cfg.DataDir, s.cfg.DefaultDB, r.URL.Query().Get("db"))
	if err == nil {
		var st *store.Store
		st, err = store.Open(dbPath)
		if err == nil {
			return st, true
		}
	}
	if errors.Is(err, store.ErrDatabaseNotFound) {
		writeError(w, http.StatusNotFound, "database not found")
	} else {
		log.Printf("Opening database failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to open database")
	}
	return nil, false
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStats returns database statistics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	st, ok := s.openForAPI(w, r)
	if !ok {
		return
	}
	defer st.Close()

	stats, err := st.GetStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// depthParam reads the depth query parameter, clamped to the configured maximum.
func (s *Server) depthParam(r *http.Request) int {
	depth := s.cfg.MaxTreeDepth
	if v := r.URL.Query().Get("depth"); v != "" {
		if d, err := strconv.Atoi(v); err == nil && d > 0 {
			depth = d
		}
	}
	if s.cfg.MaxTreeDepth > 0 && depth > s.cfg.MaxTreeDepth {
		depth = s.cfg.MaxTreeDepth
	}
	return depth
}

// handleTree handles GET /api/tree?db=&id=&depth=&min_pct=
func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := store.FunctionID(r.URL.Query().Get("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "id parameter required")
		return
	}

	filter := DefaultTreeFilter()
	filter.MaxDepth = s.cfg.MaxTreeDepth
	if v := r.URL.Query().Get("min_pct"); v != "" {
		if p, err := strconv.ParseFloat(v, 64); err == nil && p >= 0 {
			filter.MinPercent = p
		}
	}

	st, ok := s.openForAPI(w, r)
	if !ok {
		return
	}
	defer st.Close()

	resp, err := NewTreeBuilder(st, filter).BuildFromRoot(r.Context(), id, s.depthParam(r))
	if errors.Is(err, store.ErrFunctionNotFound) {
		writeError(w, http.StatusNotFound, "function not found")
		return
	}
	if err != nil {
		log.Printf("Building tree failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to build tree")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleHotPath handles GET /api/hotpath?db=&id=&depth=
func (s *Server) handleHotPath(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := store.FunctionID(r.URL.Query().Get("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "id parameter required")
		return
	}

	st, ok := s.openForAPI(w, r)
	if !ok {
		return
	}
	defer st.Close()

	resp, err := NewHotPathBuilder(st).Build(r.Context(), id, s.depthParam(r))
	if errors.Is(err, store.ErrFunctionNotFound) {
		writeError(w, http.StatusNotFound, "function not found")
		return
	}
	if err != nil {
		log.Printf("Building hot path failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to build hot path")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
