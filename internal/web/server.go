// Package web serves the browser front end: a setup form that loads a
// dataset and builds the question, and a review page that walks the
// workbench one record at a time.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"tally/internal/config"
	"tally/internal/display"
	"tally/internal/format"
	"tally/internal/logging"
	"tally/internal/schema"
	"tally/internal/store"
	"tally/internal/upload"
	"tally/internal/workbench"
)

//go:embed templates/*.html
var templateFS embed.FS

// maxUpload bounds a dataset upload.
const maxUpload = 64 << 20

// Config configures a Server.
type Config struct {
	// Settings supplies form defaults, the output path and the upload
	// destination. Nil means config.Default().
	Settings *config.Config
	Store    store.Store
	Uploader upload.Uploader
	Logger   *slog.Logger
	Clock    func() time.Time
}

// Server holds at most one workbench at a time.
type Server struct {
	cfg      Config
	settings *config.Config
	log      *slog.Logger
	pages    map[string]*template.Template

	mu    sync.Mutex
	wb    *workbench.Workbench
	flash string
}

// NewServer parses the embedded templates.
func NewServer(cfg Config) (*Server, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New("web")
	}
	if cfg.Store == nil {
		cfg.Store = store.NewMemStore()
	}
	s := &Server{cfg: cfg, settings: settings, log: log, pages: make(map[string]*template.Template)}
	for _, page := range []string{"setup.html", "review.html"} {
		t, err := template.New(page).Funcs(funcs).ParseFS(templateFS, "templates/base.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		s.pages[page] = t
	}
	return s, nil
}

var funcs = template.FuncMap{
	"typeName":  func(code string) string { return display.QuestionType(code) },
	"prompt":    func(code string) string { return display.Prompt(code) },
	"labelList": display.LabelList,
	"progress":  format.Progress,
	"truncate":  format.Truncate,
	"flat":      schema.FlatString,
	"add1":      func(i int) int { return i + 1 },
}

// Attach installs wb as the current session, replacing any other.
func (s *Server) Attach(wb *workbench.Workbench) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wb = wb
	s.flash = ""
}

// Workbench returns the current session, or nil before setup.
func (s *Server) Workbench() *workbench.Workbench {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wb
}

func (s *Server) setFlash(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flash = msg
}

func (s *Server) takeFlash() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.flash
	s.flash = ""
	return msg
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /setup", s.handleSetup)
	mux.HandleFunc("GET /review", s.handleReview)
	mux.HandleFunc("POST /review/commit", s.withSession(s.handleCommit))
	mux.HandleFunc("POST /review/select", s.withSession(s.handleSelect))
	mux.HandleFunc("POST /review/next", s.withSession(s.handleNext))
	mux.HandleFunc("POST /review/previous", s.withSession(s.handlePrevious))
	mux.HandleFunc("POST /review/clear", s.withSession(s.handleClear))
	mux.HandleFunc("POST /save", s.withSession(s.handleSave))
	mux.HandleFunc("GET /export", s.withSession(s.handleExport))
	mux.HandleFunc("POST /upload", s.withSession(s.handleUpload))
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("POST /reset", s.handleReset)
	return s.logRequests(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("elapsed", time.Since(start)))
	})
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, wb *workbench.Workbench)

// withSession redirects to setup when no session is open.
func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wb := s.Workbench()
		if wb == nil {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		h(w, r, wb)
	}
}

func (s *Server) render(w http.ResponseWriter, page string, status int, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.pages[page].ExecuteTemplate(w, "base", data); err != nil {
		s.log.Error("render failed", slog.String("page", page), slog.Any("error", err))
	}
}

// StartOnAvailablePort listens on addr (":0" picks a free port) and serves
// until ctx is done. It returns the bound address.
func (s *Server) StartOnAvailablePort(ctx context.Context, addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("server stopped", slog.Any("error", err))
		}
	}()
	return ln.Addr().String(), nil
}
