// Package server exposes read-only HTTP views over the latest report.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/account-strategy/internal/model"
	"github.com/sells-group/account-strategy/internal/playbook"
)

// RefreshFunc reloads the source and produces a new report.
type RefreshFunc func(ctx context.Context) (*model.Report, error)

// Server serves the most recent report. The report pointer is swapped
// atomically on refresh so readers never see a partial report.
type Server struct {
	catalog   *playbook.Catalog
	refreshFn RefreshFunc
	origins   []string

	current   atomic.Pointer[model.Report]
	refreshMu sync.Mutex
}

// New creates a server. initial may be nil until the first refresh.
func New(catalog *playbook.Catalog, refresh RefreshFunc, allowedOrigins []string, initial *model.Report) *Server {
	s := &Server{catalog: catalog, refreshFn: refresh, origins: allowedOrigins}
	if initial != nil {
		s.current.Store(initial)
	}
	return s
}

// Report returns the current report, or nil.
func (s *Server) Report() *model.Report {
	return s.current.Load()
}

// Refresh rebuilds the report and swaps it in. Concurrent refreshes are
// rejected rather than queued.
func (s *Server) Refresh(ctx context.Context) (*model.Report, error) {
	if !s.refreshMu.TryLock() {
		return nil, errRefreshInProgress
	}
	defer s.refreshMu.Unlock()

	start := time.Now()
	r, err := s.refreshFn(ctx)
	if err != nil {
		return nil, err
	}
	s.current.Store(r)
	zap.L().Info("server: report refreshed",
		zap.Int("accounts", len(r.Accounts)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return r, nil
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Post("/refresh", s.refresh)

	r.Group(func(r chi.Router) {
		r.Use(s.requireReport)
		r.Get("/report", s.getReport)
		r.Get("/summary", s.getSummary)
		r.Get("/accounts/{id}", s.getAccount)
		r.Get("/calls", s.getCalls)
		r.Get("/coverage", s.getCoverage)
		r.Route("/phases/{phase}", func(r chi.Router) {
			r.Use(requirePhase)
			r.Get("/", s.getPhase)
			r.Get("/export.csv", s.exportPhase)
		})
	})

	r.With(requirePhase).Get("/playbooks/{phase}", s.getPlaybook)

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type ctxKey int

const phaseKey ctxKey = iota

// requirePhase resolves {phase} ("1A", "1a", "2") or responds 404.
func requirePhase(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.ToUpper(chi.URLParam(r, "phase"))
		for _, p := range model.Phases {
			if string(p) == raw {
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), phaseKey, p)))
				return
			}
		}
		writeError(w, http.StatusNotFound, "unknown phase "+chi.URLParam(r, "phase"))
	})
}

func phaseFrom(r *http.Request) model.Phase {
	p, _ := r.Context().Value(phaseKey).(model.Phase)
	return p
}

func (s *Server) requireReport(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.current.Load() == nil {
			writeError(w, http.StatusServiceUnavailable, "no report loaded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
