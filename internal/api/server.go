// Package api provides the HTTP server for the study tracker.
// It keeps the /api paths the browser page already calls and serves the
// artifact directory for everything else.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/tutu-network/studytrack/internal/domain"
)

// Tracker is the subset of the completion engine the HTTP layer calls.
type Tracker interface {
	Complete(unit string) (domain.CompleteResult, error)
	Undo(unit string) (domain.UndoResult, error)
	AddPrize(p domain.Prize) error
	RemovePrize() error
	Reset() error

	State() (domain.Ledger, error)
	ListArtifacts() (domain.Artifacts, error)
	Reconcile() (domain.Reconciliation, error)
	LastAction() *domain.Action
}

// Server is the tracker HTTP API server.
type Server struct {
	tracker        Tracker
	log            logrus.FieldLogger
	staticDir      string
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(t Tracker, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{tracker: t, log: log.WithField("component", "api")}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetStaticDir serves dir for every path outside /api.
func (s *Server) SetStaticDir(dir string) { s.staticDir = dir }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/files", s.handleFiles)
		r.Get("/reconcile", s.handleReconcile)
		r.Get("/last_action", s.handleLastAction)

		r.Post("/complete", s.handleComplete)
		r.Post("/undo", s.handleUndo)
		r.Post("/add_prize", s.handleAddPrize)
		r.Post("/remove_prize", s.handleRemovePrize)
		r.Post("/reset", s.handleReset)

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		})
		r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	if s.staticDir != "" {
		fileServer := http.FileServer(http.Dir(s.staticDir))
		r.Get("/*", func(w http.ResponseWriter, req *http.Request) {
			fileServer.ServeHTTP(w, req)
		})
	}

	return r
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeTypedError(w, status, "error", msg)
}

func writeTypedError(w http.ResponseWriter, status int, typ, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    typ,
		},
	})
}

// corsMiddleware lets a page served from another origin call the API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
