package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/copperline/copperline/internal/engine"
	"github.com/copperline/copperline/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the copperline HTTP API server.
type Server struct {
	db      *store.DB
	engine  *engine.Engine
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server with the given database, engine, and
// version string.
func New(db *store.DB, eng *engine.Engine, version string) *Server {
	s := &Server{
		db:      db,
		engine:  eng,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Scoring
		r.Get("/event-types", s.handleEventTypes)
		r.Post("/events", s.handleProcessEvent)
		r.Post("/contacts/{contactID}/adjust", s.handleAdjustScore)
		r.Get("/contacts/{contactID}/history", s.handleHistory)

		// Contacts
		r.Post("/contacts", s.handleCreateContact)
		r.Get("/contacts/{contactID}", s.handleGetContact)

		// Model administration
		r.Get("/models", s.handleListModels)
		r.Post("/models", s.handleCreateModel)
		r.Post("/models/{modelID}/rules", s.handleCreateRule)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
	})
}
