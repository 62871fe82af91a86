package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tendhq/tend/internal/engine"
	"github.com/tendhq/tend/internal/store"
)

// Server is the tend HTTP API server.
type Server struct {
	db      *store.DB
	engine  *engine.Engine
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server over the given database and scoring engine.
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

		// Friends and their computed views
		r.Get("/friends", s.handleListFriends)
		r.Post("/friends", s.handleCreateFriend)
		r.Get("/friends/{friendID}", s.handleGetFriend)
		r.Patch("/friends/{friendID}", s.handleUpdateFriend)
		r.Delete("/friends/{friendID}", s.handleDeleteFriend)
		r.Get("/friends/{friendID}/weaves", s.handleFriendWeaves)
		r.Get("/friends/{friendID}/drift", s.handleFriendDrift)
		r.Get("/friends/{friendID}/suggestions", s.handleFriendSuggestions)

		// Weaves
		r.Post("/weaves", s.handleLogWeave)
		r.Delete("/weaves/{weaveID}", s.handleDeleteWeave)

		// Intentions
		r.Get("/intentions", s.handleListIntentions)
		r.Post("/intentions", s.handleCreateIntention)
		r.Post("/intentions/{intentionID}/fulfill", s.handleFulfillIntention)
		r.Post("/intentions/{intentionID}/abandon", s.handleAbandonIntention)

		// Network-wide views
		r.Get("/network", s.handleNetwork)
		r.Get("/forecast", s.handleForecast)
		r.Post("/dormancy/sweep", s.handleSweep)
		r.Get("/digest", s.handleDigest)
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
