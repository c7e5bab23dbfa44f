package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/realtobyfu/grove-sub000/internal/nudge"
	"github.com/realtobyfu/grove-sub000/internal/store"
)

// Server is the grove HTTP API server: the boundary the UI talks to for
// items, boards, courses, and the current nudge.
type Server struct {
	db      *store.DB
	engine  *nudge.Engine
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server with the given database, engine, and version.
func New(db *store.DB, engine *nudge.Engine, version string) *Server {
	s := &Server{
		db:      db,
		engine:  engine,
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

		r.Post("/items", s.handleCreateItem)
		r.Get("/items/{itemID}", s.handleGetItem)
		r.Post("/items/{itemID}/status", s.handleSetItemStatus)
		r.Post("/items/{itemID}/annotations", s.handleAddAnnotation)
		r.Post("/items/{itemID}/connections", s.handleAddConnection)
		r.Post("/items/{itemID}/tags", s.handleAddTag)

		r.Post("/boards", s.handleCreateBoard)
		r.Post("/boards/{boardID}/items", s.handleAddBoardItem)

		r.Post("/courses", s.handleCreateCourse)
		r.Post("/courses/{courseID}/lectures", s.handleAddLecture)
		r.Post("/courses/{courseID}/lectures/{itemID}/complete", s.handleCompleteLecture)

		r.Post("/nudges/generate", s.handleGenerateNudges)
		r.Get("/nudges/current", s.handleCurrentNudge)
		r.Get("/nudges", s.handleListNudges)
		r.Get("/nudges/stats", s.handleNudgeStats)
		r.Post("/nudges/{nudgeID}/shown", s.handleNudgeShown)
		r.Post("/nudges/{nudgeID}/acted", s.handleNudgeActedOn)
		r.Post("/nudges/{nudgeID}/dismissed", s.handleNudgeDismissed)

		r.Get("/resurfacing/stats", s.handleResurfacingStats)
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
