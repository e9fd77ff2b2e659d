// Package api exposes the timeline catalog and the timelines themselves over
// a small REST surface, useful for dashboards sitting next to the merger.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"phonetrack-timeline/internal/db"
	"phonetrack-timeline/internal/normalize"
	"phonetrack-timeline/internal/parser"

	"github.com/gorilla/mux"
)

// Server represents the API server
type Server struct {
	db     *db.Database
	router *mux.Router
}

// NewServer creates a new API server
func NewServer(database *db.Database) *Server {
	s := &Server{
		db:     database,
		router: mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router.HandleFunc("/api/v1/timelines", s.handleListTimelines).Methods("GET")
	s.router.HandleFunc("/api/v1/timelines/{session}/{user}", s.handleGetTimeline).Methods("GET")
	s.router.HandleFunc("/api/v1/runs", s.handleListRuns).Methods("GET")
	s.router.HandleFunc("/api/v1/stats", s.handleStats).Methods("GET")

	s.router.Use(loggingMiddleware)
	s.router.Use(jsonMiddleware)
}

// Router returns the configured router
func (s *Server) Router() *mux.Router {
	return s.router
}

// Middleware
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Response helpers
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: false, Error: message})
}

// Handlers
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleListTimelines(w http.ResponseWriter, r *http.Request) {
	timelines, err := s.db.ListTimelines()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, timelines)
}

// handleGetTimeline serves the points of one timeline. Session and user in
// the URL are matched through the same normalization as grouping, so
// /Trip/Ági and /trip/agi hit the same timeline.
func (s *Server) handleGetTimeline(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	rec, err := s.db.GetTimeline(normalize.Fold(vars["session"]), normalize.Fold(vars["user"]))
	if err != nil {
		respondError(w, http.StatusNotFound, "timeline not found")
		return
	}

	points, err := parser.ExtractFile(rec.Path)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "timeline file unreadable")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"session": rec.Session,
		"user":    rec.User,
		"points":  points,
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	runs, err := s.db.ListRuns(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, runs)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetStats()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
