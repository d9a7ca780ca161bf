// Package api provides the HTTP API for observing and growing the colony.
// GET endpoints are public (read-only observation). Builds are open but
// rate limited per client; speed changes require a bearer token.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/talgya/fungal-nexus/internal/colony"
	"github.com/talgya/fungal-nexus/internal/engine"
	"github.com/talgya/fungal-nexus/internal/journal"
)

// Server serves the colony over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	DB       *journal.DB // optional; history endpoints 404 without it
	RunID    string
	Port     int
	AdminKey string // Bearer token for POST /speed. Empty = disabled.

	// Builds per second and burst allowed per client IP.
	BuildRate  float64
	BuildBurst int

	streamConns int32 // active websocket streams (atomic)
}

// Handler assembles the routes.
func (s *Server) Handler() http.Handler {
	buildRate, buildBurst := s.BuildRate, s.BuildBurst
	if buildRate <= 0 {
		buildRate = 2
	}
	if buildBurst <= 0 {
		buildBurst = 5
	}
	buildLimiter := NewRateLimiter(buildRate, buildBurst)

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/colony", s.handleColony)
	mux.HandleFunc("GET /api/v1/infected", s.handleInfected)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/history", s.handleHistory)
	mux.HandleFunc("GET /api/v1/runs", s.handleRuns)
	mux.HandleFunc("GET /api/v1/node/{x}/{y}", s.handleNode)
	mux.HandleFunc("GET /api/v1/route/{x}/{y}", s.handleRoute)
	mux.HandleFunc("GET /api/v1/speed", s.handleSpeed)

	// Live stream (websocket).
	mux.HandleFunc("GET /api/v1/stream", s.handleStream)

	// Control endpoints.
	mux.HandleFunc("POST /api/v1/build", RateLimitMiddleware(buildLimiter, s.handleBuild))
	mux.HandleFunc("POST /api/v1/speed", s.adminOnly(s.handleSpeed))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "journal", s.DB != nil)

	go func() {
		if err := http.ListenAndServe(addr, s.Handler()); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set NEXUS_CORS_ORIGINS to a comma-separated list of extra origins.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("NEXUS_CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no NEXUS_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.Sim.Status()
	resp := map[string]any{
		"name":    "Fungal Nexus",
		"run_id":  s.RunID,
		"speed":   0.0,
		"running": false,
		"status":  st,
	}
	if s.Eng != nil {
		resp["speed"] = s.Eng.Speed()
		resp["running"] = s.Eng.Running()
	}
	writeJSON(w, resp)
}

func (s *Server) handleColony(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Snapshot())
}

func (s *Server) handleInfected(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Infected())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50, 500)
	events := s.Sim.Events(0)

	// Optional category filter.
	if cat := r.URL.Query().Get("category"); cat != "" {
		filtered := make([]engine.Event, 0, len(events))
		for _, e := range events {
			if e.Category == cat {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	start := 0
	if len(events) > limit {
		start = len(events) - limit
	}
	writeJSON(w, events[start:])
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "journal disabled", http.StatusNotFound)
		return
	}
	runID := r.URL.Query().Get("run")
	if runID == "" {
		runID = s.RunID
	}
	limit := queryLimit(r, 60, 1000)

	cycles, err := s.DB.History(runID, limit)
	if err != nil {
		slog.Error("history query failed", "error", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	events, err := s.DB.RecentEvents(runID, limit)
	if err != nil {
		slog.Error("event query failed", "error", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"run":    runID,
		"cycles": cycles,
		"events": events,
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "journal disabled", http.StatusNotFound)
		return
	}
	runs, err := s.DB.Runs(queryLimit(r, 20, 200))
	if err != nil {
		slog.Error("runs query failed", "error", err)
		http.Error(w, "runs unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs)
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	x, y, ok := pathXY(w, r)
	if !ok {
		return
	}
	v, found := s.Sim.NodeAt(x, y)
	if !found {
		http.Error(w, "no node at that position", http.StatusNotFound)
		return
	}
	writeJSON(w, v)
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	x, y, ok := pathXY(w, r)
	if !ok {
		return
	}
	path, found := s.Sim.Route(x, y)
	if !found {
		http.Error(w, "no route from that position", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{
		"hops": len(path) - 1,
		"path": path,
	})
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var req struct {
		X    int    `json:"x"`
		Y    int    `json:"y"`
		Type string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	t, err := colony.ParseNodeType(req.Type)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	queued, err := s.Sim.RequestBuild(req.X, req.Y, t)
	switch {
	case err == nil:
	case errors.Is(err, colony.ErrNotBuildable), errors.Is(err, engine.ErrOutOfBounds):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, engine.ErrGameOver):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, engine.ErrQueueFull):
		w.Header().Set("Retry-After", "1")
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	slog.Debug("build queued", "id", queued.ID, "type", queued.Kind, "x", queued.X, "y", queued.Y)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(queued)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "engine not attached", http.StatusServiceUnavailable)
		return
	}
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 100 {
			http.Error(w, "speed must be 0-100", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func pathXY(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	x, err1 := strconv.Atoi(r.PathValue("x"))
	y, err2 := strconv.Atoi(r.PathValue("y"))
	if err1 != nil || err2 != nil {
		http.Error(w, "invalid coordinates", http.StatusBadRequest)
		return 0, 0, false
	}
	return x, y, true
}

func queryLimit(r *http.Request, def, ceiling int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= ceiling {
			return n
		}
	}
	return def
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
