// Package server exposes the gateway's REST + WebSocket surface: a
// read-only snapshot of the parameter cache, a write endpoint, health, and
// alarms, plus a push channel that carries parameter updates after a write
// or refresh and periodic health snapshots. Routing and the
// writeJSON/readJSON helpers follow the teacher's internal/server/server.go
// shape; the handlers themselves are new (spec.md §6).
package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/econext/gm3-gateway/internal/bus"
	"github.com/econext/gm3-gateway/internal/cache"
	"github.com/econext/gm3-gateway/internal/supervisor"
)

// Server wires the HTTP surface to the cache, bus handler, and supervisor
// that actually own the gateway's state.
type Server struct {
	mux *http.ServeMux

	cache   *cache.ParameterCache
	handler *bus.Handler
	sup     *supervisor.Supervisor

	hub *WSHub
}

// New constructs a Server over the gateway's already-running components.
func New(c *cache.ParameterCache, h *bus.Handler, sup *supervisor.Supervisor) *Server {
	s := &Server{
		mux:     http.NewServeMux(),
		cache:   c,
		handler: h,
		sup:     sup,
		hub:     NewWSHub(),
	}

	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/parameters", s.handleParameters)
	s.mux.HandleFunc("/parameters/", s.handleParameterPath)
	s.mux.HandleFunc("/alarms", s.handleAlarms)
	s.mux.HandleFunc("/ws", s.handleWS)

	return s
}

// Handler returns the server's http.Handler, ready to pass to http.Serve.
func (s *Server) Handler() http.Handler { return s.mux }

// Hub returns the WebSocket broadcast hub, so callers outside the server
// (cmd/server's broadcastHealth ticker) can push messages of their own.
func (s *Server) Hub() *WSHub { return s.hub }

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	b, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
