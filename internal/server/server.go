package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"convwatch/internal/alerts"
	"convwatch/internal/collector"
)

// Server exposes the operational surface: trigger a collection run, trigger an
// alert sweep, report liveness. Subscriber-facing APIs live elsewhere.
type Server struct {
	pipeline     *collector.Pipeline
	sweeper      *alerts.Sweeper
	lock         *collector.RunLock
	defaultLimit int
	logger       *slog.Logger
}

// New wires the server. defaultLimit caps a collection run when the trigger
// request does not carry its own limit; 0 means unlimited.
func New(p *collector.Pipeline, sw *alerts.Sweeper, lock *collector.RunLock, defaultLimit int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{pipeline: p, sweeper: sw, lock: lock, defaultLimit: defaultLimit, logger: logger}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs/collect", s.handleCollect)
	mux.HandleFunc("POST /jobs/sweep", s.handleSweep)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

type collectRequest struct {
	// Limit is a pointer so an explicit 0 (no cap) is distinguishable from
	// an omitted field, which falls back to the server default.
	Limit *int `json:"limit"`
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	var req collectRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	limit := s.defaultLimit
	if req.Limit != nil {
		if *req.Limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be >= 0")
			return
		}
		limit = *req.Limit
	}

	if s.lock != nil {
		release, err := s.lock.Acquire(r.Context())
		if errors.Is(err, collector.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, "a collection run is already in progress")
			return
		}
		if err != nil {
			s.logger.Error("run lock acquire failed", "err", err)
			writeError(w, http.StatusInternalServerError, "could not acquire run lock")
			return
		}
		defer release()
	}

	sum, err := s.pipeline.Run(r.Context(), limit)
	if err != nil {
		s.logger.Error("collection run failed", "err", err)
		writeError(w, http.StatusInternalServerError, "collection run failed")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	created, err := s.sweeper.Sweep(r.Context(), time.Now())
	if err != nil {
		s.logger.Error("alert sweep failed", "err", err)
		writeError(w, http.StatusInternalServerError, "alert sweep failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"notificationsCreated": created})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
