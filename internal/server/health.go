package server

import (
	"context"
	"net/http"
	"time"
)

// HealthResponse is the JSON response structure for health checks.
type HealthResponse struct {
	Status string `json:"status"`
	Redis  string `json:"redis,omitempty"`
	Duels  int    `json:"duels"`
	Error  string `json:"error,omitempty"`
}

// healthCheckHandler handles GET /healthz requests.
// Returns 503 when Redis is configured but unreachable, 200 otherwise.
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	response := HealthResponse{
		Status: "healthy",
	}
	if s.cfg.Duels != nil {
		response.Duels = len(s.cfg.Duels.List())
	}

	if s.cfg.Redis == nil {
		writeJSON(w, http.StatusOK, response)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.cfg.Redis.Ping(ctx); err != nil {
		response.Status = "unhealthy"
		response.Redis = "disconnected"
		response.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, response)
		return
	}

	response.Redis = "connected"
	writeJSON(w, http.StatusOK, response)
}
