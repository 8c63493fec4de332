package httpapi

import (
	"net/http"

	"github.com/uptrace/bun"

	"serverPortal/internal/db"
)

// HealthServer reports liveness together with database reachability.
type HealthServer struct {
	*responder
	DB *bun.DB
}

func (s *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := db.Ping(r.Context(), s.DB); err != nil {
		s.logger.Warn("health check: database unreachable")
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":   "ERROR",
			"message":  s.msg(r, "health.db_down"),
			"database": "disconnected",
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "OK",
		"message":  s.msg(r, "health.ok"),
		"database": "connected",
	})
}
