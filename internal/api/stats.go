package api

import (
	"net/http"
)

// statsResponse is the JSON response for GET /v1/stats.
type statsResponse struct {
	Total        int            `json:"total"`
	ByState      map[string]int `json:"by_state"`
	ByEngineType map[string]int `json:"by_engine_type"`
	Active       int            `json:"active"`
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.journal.Stats(r.Context())
	if err != nil {
		s.logger.Error("get wrapper stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get stats", "")
		return
	}

	s.writeJSON(w, http.StatusOK, statsResponse{
		Total:        stats.Total,
		ByState:      stats.ByState,
		ByEngineType: stats.ByEngineType,
		Active:       s.manager.Len(),
	})
}
