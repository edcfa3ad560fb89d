package api

import (
	"encoding/json"
	"net/http"
)

// echoRequest and echoResponse implement the liveness probe: the message
// comes back unchanged.
type echoRequest struct {
	Message string `json:"message"`
}

type echoResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	var req echoRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body", "")
		return
	}
	s.writeJSON(w, http.StatusOK, echoResponse{Message: req.Message})
}

// handleListEngines reports the registered engine-type names.
func (s *Server) handleListEngines(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"engines": s.registry.Names()})
}
