package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// addDatasetRequest is the JSON body for POST /v1/wrappers/{id}/datasets.
// Data is a serialized dataset envelope (base64 in JSON); the name travels
// inside the envelope.
type addDatasetRequest struct {
	Data []byte `json:"data"`
}

// datasetResponse carries a fetched dataset back to the client.
type datasetResponse struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

func (s *Server) handleAddDataset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req addDatasetRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body", "")
		return
	}
	if len(req.Data) == 0 {
		s.writeError(w, http.StatusBadRequest, "data is required", "")
		return
	}

	name, err := s.manager.AddDataset(id, req.Data)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": id, "name": name})
}

func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := chi.URLParam(r, "name")

	blob, err := s.manager.Dataset(id, name)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, datasetResponse{Name: name, Data: blob})
}

func (s *Server) handleRemoveDataset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := chi.URLParam(r, "name")

	if err := s.manager.RemoveDataset(id, name); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"id": id, "name": name})
}
