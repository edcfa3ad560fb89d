package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/simlab/simnet/internal/codec"
	"github.com/simlab/simnet/internal/model"
	"github.com/simlab/simnet/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodySize      = 32 << 20 // 32 MB; bundles carry numeric arrays
)

// submitRequest is the JSON body for POST /v1/wrappers: a single combined
// create+run submission. Bundle is a serialized CUDS bundle (base64 in JSON).
type submitRequest struct {
	EngineType string `json:"engine_type"`
	Bundle     []byte `json:"bundle"`
}

// wrapperResponse reports a wrapper id and its current lifecycle state.
type wrapperResponse struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// listWrappersResponse wraps the paginated journal listing.
type listWrappersResponse struct {
	Wrappers []*store.WrapperRow `json:"wrappers"`
	Total    int                 `json:"total"`
	Limit    int                 `json:"limit"`
	Offset   int                 `json:"offset"`
}

func (s *Server) handleSubmitWrapper(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body", "")
		return
	}

	if req.EngineType == "" {
		s.writeError(w, http.StatusBadRequest, "engine_type is required", "")
		return
	}

	bundle, err := codec.DecodeBundle(req.Bundle)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	id, err := s.manager.Create(r.Context(), req.EngineType, bundle)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	if err := s.manager.Run(id); err != nil {
		s.logger.Error("run submitted wrapper", "wrapper_id", id, "error", err)
		s.writeDomainError(w, err)
		return
	}

	state, err := s.manager.State(id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, wrapperResponse{ID: id, State: state})
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	state, err := s.manager.State(id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, wrapperResponse{ID: id, State: state})
}

func (s *Server) handleGetFailure(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	reason, err := s.manager.FailureReason(id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"id": id, "reason": reason})
}

func (s *Server) handleCancelWrapper(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.manager.Cancel(id); err != nil {
		s.writeDomainError(w, err)
		return
	}

	state, err := s.manager.State(id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, wrapperResponse{ID: id, State: state})
}

func (s *Server) handleListWrappers(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	wrappers, total, err := s.journal.ListWrappers(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list wrappers", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list wrappers", "")
		return
	}

	if wrappers == nil {
		wrappers = []*store.WrapperRow{}
	}

	s.writeJSON(w, http.StatusOK, listWrappersResponse{
		Wrappers: wrappers,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	})
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response. code is the wire error code
// clients use to rebuild the domain error; it may be empty.
func (s *Server) writeError(w http.ResponseWriter, status int, message, code string) {
	body := map[string]string{"error": message}
	if code != "" {
		body["code"] = code
	}
	s.writeJSON(w, status, body)
}

// writeDomainError maps a domain error onto an HTTP status and attaches its
// wire code.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrUnknownEngineType),
		errors.Is(err, model.ErrWrapperNotFound),
		errors.Is(err, model.ErrDatasetNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrAlreadyRunning),
		errors.Is(err, model.ErrDuplicateDatasetName),
		errors.Is(err, model.ErrEngineNotReady):
		status = http.StatusConflict
	case errors.Is(err, model.ErrUnsupportedDatasetType),
		errors.Is(err, model.ErrSerialization):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrUnsupportedOperation):
		status = http.StatusUnprocessableEntity
	}
	s.writeError(w, status, err.Error(), model.ErrorCode(err))
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
