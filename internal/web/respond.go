package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/dshills/postvault/pkg/types"
)

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "err", err)
	}
}

// writeError maps the error taxonomy to a status code. Server-side failures
// are logged and their details kept out of the response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	reqID := middleware.GetReqID(r.Context())

	switch {
	case errors.Is(err, types.ErrValidation):
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), RequestID: reqID})
	case errors.Is(err, types.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorBody{Error: "not found", RequestID: reqID})
	case errors.Is(err, types.ErrPoolExhausted):
		s.logger.Error("request failed: connection pool exhausted",
			"path", r.URL.Path, "request_id", reqID, "err", err)
		s.writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error", RequestID: reqID})
	default:
		s.logger.Error("request failed",
			"path", r.URL.Path, "request_id", reqID, "err", err)
		s.writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error", RequestID: reqID})
	}
}

// pageParam reads the 1-based page query parameter. It defaults to 1.
func pageParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 0, fmt.Errorf("%w: page must be a positive integer", types.ErrValidation)
	}
	return page, nil
}
