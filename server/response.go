package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/teranos/tempo/db"
	"github.com/teranos/tempo/errors"
)

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		return errors.Wrap(err, "failed to encode JSON")
	}
	return nil
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeErrorFor maps a domain error to its HTTP status. Store failures
// and unknown errors are reported without internal detail.
func (s *Server) writeErrorFor(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.IsNotFoundError(err):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.IsInvalidRequestError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.IsConflictError(err):
		writeError(w, http.StatusConflict, err.Error())
	case db.IsDatabaseClosed(err):
		s.requestLog(r).Warnw("Request after database closed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "job store unavailable")
	case errors.IsStoreError(err):
		s.requestLog(r).Errorw("Job store unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "job store unavailable")
	default:
		s.requestLog(r).Errorw("Request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// readJSON decodes the request body, keeping numbers exact so integer
// parameters stay integers.
func readJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return errors.Mark(errors.Wrap(err, "invalid request body"), errors.ErrInvalidRequest)
	}
	return nil
}

// jobIDParam parses the {id} route parameter.
func jobIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewInvalidRequestError("invalid job id %q", raw)
	}
	return id, nil
}
