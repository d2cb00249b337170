package api

import (
	"encoding/json"
	"net/http"
	"time"

	"grant-intake/internal/common/errors"
)

const errCodeInternal errors.ErrorCode = "INTERNAL_ERROR"

type errorBody struct {
	Error *errors.StandardError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError renders err as a StandardError body. Anything that is not a
// StandardError is logged and reported as an internal error.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	se, ok := errors.AsStandard(err)
	if !ok {
		s.logger.Error("unexpected error", map[string]interface{}{"error": err})
		se = &errors.StandardError{
			Code:      errCodeInternal,
			Message:   "Internal server error",
			Timestamp: time.Now().UTC(),
		}
	}

	status := errors.HTTPStatus(se.Code)
	if status >= http.StatusInternalServerError || se.Retryable {
		s.logger.Warn("request error", map[string]interface{}{
			"code":     se.Code,
			"category": errors.GetErrorCategory(se.Code),
			"details":  se.Details,
		})
	}
	writeJSON(w, status, errorBody{Error: se})
}
