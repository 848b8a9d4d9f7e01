package handler

import (
	"net/http"

	"github.com/goccy/go-json"

	"notesy/internal/logging"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("failed to write JSON response")
	}
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// Errors writes {"message": ...} responses. The underlying error is only exposed in
// development.
type Errors struct {
	Dev bool
}

func (e Errors) write(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	body := errorBody{Message: msg}
	if err != nil {
		if status >= http.StatusInternalServerError {
			logging.Ctx(r.Context()).Error().Err(err).Int("status", status).Msg(msg)
		}
		if e.Dev {
			body.Error = err.Error()
		}
	}
	writeJSON(w, status, body)
}
