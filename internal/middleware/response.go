package middleware

import (
	"encoding/json"
	"net/http"

	"webhook-gateway/internal/common/errors"
)

// statusRecorder captures the status code written by the next handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError writes {error, code} with the status mapped from err
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errors.HTTPStatus(err), map[string]string{
		"error": errors.PublicMessage(err),
		"code":  errors.PublicCode(err),
	})
}
