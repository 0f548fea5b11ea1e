// Package handlers implements the gateway's HTTP endpoints: webhook
// delivery, endpoint and API key management, and health.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"webhook-gateway/internal/common/errors"
)

// ErrorResponse is the body of every failed management request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errors.HTTPStatus(err), ErrorResponse{
		Error: errors.PublicMessage(err),
		Code:  errors.PublicCode(err),
	})
}

// decodeJSON reads a JSON request body of at most limit bytes into v
func decodeJSON(r *http.Request, limit int64, v interface{}) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, limit)).Decode(v); err != nil {
		return errors.ValidationError("Invalid JSON body").WithContext("cause", err.Error())
	}
	return nil
}
