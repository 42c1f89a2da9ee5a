// Package shared centralizes JSON envelopes so every handler answers in the
// same shape.
package shared

import (
	"encoding/json"
	"net/http"

	dErrors "medvault/pkg/domain-errors"
)

// WriteJSON writes a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// ErrorResponse is the error envelope. Retryable tells clients whether a
// fresh attempt can succeed: conflicts need a re-read first, unavailable is a
// plain retry-later, everything else is terminal.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Retryable bool   `json:"retryable"`
}

// WriteError translates a domain error into the JSON error envelope. Uncoded
// errors surface as internal without leaking detail.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := ErrorResponse{
		Error:     string(code),
		Retryable: dErrors.Retryable(err),
	}
	if code != dErrors.CodeInternal {
		resp.Message = err.Error()
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), resp)
}
