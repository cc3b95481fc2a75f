// Package shared holds the JSON response helpers used by every handler.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "signet/pkg/domain-errors"
)

// WriteJSON writes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorBody is the JSON error envelope. Message carries the classified
// human-readable description; stack traces and key material never appear.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError translates a coded error into its HTTP status and envelope.
// Unclassified errors become opaque 500s.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := ErrorBody{Error: string(code), Message: "internal server error"}
	var de *dErrors.Error
	if errors.As(err, &de) && code != dErrors.CodeInternal {
		body.Message = de.Message
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), body)
}
