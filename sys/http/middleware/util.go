package middleware

import (
	"encoding/json"
	"log"
	"net/http"
)

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// WriteError emits the JSON error envelope shared by every endpoint
func WriteError(w http.ResponseWriter, logger *log.Logger, status int, code, message string, details any) {
	WriteJSON(w, logger, status, ErrorEnvelope{
		Error: APIError{Code: code, Message: message, Details: details},
	})
}

func WriteJSON(w http.ResponseWriter, logger *log.Logger, status int, body any) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("X-Content-Type-Options", "nosniff")

	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Printf("Error serializing response: %s", err)
	}
}
