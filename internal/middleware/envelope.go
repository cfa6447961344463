package middleware

import (
	"encoding/json"
	"net/http"

	"go-task-manager/internal/model"
)

// writeErrorEnvelope answers with the API's failure envelope. Headers set
// on w before the call are kept.
func writeErrorEnvelope(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   &model.APIError{Code: code, Message: message},
	})
}
