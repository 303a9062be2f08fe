package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/knsan189/imageLabeler/internal/logging"
)

// respond writes v as a JSON body with status. Ops responses are never
// cached.
func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode %T response: %v", v, err)
	}
}

// errorBody is the shape of every non-2xx response.
type errorBody struct {
	Error string `json:"error"`
}

func fail(w http.ResponseWriter, status int, message string) {
	respond(w, status, errorBody{Error: message})
}

// statusBody is the shape of the probe and trigger responses.
type statusBody struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
