package httputil

import (
	"encoding/json"
	"log"
	"net/http"
)

// StatusResponse is the body shape every connector endpoint replies with.
type StatusResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status code and data.
// It properly checks for encoding errors and logs them.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// WriteStatus writes {"status": status, "message": message} with the same HTTP status.
func WriteStatus(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, StatusResponse{Status: status, Message: message})
}
