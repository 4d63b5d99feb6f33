package api

import (
	"encoding/json"
	"net/http"
	"time"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the error envelope. Source and TakenAt identify the
// snapshot the error refers to and are empty before the first one.
type errorResponse struct {
	Error   string `json:"error"`
	Source  string `json:"source,omitempty"`
	TakenAt string `json:"taken_at,omitempty"`
}

// writeError reports msg against snap, which may be nil.
func writeError(w http.ResponseWriter, status int, snap *Snapshot, msg string) {
	resp := errorResponse{Error: msg}
	if snap != nil {
		resp.Source = snap.Source
		resp.TakenAt = snap.TakenAt.UTC().Format(time.RFC3339Nano)
	}
	writeJSON(w, status, resp)
}
