package handlers

import (
	"encoding/json"
	"net/http"
)

// Version is the service version reported by the root endpoint. Set at
// build time via -ldflags.
var Version = "dev"

// Info handles GET /, returning basic service identification so
// spreadsheet add-ons can verify they are pointed at the right backend.
func Info(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"name":    "Humble Clay API",
		"version": Version,
		"status":  "ok",
	})
}

// Health handles GET /health for liveness probes.
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
