package handlers

import (
	"context"
	"log"
	"net/http"
	"time"
)

// SystemHandler serves liveness and service information.
type SystemHandler struct {
	Store   Store
	Version string
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(store Store, version string) *SystemHandler {
	return &SystemHandler{Store: store, Version: version}
}

// Health handles GET /health with a database round trip.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Store.Ping(ctx); err != nil {
		log.Printf("⚠️  Health check failed: %v", err)
		JSONError(w, "Database unavailable", http.StatusServiceUnavailable)
		return
	}
	JSONResponse(w, map[string]string{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// Root handles GET / (exact match only).
func (h *SystemHandler) Root(w http.ResponseWriter, r *http.Request) {
	JSONResponse(w, map[string]string{
		"service": "ocsbridge",
		"version": h.Version,
		"message": "OCS Inventory compatible ingestion server",
	})
}
