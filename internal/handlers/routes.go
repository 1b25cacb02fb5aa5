package handlers

import (
	"fmt"
	"net/http"

	"ocsbridge/internal/ingest"
)

// OCSPath is where legacy agents post.
const OCSPath = "/ocsinventory"

// RegisterRoutes mounts every endpoint on mux.
func RegisterRoutes(mux *http.ServeMux, inv *InventoryHandler, sys *SystemHandler) {
	mux.HandleFunc("POST "+OCSPath, inv.SubmitOCS)
	mux.HandleFunc("POST /api/ingest", inv.SubmitJSON)

	mux.HandleFunc("GET /api/devices", inv.ListDevices)
	mux.HandleFunc("GET /api/devices/{device_id}", inv.GetDevice)
	mux.HandleFunc("GET /api/devices/{device_id}/history", inv.DeviceHistory)

	mux.HandleFunc("GET /health", sys.Health)
	mux.HandleFunc("GET /{$}", sys.Root)
}

// RejectRateLimited answers a throttled request in the format its endpoint
// speaks: a <REPLY> document for OCS agents, a JSON error otherwise.
func RejectRateLimited(w http.ResponseWriter, r *http.Request, retryAfter int) {
	msg := fmt.Sprintf("too many requests, retry in %d seconds", retryAfter)
	if r.URL.Path == OCSPath {
		XMLResponse(w, ingest.ErrorReply(msg), http.StatusTooManyRequests)
		return
	}
	JSONError(w, msg, http.StatusTooManyRequests)
}
