package handlers

import (
	"log"
	"net/http"
)

const (
	defaultDeviceLimit  = 100
	maxDeviceLimit      = 1000
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// ListDevices handles GET /api/devices
// Query params: limit (default 100, max 1000), offset (default 0)
func (h *InventoryHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultDeviceLimit, 1, maxDeviceLimit)
	offset := queryInt(r, "offset", 0, 0, 0)

	devices, err := h.Store.ListDevices(r.Context(), limit, offset)
	if err != nil {
		log.Printf("❌ Failed to list devices: %v", err)
		JSONError(w, "Failed to list devices", http.StatusInternalServerError)
		return
	}
	JSONResponse(w, devices)
}

// GetDevice handles GET /api/devices/{device_id}
func (h *InventoryHandler) GetDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("device_id")

	detail, err := h.Store.GetDeviceDetail(r.Context(), deviceID)
	if err != nil {
		log.Printf("❌ Failed to load device %s: %v", deviceID, err)
		JSONError(w, "Failed to load device", http.StatusInternalServerError)
		return
	}
	if detail == nil {
		JSONError(w, "Device not found", http.StatusNotFound)
		return
	}
	JSONResponse(w, detail)
}

// DeviceHistory handles GET /api/devices/{device_id}/history
// Query params: limit (default 20, max 500)
func (h *InventoryHandler) DeviceHistory(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("device_id")
	limit := queryInt(r, "limit", defaultHistoryLimit, 1, maxHistoryLimit)

	subs, err := h.Store.ListSubmissions(r.Context(), deviceID, limit)
	if err != nil {
		log.Printf("❌ Failed to load history for %s: %v", deviceID, err)
		JSONError(w, "Failed to load history", http.StatusInternalServerError)
		return
	}
	if len(subs) == 0 {
		detail, err := h.Store.GetDeviceDetail(r.Context(), deviceID)
		if err == nil && detail == nil {
			JSONError(w, "Device not found", http.StatusNotFound)
			return
		}
	}

	JSONResponse(w, map[string]interface{}{
		"device_id":   deviceID,
		"submissions": subs,
	})
}
