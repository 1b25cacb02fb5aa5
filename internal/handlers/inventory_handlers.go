package handlers

import (
	"context"
	"fmt"

	"ocsbridge/internal/db"
	"ocsbridge/internal/events"
	"ocsbridge/internal/models"
)

// Store is the persistence surface the HTTP layer needs.
type Store interface {
	SaveInventory(ctx context.Context, rec *models.InventoryRecord, source string) (*db.SaveResult, error)
	ListDevices(ctx context.Context, limit, offset int) ([]models.Device, error)
	GetDeviceDetail(ctx context.Context, deviceID string) (*models.DeviceDetail, error)
	ListSubmissions(ctx context.Context, deviceID string, limit int) ([]models.RawSubmission, error)
	Ping(ctx context.Context) error
}

// InventoryHandler serves the ingestion and read endpoints.
type InventoryHandler struct {
	Store        Store
	Bus          *events.Bus
	MaxBodyBytes int64
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(store Store, bus *events.Bus, maxBodyBytes int64) *InventoryHandler {
	return &InventoryHandler{Store: store, Bus: bus, MaxBodyBytes: maxBodyBytes}
}

// announce publishes post-commit events for a stored submission.
func (h *InventoryHandler) announce(rec *models.InventoryRecord, res *db.SaveResult, source string) {
	hostname := ""
	if rec.Hostname != nil {
		hostname = *rec.Hostname
	}
	meta := map[string]string{"submission_id": res.SubmissionID}

	if res.Created {
		h.Bus.Publish(events.Event{
			Type:      events.DeviceRegistered,
			Severity:  events.SeverityNotice,
			DeviceID:  res.DeviceID,
			Hostname:  hostname,
			Source:    source,
			Message:   "New device registered",
			Metadata:  meta,
			Timestamp: res.ReceivedAt,
		})
	}
	h.Bus.Publish(events.Event{
		Type:     events.InventoryReceived,
		Severity: events.SeverityInfo,
		DeviceID: res.DeviceID,
		Hostname: hostname,
		Source:   source,
		Message: fmt.Sprintf("Inventory stored: %d software, %d disks, %d interfaces, %d users",
			len(rec.Software), len(rec.Storage), len(rec.NetworkInterfaces), len(rec.LoggedUsers)),
		Metadata:  meta,
		Timestamp: res.ReceivedAt,
	})
}
