package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"reflect"
	"strings"
	"time"

	"ocsbridge/internal/db"
	"ocsbridge/internal/models"
)

// ValidationError is a JSON submission that does not match the inventory
// record shape.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// knownFields are the top-level JSON names of InventoryRecord.
var knownFields = func() map[string]bool {
	known := map[string]bool{}
	t := reflect.TypeOf(models.InventoryRecord{})
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			known[name] = true
		}
	}
	return known
}()

// SubmitJSON handles POST /api/ingest
func (h *InventoryHandler) SubmitJSON(w http.ResponseWriter, r *http.Request) {
	body, err := h.readBody(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			JSONError(w, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		JSONError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	rec, err := DecodeInventoryJSON(body)
	if err != nil {
		JSONError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	res, err := h.Store.SaveInventory(r.Context(), rec, db.SourceJSON)
	if err != nil {
		log.Printf("❌ Failed to store JSON inventory for %s: %v", rec.DeviceID, err)
		JSONError(w, "Error storing data: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.announce(rec, res, db.SourceJSON)
	JSONResponse(w, map[string]string{
		"status":        "success",
		"message":       "Inventory data received and stored",
		"device_id":     res.DeviceID,
		"submission_id": res.SubmissionID,
		"timestamp":     res.ReceivedAt.Format(time.RFC3339Nano),
	})
}

// DecodeInventoryJSON strictly decodes a JSON inventory record. Unknown
// top-level fields are kept in Metadata.
func DecodeInventoryJSON(body []byte) (*models.InventoryRecord, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, describeJSONError(err)
	}
	if raw == nil {
		return nil, &ValidationError{Msg: "body must be a JSON object"}
	}

	var rec models.InventoryRecord
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&rec); err != nil {
		return nil, describeJSONError(err)
	}

	for key, value := range raw {
		if knownFields[key] {
			continue
		}
		var v any
		if err := json.Unmarshal(value, &v); err != nil {
			return nil, describeJSONError(err)
		}
		if rec.Metadata == nil {
			rec.Metadata = map[string]any{}
		}
		if _, taken := rec.Metadata[key]; !taken {
			rec.Metadata[key] = v
		}
	}

	if err := validateRecord(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func validateRecord(rec *models.InventoryRecord) error {
	rec.DeviceID = strings.TrimSpace(rec.DeviceID)
	if rec.DeviceID == "" {
		return &ValidationError{Field: "device_id", Msg: "field required"}
	}
	if rec.Hostname == nil || strings.TrimSpace(*rec.Hostname) == "" {
		return &ValidationError{Field: "hostname", Msg: "field required"}
	}
	if rec.CPUCores < 0 {
		return &ValidationError{Field: "cpu_cores", Msg: "must be greater than or equal to 0"}
	}
	if rec.RAMMB < 0 {
		return &ValidationError{Field: "ram_mb", Msg: "must be greater than or equal to 0"}
	}
	for i, d := range rec.Storage {
		if d.CapacityGB < 0 {
			return &ValidationError{Field: fmt.Sprintf("storage[%d].capacity_gb", i), Msg: "must be greater than or equal to 0"}
		}
	}
	for i := range rec.NetworkInterfaces {
		if rec.NetworkInterfaces[i].Status == "" {
			rec.NetworkInterfaces[i].Status = "unknown"
		}
	}
	if rec.Software == nil {
		rec.Software = []models.SoftwareEntry{}
	}
	if rec.Storage == nil {
		rec.Storage = []models.StorageEntry{}
	}
	if rec.NetworkInterfaces == nil {
		rec.NetworkInterfaces = []models.NetworkInterfaceEntry{}
	}
	if rec.LoggedUsers == nil {
		rec.LoggedUsers = []models.LoggedUserEntry{}
	}
	return nil
}

func describeJSONError(err error) error {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	var timeErr *time.ParseError
	switch {
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return &ValidationError{Field: field, Msg: fmt.Sprintf("expected %s, got JSON %s", typeErr.Type, typeErr.Value)}
	case errors.As(err, &syntaxErr):
		return &ValidationError{Msg: fmt.Sprintf("invalid JSON at offset %d: %v", syntaxErr.Offset, err)}
	case errors.As(err, &timeErr):
		return &ValidationError{Field: "last_login", Msg: "invalid datetime: " + timeErr.Value}
	default:
		return &ValidationError{Msg: "invalid JSON: " + err.Error()}
	}
}
