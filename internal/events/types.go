package events

import "time"

// EventType identifies the kind of event being published.
type EventType string

const (
	// DeviceRegistered fires once, when a device_id is stored for the first time.
	DeviceRegistered EventType = "device_registered"
	// InventoryReceived fires after every committed submission.
	InventoryReceived EventType = "inventory_received"
	// HandshakeReceived fires when a legacy agent sends its PROLOG probe.
	HandshakeReceived EventType = "handshake_received"
)

// Severity indicates the urgency of an event.
type Severity int

const (
	SeverityInfo    Severity = 0
	SeverityNotice  Severity = 1
	SeverityWarning Severity = 2
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityNotice:
		return "notice"
	case SeverityWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// Event is the payload published through the bus.
type Event struct {
	Type     EventType         `json:"type"`
	Severity Severity          `json:"severity"`
	DeviceID string            `json:"device_id,omitempty"`
	Hostname string            `json:"hostname,omitempty"`
	Source   string            `json:"source,omitempty"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
	// Timestamp is filled in by Publish when zero.
	Timestamp time.Time `json:"timestamp"`
}
