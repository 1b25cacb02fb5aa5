package models

import (
	"strings"
	"time"
)

// InventoryRecord is one normalized inventory submission, whichever wire
// format it arrived in.
type InventoryRecord struct {
	DeviceID       string  `json:"device_id"`
	Hostname       *string `json:"hostname"`
	IPAddress      *string `json:"ip_address"`
	MACAddress     *string `json:"mac_address"`
	OSName         *string `json:"os_name"`
	OSVersion      *string `json:"os_version"`
	OSArchitecture *string `json:"os_architecture"`
	Manufacturer   *string `json:"manufacturer"`
	Model          *string `json:"model"`
	SerialNumber   *string `json:"serial_number"`
	CPUName        *string `json:"cpu_name"`
	CPUCores       int64   `json:"cpu_cores"`
	RAMMB          int64   `json:"ram_mb"`

	Software          []SoftwareEntry         `json:"software"`
	Storage           []StorageEntry          `json:"storage"`
	NetworkInterfaces []NetworkInterfaceEntry `json:"network_interfaces"`
	LoggedUsers       []LoggedUserEntry       `json:"logged_users"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// SoftwareEntry is an installed package. Entries without a name are not stored.
type SoftwareEntry struct {
	Name        string  `json:"name"`
	Version     string  `json:"version"`
	Publisher   string  `json:"publisher"`
	InstallDate *string `json:"install_date"`
}

// installDatePlaceholders are values agents send when the install date is
// unknown.
var installDatePlaceholders = map[string]bool{
	"":           true,
	"0000-00-00": true,
	"N/A":        true,
}

// NormalizeInstallDate returns nil for placeholder dates.
func NormalizeInstallDate(s string) *string {
	s = strings.TrimSpace(s)
	if installDatePlaceholders[s] {
		return nil
	}
	return &s
}

// StorageEntry is a physical or logical disk.
type StorageEntry struct {
	DiskName     string `json:"disk_name"`
	DiskType     string `json:"disk_type"`
	CapacityGB   int64  `json:"capacity_gb"`
	SerialNumber string `json:"serial_number"`
}

// NetworkInterfaceEntry is a network adapter as reported by the agent.
type NetworkInterfaceEntry struct {
	InterfaceName string `json:"interface_name"`
	MACAddress    string `json:"mac_address"`
	IPAddress     string `json:"ip_address"`
	Netmask       string `json:"netmask"`
	Gateway       string `json:"gateway"`
	DHCPEnabled   bool   `json:"dhcp_enabled"`
	Status        string `json:"status"`
}

// LoggedUserEntry is a user session seen on the device.
type LoggedUserEntry struct {
	Username  string     `json:"username"`
	Domain    string     `json:"domain"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// Device is the current state of an inventoried endpoint.
type Device struct {
	ID             int64     `json:"id"`
	DeviceID       string    `json:"device_id"`
	Hostname       *string   `json:"hostname"`
	IPAddress      *string   `json:"ip_address"`
	MACAddress     *string   `json:"mac_address"`
	OSName         *string   `json:"os_name"`
	OSVersion      *string   `json:"os_version"`
	OSArchitecture *string   `json:"os_architecture"`
	Manufacturer   *string   `json:"manufacturer"`
	Model          *string   `json:"model"`
	SerialNumber   *string   `json:"serial_number"`
	CPUName        *string   `json:"cpu_name"`
	CPUCores       int64     `json:"cpu_cores"`
	RAMMB          int64     `json:"ram_mb"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
}

// DeviceDetail is a device together with its current child collections.
type DeviceDetail struct {
	Device            Device                  `json:"device"`
	Software          []SoftwareEntry         `json:"software"`
	Storage           []StorageEntry          `json:"storage"`
	NetworkInterfaces []NetworkInterfaceEntry `json:"network_interfaces"`
	LoggedUsers       []LoggedUserEntry       `json:"logged_users"`
}

// RawSubmission describes one entry of the append-only raw payload log.
type RawSubmission struct {
	ID            int64     `json:"id"`
	SubmissionID  string    `json:"submission_id"`
	DeviceID      string    `json:"device_id"`
	Hostname      *string   `json:"hostname"`
	Source        string    `json:"source"`
	PayloadDigest string    `json:"payload_digest"`
	PayloadSize   int       `json:"payload_size"`
	ReceivedAt    time.Time `json:"received_at"`
}

// Config holds server configuration
type Config struct {
	Port         string   `yaml:"port"`
	DBDriver     string   `yaml:"db_driver"`
	DBPath       string   `yaml:"db_path"`
	DatabaseURL  string   `yaml:"database_url"`
	DBMaxConns   int      `yaml:"db_max_conns"`
	MaxBodyBytes int64    `yaml:"max_body_bytes"`
	RateLimit    int      `yaml:"rate_limit_per_minute"`
	NotifyURLs   []string `yaml:"notify_urls"`

	// TrustedProxies may set X-Forwarded-For / X-Real-IP for rate limiting.
	TrustedProxies []string `yaml:"trusted_proxies"`
}
