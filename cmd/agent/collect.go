package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"runtime"
	"strings"

	"ocsbridge/internal/models"
)

// machineID returns a stable identifier for this host: /etc/machine-id when
// present, otherwise a hash of the first hardware address, otherwise the
// hostname.
func machineID(hostname string) string {
	if data, err := os.ReadFile("/etc/machine-id"); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}
	if mac := firstMACAddress(); mac != "" {
		h := sha256.Sum256([]byte(mac))
		return hostname + "-" + hex.EncodeToString(h[:8])
	}
	return hostname
}

func firstMACAddress() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) == 0 {
			continue
		}
		return iface.HardwareAddr.String()
	}
	return ""
}

// collectLocal builds a JSON inventory record describing this host.
// Only what the Go runtime and net package expose is reported.
func collectLocal() (*models.InventoryRecord, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("get hostname: %w", err)
	}

	osName := runtime.GOOS
	arch := runtime.GOARCH
	rec := &models.InventoryRecord{
		DeviceID:       machineID(hostname),
		Hostname:       &hostname,
		OSName:         &osName,
		OSArchitecture: &arch,
		CPUCores:       int64(runtime.NumCPU()),
		Software: []models.SoftwareEntry{
			{Name: "ocsbridge-agent", Version: version},
		},
		Storage:           []models.StorageEntry{},
		NetworkInterfaces: localInterfaces(),
		LoggedUsers:       []models.LoggedUserEntry{},
	}

	if u := os.Getenv("USER"); u != "" {
		rec.LoggedUsers = append(rec.LoggedUsers, models.LoggedUserEntry{Username: u})
	}

	for _, nic := range rec.NetworkInterfaces {
		if nic.IPAddress != "" {
			ip := nic.IPAddress
			rec.IPAddress = &ip
			mac := nic.MACAddress
			rec.MACAddress = &mac
			break
		}
	}
	return rec, nil
}

func localInterfaces() []models.NetworkInterfaceEntry {
	out := []models.NetworkInterfaceEntry{}
	ifaces, err := net.Interfaces()
	if err != nil {
		return out
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		entry := models.NetworkInterfaceEntry{
			InterfaceName: iface.Name,
			MACAddress:    iface.HardwareAddr.String(),
			Status:        "down",
		}
		if iface.Flags&net.FlagUp != 0 {
			entry.Status = "up"
		}
		if addrs, err := iface.Addrs(); err == nil {
			for _, a := range addrs {
				ipnet, ok := a.(*net.IPNet)
				if !ok || ipnet.IP.To4() == nil {
					continue
				}
				entry.IPAddress = ipnet.IP.String()
				entry.Netmask = net.IP(ipnet.Mask).String()
				break
			}
		}
		out = append(out, entry)
	}
	return out
}
