package ingest

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"ocsbridge/internal/models"
)

// ParseInventoryXML maps an OCS inventory document onto an InventoryRecord.
// Malformed documents yield a *ParseError; anything else that goes wrong
// while walking the tree yields an *InternalError.
func ParseInventoryXML(text string) (rec *models.InventoryRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec = nil
			err = &InternalError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	root, err := parseTree(text)
	if err != nil {
		var syntaxErr *xml.SyntaxError
		switch {
		case errors.As(err, &syntaxErr):
			return nil, &ParseError{Msg: "malformed document", Err: err}
		case errors.Is(err, errNoRoot), errors.Is(err, io.ErrUnexpectedEOF):
			return nil, &ParseError{Msg: "malformed document", Err: err}
		default:
			return nil, &InternalError{Err: err}
		}
	}

	rec = &models.InventoryRecord{
		Software:          []models.SoftwareEntry{},
		Storage:           []models.StorageEntry{},
		NetworkInterfaces: []models.NetworkInterfaceEntry{},
		LoggedUsers:       []models.LoggedUserEntry{},
	}

	if hw := root.find("HARDWARE"); hw != nil {
		extractHardware(hw, rec)
	}
	if rec.DeviceID == "" {
		return nil, &ParseError{Msg: "missing device identifier (HARDWARE/UUID or HARDWARE/NAME)"}
	}

	for _, s := range root.findAll("STORAGES") {
		rec.Storage = append(rec.Storage, extractStorage(s))
	}
	for _, n := range root.findAll("NETWORKS") {
		rec.NetworkInterfaces = append(rec.NetworkInterfaces, extractNetwork(n))
	}
	for _, s := range root.findAll("SOFTWARES") {
		rec.Software = append(rec.Software, extractSoftware(s))
	}
	for _, u := range root.findAll("USERS") {
		rec.LoggedUsers = append(rec.LoggedUsers, models.LoggedUserEntry{
			Username: u.value("LOGIN"),
			Domain:   u.value("DOMAIN"),
		})
	}

	// HARDWARE carries no MAC; use the first adapter that reports one.
	for _, nic := range rec.NetworkInterfaces {
		if nic.MACAddress != "" {
			mac := nic.MACAddress
			rec.MACAddress = &mac
			break
		}
	}

	return rec, nil
}

func extractHardware(hw *element, rec *models.InventoryRecord) {
	if id := firstPresent(hw, "UUID", "NAME"); id != nil {
		rec.DeviceID = *id
	}
	rec.Hostname = optional(hw.value("NAME"))
	rec.IPAddress = optional(hw.value("IPADDR"))
	rec.OSName = optional(hw.value("OSNAME"))
	rec.OSVersion = optional(hw.value("OSVERSION"))
	rec.OSArchitecture = optional(hw.value("ARCH"))
	rec.Manufacturer = firstPresent(hw, "SMANUFACTURER", "MANUFACTURER")
	rec.Model = firstPresent(hw, "SMODEL", "MODEL")
	rec.SerialNumber = optional(hw.value("SSN"))
	rec.CPUName = optional(hw.value("PROCESSORT"))
	rec.CPUCores = SafeInt(hw.value("PROCESSORN"))
	rec.RAMMB = SafeInt(hw.value("MEMORY"))
}

func extractStorage(s *element) models.StorageEntry {
	return models.StorageEntry{
		DiskName:     s.value("NAME"),
		DiskType:     s.value("TYPE"),
		CapacityGB:   CapacityGB(s.value("DISKSIZE")),
		SerialNumber: s.value("SERIALNUMBER"),
	}
}

func extractNetwork(n *element) models.NetworkInterfaceEntry {
	status := n.value("STATUS")
	if status == "" {
		status = "unknown"
	}
	return models.NetworkInterfaceEntry{
		InterfaceName: n.value("DESCRIPTION"),
		MACAddress:    n.value("MACADDR"),
		IPAddress:     n.value("IPADDRESS"),
		Netmask:       n.value("IPMASK"),
		Gateway:       n.value("IPGATEWAY"),
		DHCPEnabled:   n.value("IPDHCP") == "1",
		Status:        status,
	}
}

func extractSoftware(s *element) models.SoftwareEntry {
	return models.SoftwareEntry{
		Name:        s.value("NAME"),
		Version:     s.value("VERSION"),
		Publisher:   s.value("PUBLISHER"),
		InstallDate: models.NormalizeInstallDate(s.value("INSTALLDATE")),
	}
}
