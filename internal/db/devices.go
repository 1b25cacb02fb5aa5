package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ocsbridge/internal/models"
)

const deviceColumns = `id, device_id, hostname, ip_address, mac_address, os_name, os_version,
	os_architecture, manufacturer, model, serial_number, cpu_name, cpu_cores, ram_mb,
	first_seen, last_seen`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDevice(row rowScanner) (models.Device, error) {
	var d models.Device
	var hostname, ip, mac, osName, osVersion, osArch, manufacturer, model, serial, cpu sql.NullString
	err := row.Scan(&d.ID, &d.DeviceID, &hostname, &ip, &mac, &osName, &osVersion,
		&osArch, &manufacturer, &model, &serial, &cpu, &d.CPUCores, &d.RAMMB,
		&d.FirstSeen, &d.LastSeen)
	if err != nil {
		return d, err
	}
	d.Hostname = StringPtr(hostname)
	d.IPAddress = StringPtr(ip)
	d.MACAddress = StringPtr(mac)
	d.OSName = StringPtr(osName)
	d.OSVersion = StringPtr(osVersion)
	d.OSArchitecture = StringPtr(osArch)
	d.Manufacturer = StringPtr(manufacturer)
	d.Model = StringPtr(model)
	d.SerialNumber = StringPtr(serial)
	d.CPUName = StringPtr(cpu)
	d.FirstSeen = d.FirstSeen.UTC()
	d.LastSeen = d.LastSeen.UTC()
	return d, nil
}

// ListDevices returns a page of devices, most recently seen first.
func (s *Store) ListDevices(ctx context.Context, limit, offset int) ([]models.Device, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+deviceColumns+`
		FROM devices
		ORDER BY last_seen DESC, id DESC
		LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	devices := []models.Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// GetDeviceDetail returns the device and its child collections, or nil when
// the device is unknown.
func (s *Store) GetDeviceDetail(ctx context.Context, deviceID string) (*models.DeviceDetail, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+deviceColumns+` FROM devices WHERE device_id = ?`), deviceID)
	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device %s: %w", deviceID, err)
	}

	detail := &models.DeviceDetail{Device: d}
	if detail.Software, err = s.deviceSoftware(ctx, deviceID); err != nil {
		return nil, err
	}
	if detail.Storage, err = s.deviceStorage(ctx, deviceID); err != nil {
		return nil, err
	}
	if detail.NetworkInterfaces, err = s.deviceInterfaces(ctx, deviceID); err != nil {
		return nil, err
	}
	if detail.LoggedUsers, err = s.deviceUsers(ctx, deviceID); err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *Store) deviceSoftware(ctx context.Context, deviceID string) ([]models.SoftwareEntry, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT name, version, publisher, install_date
		FROM software WHERE device_id = ? ORDER BY id`), deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query software: %w", err)
	}
	defer rows.Close()

	out := []models.SoftwareEntry{}
	for rows.Next() {
		var e models.SoftwareEntry
		var installDate sql.NullString
		if err := rows.Scan(&e.Name, &e.Version, &e.Publisher, &installDate); err != nil {
			return nil, fmt.Errorf("failed to scan software: %w", err)
		}
		e.InstallDate = StringPtr(installDate)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) deviceStorage(ctx context.Context, deviceID string) ([]models.StorageEntry, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT disk_name, disk_type, capacity_gb, serial_number
		FROM hardware_storage WHERE device_id = ? ORDER BY id`), deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query storage: %w", err)
	}
	defer rows.Close()

	out := []models.StorageEntry{}
	for rows.Next() {
		var e models.StorageEntry
		if err := rows.Scan(&e.DiskName, &e.DiskType, &e.CapacityGB, &e.SerialNumber); err != nil {
			return nil, fmt.Errorf("failed to scan storage: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) deviceInterfaces(ctx context.Context, deviceID string) ([]models.NetworkInterfaceEntry, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT interface_name, mac_address, ip_address, netmask, gateway, dhcp_enabled, status
		FROM network_interfaces WHERE device_id = ? ORDER BY id`), deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query network interfaces: %w", err)
	}
	defer rows.Close()

	out := []models.NetworkInterfaceEntry{}
	for rows.Next() {
		var e models.NetworkInterfaceEntry
		if err := rows.Scan(&e.InterfaceName, &e.MACAddress, &e.IPAddress, &e.Netmask,
			&e.Gateway, &e.DHCPEnabled, &e.Status); err != nil {
			return nil, fmt.Errorf("failed to scan network interface: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) deviceUsers(ctx context.Context, deviceID string) ([]models.LoggedUserEntry, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT username, domain, last_login
		FROM logged_users WHERE device_id = ? ORDER BY id`), deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query logged users: %w", err)
	}
	defer rows.Close()

	out := []models.LoggedUserEntry{}
	for rows.Next() {
		var e models.LoggedUserEntry
		var lastLogin sql.NullTime
		if err := rows.Scan(&e.Username, &e.Domain, &lastLogin); err != nil {
			return nil, fmt.Errorf("failed to scan logged user: %w", err)
		}
		e.LastLogin = TimePtr(lastLogin)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListSubmissions returns raw-log entries for a device, newest first.
func (s *Store) ListSubmissions(ctx context.Context, deviceID string, limit int) ([]models.RawSubmission, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, submission_id, device_id, hostname, source, payload_digest,
		       LENGTH(payload), received_at
		FROM raw_inventory
		WHERE device_id = ?
		ORDER BY received_at DESC, id DESC
		LIMIT ?`), deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	out := []models.RawSubmission{}
	for rows.Next() {
		var r models.RawSubmission
		var hostname sql.NullString
		if err := rows.Scan(&r.ID, &r.SubmissionID, &r.DeviceID, &hostname, &r.Source,
			&r.PayloadDigest, &r.PayloadSize, &r.ReceivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		r.Hostname = StringPtr(hostname)
		r.ReceivedAt = r.ReceivedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
