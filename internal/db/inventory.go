package db

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"ocsbridge/internal/models"
)

// Submission sources recorded in the raw log.
const (
	SourceOCS  = "ocs"
	SourceJSON = "json"
)

// StorageError reports a failed write. The transaction has already been
// rolled back when it is returned.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	if e.Err == nil {
		return "storage error: " + e.Op
	}
	return fmt.Sprintf("storage error: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// SaveResult describes a committed submission.
type SaveResult struct {
	DeviceID     string
	SubmissionID string
	Created      bool
	ReceivedAt   time.Time
}

// SaveInventory persists one submission atomically: the raw payload is
// appended to raw_inventory, the device row is upserted on device_id and
// every child collection is replaced by the submitted one.
func (s *Store) SaveInventory(ctx context.Context, rec *models.InventoryRecord, source string) (*SaveResult, error) {
	if rec == nil || rec.DeviceID == "" {
		return nil, &StorageError{Op: "validate", Err: errors.New("device_id is required")}
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, &StorageError{Op: "encode payload", Err: err}
	}
	sum := blake2b.Sum256(payload)

	res := &SaveResult{
		DeviceID:     rec.DeviceID,
		SubmissionID: uuid.NewString(),
		ReceivedAt:   time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &StorageError{Op: "begin", Err: err}
	}
	defer tx.Rollback()

	steps := []struct {
		op string
		fn func() error
	}{
		{"append raw inventory", func() error {
			return s.appendRaw(ctx, tx, res, rec, source, string(payload), hex.EncodeToString(sum[:]))
		}},
		{"upsert device", func() (err error) {
			res.Created, err = s.upsertDevice(ctx, tx, rec, res.ReceivedAt)
			return err
		}},
		{"replace software", func() error { return s.replaceSoftware(ctx, tx, rec) }},
		{"replace storage", func() error { return s.replaceStorage(ctx, tx, rec) }},
		{"replace network interfaces", func() error { return s.replaceNetworkInterfaces(ctx, tx, rec) }},
		{"replace logged users", func() error { return s.replaceLoggedUsers(ctx, tx, rec) }},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return nil, &StorageError{Op: step.op, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, &StorageError{Op: "commit", Err: err}
	}

	log.Printf("💾 Stored inventory for %s (submission %s, %d software, %d disks, %d interfaces, %d users)",
		rec.DeviceID, res.SubmissionID, len(rec.Software), len(rec.Storage),
		len(rec.NetworkInterfaces), len(rec.LoggedUsers))
	return res, nil
}

func (s *Store) appendRaw(ctx context.Context, tx *sql.Tx, res *SaveResult, rec *models.InventoryRecord, source, payload, digest string) error {
	_, err := tx.ExecContext(ctx, s.rebind(`
		INSERT INTO raw_inventory (submission_id, device_id, hostname, source, payload, payload_digest, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		res.SubmissionID, rec.DeviceID, NullString(rec.Hostname), source, payload, digest, res.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert raw inventory: %w", err)
	}
	return nil
}

func (s *Store) upsertDevice(ctx context.Context, tx *sql.Tx, rec *models.InventoryRecord, now time.Time) (bool, error) {
	known, err := s.exists(ctx, tx, "SELECT 1 FROM devices WHERE device_id = ?", rec.DeviceID)
	if err != nil {
		return false, fmt.Errorf("failed to look up device: %w", err)
	}

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO devices (
			device_id, hostname, ip_address, mac_address, os_name, os_version,
			os_architecture, manufacturer, model, serial_number, cpu_name,
			cpu_cores, ram_mb, first_seen, last_seen
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (device_id) DO UPDATE SET
			hostname        = excluded.hostname,
			ip_address      = excluded.ip_address,
			mac_address     = excluded.mac_address,
			os_name         = excluded.os_name,
			os_version      = excluded.os_version,
			os_architecture = excluded.os_architecture,
			manufacturer    = excluded.manufacturer,
			model           = excluded.model,
			serial_number   = excluded.serial_number,
			cpu_name        = excluded.cpu_name,
			cpu_cores       = excluded.cpu_cores,
			ram_mb          = excluded.ram_mb,
			last_seen       = excluded.last_seen`),
		rec.DeviceID, NullString(rec.Hostname), NullString(rec.IPAddress), NullString(rec.MACAddress),
		NullString(rec.OSName), NullString(rec.OSVersion), NullString(rec.OSArchitecture),
		NullString(rec.Manufacturer), NullString(rec.Model), NullString(rec.SerialNumber),
		NullString(rec.CPUName), rec.CPUCores, rec.RAMMB, now, now,
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert device: %w", err)
	}
	return !known, nil
}

func (s *Store) clearChildren(ctx context.Context, tx *sql.Tx, table, deviceID string) error {
	if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM "+table+" WHERE device_id = ?"), deviceID); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}
	return nil
}

func (s *Store) replaceSoftware(ctx context.Context, tx *sql.Tx, rec *models.InventoryRecord) error {
	if err := s.clearChildren(ctx, tx, "software", rec.DeviceID); err != nil {
		return err
	}
	query := s.rebind(`
		INSERT INTO software (device_id, name, version, publisher, install_date)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (device_id, name, version) DO NOTHING`)
	for _, sw := range rec.Software {
		if sw.Name == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, query,
			rec.DeviceID, sw.Name, sw.Version, sw.Publisher, NullString(installDate(sw.InstallDate)),
		); err != nil {
			return fmt.Errorf("failed to insert software %q: %w", sw.Name, err)
		}
	}
	return nil
}

// installDate drops placeholder values whichever path the record came from.
func installDate(d *string) *string {
	if d == nil {
		return nil
	}
	return models.NormalizeInstallDate(*d)
}

func (s *Store) replaceStorage(ctx context.Context, tx *sql.Tx, rec *models.InventoryRecord) error {
	if err := s.clearChildren(ctx, tx, "hardware_storage", rec.DeviceID); err != nil {
		return err
	}
	query := s.rebind(`
		INSERT INTO hardware_storage (device_id, disk_name, disk_type, capacity_gb, serial_number)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (device_id, disk_name) DO NOTHING`)
	for _, disk := range rec.Storage {
		if disk.DiskName == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, query,
			rec.DeviceID, disk.DiskName, disk.DiskType, disk.CapacityGB, disk.SerialNumber,
		); err != nil {
			return fmt.Errorf("failed to insert disk %q: %w", disk.DiskName, err)
		}
	}
	return nil
}

func (s *Store) replaceNetworkInterfaces(ctx context.Context, tx *sql.Tx, rec *models.InventoryRecord) error {
	if err := s.clearChildren(ctx, tx, "network_interfaces", rec.DeviceID); err != nil {
		return err
	}
	query := s.rebind(`
		INSERT INTO network_interfaces (device_id, interface_name, mac_address, ip_address, netmask, gateway, dhcp_enabled, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (device_id, interface_name) DO NOTHING`)
	for _, nic := range rec.NetworkInterfaces {
		if nic.InterfaceName == "" {
			continue
		}
		status := nic.Status
		if status == "" {
			status = "unknown"
		}
		if _, err := tx.ExecContext(ctx, query,
			rec.DeviceID, nic.InterfaceName, nic.MACAddress, nic.IPAddress,
			nic.Netmask, nic.Gateway, nic.DHCPEnabled, status,
		); err != nil {
			return fmt.Errorf("failed to insert interface %q: %w", nic.InterfaceName, err)
		}
	}
	return nil
}

func (s *Store) replaceLoggedUsers(ctx context.Context, tx *sql.Tx, rec *models.InventoryRecord) error {
	if err := s.clearChildren(ctx, tx, "logged_users", rec.DeviceID); err != nil {
		return err
	}
	query := s.rebind(`
		INSERT INTO logged_users (device_id, username, domain, last_login)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (device_id, username) DO NOTHING`)
	for _, u := range rec.LoggedUsers {
		if u.Username == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, query,
			rec.DeviceID, u.Username, u.Domain, NullTime(u.LastLogin),
		); err != nil {
			return fmt.Errorf("failed to insert user %q: %w", u.Username, err)
		}
	}
	return nil
}
