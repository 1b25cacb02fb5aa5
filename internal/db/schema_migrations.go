package db

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
)

type statement struct {
	label string
	sql   string
}

// createSchema creates every table and index idempotently. Column types are
// written for SQLite and translated for PostgreSQL.
func createSchema(db *sql.DB, dialect Dialect) error {
	log.Printf("📊 Ensuring inventory schema (%s)", dialect)

	for _, s := range schemaStatements {
		query := s.sql
		if dialect == Postgres {
			query = postgresTypes.Replace(query)
		}
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("migration failed at [%s]: %w", s.label, err)
		}
		log.Printf("  ✓ %s", s.label)
	}
	return nil
}

var postgresTypes = strings.NewReplacer(
	"INTEGER PRIMARY KEY AUTOINCREMENT", "BIGSERIAL PRIMARY KEY",
	"DATETIME", "TIMESTAMPTZ",
	"INTEGER", "BIGINT",
)

// One statement per entry; the pgx driver runs each through the simple
// protocol only when it holds a single command.
var schemaStatements = []statement{
	// ─── raw_inventory ───────────────────────────────────────────────────
	{"raw_inventory", `
		CREATE TABLE IF NOT EXISTS raw_inventory (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			submission_id  TEXT     NOT NULL UNIQUE,
			device_id      TEXT     NOT NULL,
			hostname       TEXT,
			source         TEXT     NOT NULL,
			payload        TEXT     NOT NULL,
			payload_digest TEXT     NOT NULL,
			received_at    DATETIME NOT NULL
		)`},
	{"raw_inventory device index", `
		CREATE INDEX IF NOT EXISTS idx_raw_inventory_device
			ON raw_inventory(device_id, received_at)`},

	// ─── devices ─────────────────────────────────────────────────────────
	{"devices", `
		CREATE TABLE IF NOT EXISTS devices (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id       TEXT     NOT NULL UNIQUE,
			hostname        TEXT,
			ip_address      TEXT,
			mac_address     TEXT,
			os_name         TEXT,
			os_version      TEXT,
			os_architecture TEXT,
			manufacturer    TEXT,
			model           TEXT,
			serial_number   TEXT,
			cpu_name        TEXT,
			cpu_cores       INTEGER  NOT NULL DEFAULT 0,
			ram_mb          INTEGER  NOT NULL DEFAULT 0,
			first_seen      DATETIME NOT NULL,
			last_seen       DATETIME NOT NULL
		)`},
	{"devices last_seen index", `
		CREATE INDEX IF NOT EXISTS idx_devices_last_seen ON devices(last_seen)`},

	// ─── children ────────────────────────────────────────────────────────
	{"software", `
		CREATE TABLE IF NOT EXISTS software (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id    TEXT NOT NULL REFERENCES devices(device_id) ON DELETE CASCADE,
			name         TEXT NOT NULL,
			version      TEXT NOT NULL DEFAULT '',
			publisher    TEXT NOT NULL DEFAULT '',
			install_date TEXT,
			UNIQUE (device_id, name, version)
		)`},
	{"hardware_storage", `
		CREATE TABLE IF NOT EXISTS hardware_storage (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id     TEXT    NOT NULL REFERENCES devices(device_id) ON DELETE CASCADE,
			disk_name     TEXT    NOT NULL,
			disk_type     TEXT    NOT NULL DEFAULT '',
			capacity_gb   INTEGER NOT NULL DEFAULT 0,
			serial_number TEXT    NOT NULL DEFAULT '',
			UNIQUE (device_id, disk_name)
		)`},
	{"network_interfaces", `
		CREATE TABLE IF NOT EXISTS network_interfaces (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id      TEXT    NOT NULL REFERENCES devices(device_id) ON DELETE CASCADE,
			interface_name TEXT    NOT NULL,
			mac_address    TEXT    NOT NULL DEFAULT '',
			ip_address     TEXT    NOT NULL DEFAULT '',
			netmask        TEXT    NOT NULL DEFAULT '',
			gateway        TEXT    NOT NULL DEFAULT '',
			dhcp_enabled   BOOLEAN NOT NULL DEFAULT FALSE,
			status         TEXT    NOT NULL DEFAULT 'unknown',
			UNIQUE (device_id, interface_name)
		)`},
	{"logged_users", `
		CREATE TABLE IF NOT EXISTS logged_users (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id  TEXT NOT NULL REFERENCES devices(device_id) ON DELETE CASCADE,
			username   TEXT NOT NULL,
			domain     TEXT NOT NULL DEFAULT '',
			last_login DATETIME,
			UNIQUE (device_id, username)
		)`},
}
