package store

import (
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"
)

// ErrSchemaTooNew is returned when the database was migrated by a newer
// build than the running one.
var ErrSchemaTooNew = errors.New("database schema is newer than this build supports")

// Migration represents a schema migration step.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// MigrationStatus reports the current and available migration versions.
type MigrationStatus struct {
	CurrentVersion   int             `json:"current_version"`
	AvailableVersion int             `json:"available_version"`
	Pending          []MigrationInfo `json:"pending"`
}

// MigrationInfo describes a single migration.
type MigrationInfo struct {
	Version     int    `json:"version"`
	Description string `json:"description"`
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema: transfers table and recipient indexes",
		SQL: `
CREATE TABLE IF NOT EXISTS transfers (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  tx_hash TEXT NOT NULL UNIQUE,
  sender TEXT NOT NULL,
  recipient TEXT NOT NULL,
  idx INTEGER NOT NULL,
  storage_address TEXT NOT NULL,
  key0 TEXT NOT NULL,
  key1 TEXT NOT NULL,
  key2 TEXT NOT NULL,
  key3 TEXT NOT NULL,
  file_name TEXT NOT NULL,
  created_at TEXT NOT NULL,
  UNIQUE(recipient, sender, idx)
);

CREATE INDEX IF NOT EXISTS idx_transfers_recipient_id ON transfers(recipient, id);
CREATE INDEX IF NOT EXISTS idx_transfers_sender ON transfers(sender);
`,
	},
	{
		Version:     2,
		Description: "pins table for blobs stored through the pinning endpoint",
		SQL: `
CREATE TABLE IF NOT EXISTS pins (
  cid TEXT PRIMARY KEY,
  sha256 TEXT NOT NULL,
  size_bytes INTEGER NOT NULL,
  name TEXT,
  storage_backend TEXT NOT NULL,
  created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pins_created_at ON pins(created_at);
`,
	},
}

// orderedMigrations returns migrations sorted by version.
func orderedMigrations() []Migration {
	ordered := slices.Clone(migrations)
	slices.SortFunc(ordered, func(a, b Migration) int { return a.Version - b.Version })
	return ordered
}

func latestVersion() int {
	ordered := orderedMigrations()
	if len(ordered) == 0 {
		return 0
	}
	return ordered[len(ordered)-1].Version
}

// pendingMigrations lists the steps above current, lowest first.
func pendingMigrations(current int) []Migration {
	var pending []Migration
	for _, m := range orderedMigrations() {
		if m.Version > current {
			pending = append(pending, m)
		}
	}
	return pending
}

func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at TEXT NOT NULL
)`)
	return err
}

// currentVersion returns the highest applied version. A database without a
// schema_migrations table is at version 0.
func currentVersion(db *sql.DB) (int, error) {
	var tables int
	if err := db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_migrations'",
	).Scan(&tables); err != nil {
		return 0, err
	}
	if tables == 0 {
		return 0, nil
	}

	var version int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

// runMigrations brings db up to the latest version. Each step commits on
// its own so a failure leaves earlier steps applied.
func runMigrations(db *sql.DB) error {
	if err := ensureMigrationsTable(db); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	current, err := currentVersion(db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if latest := latestVersion(); current > latest {
		return fmt.Errorf("%w: database is at version %d, latest known is %d", ErrSchemaTooNew, current, latest)
	}

	for _, m := range pendingMigrations(current) {
		if err := applyMigration(db, m); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(db *sql.DB, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(m.SQL); err != nil {
		return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		m.Version, formatTime(time.Now().UTC()),
	); err != nil {
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}
	return nil
}

// MigrationPlan inspects db and reports what runMigrations would apply.
// It does not write to the database.
func MigrationPlan(db *sql.DB) (*MigrationStatus, error) {
	current, err := currentVersion(db)
	if err != nil {
		return nil, err
	}

	status := &MigrationStatus{
		CurrentVersion:   current,
		AvailableVersion: latestVersion(),
	}
	for _, m := range pendingMigrations(current) {
		status.Pending = append(status.Pending, MigrationInfo{Version: m.Version, Description: m.Description})
	}
	return status, nil
}
