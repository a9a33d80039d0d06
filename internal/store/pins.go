package store

import (
	"context"
	"database/sql"
	"time"

	"bfile/internal/models"
)

// UpsertPin records pin, keeping the original created_at when the blob was
// already pinned. The stored row is returned.
func (s *Store) UpsertPin(ctx context.Context, pin models.Pin) (*models.Pin, error) {
	if pin.CreatedAt.IsZero() {
		pin.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pins (cid, sha256, size_bytes, name, storage_backend, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(cid) DO UPDATE SET name = COALESCE(excluded.name, pins.name)`,
		pin.CID, pin.SHA256, pin.SizeBytes, nullIfEmpty(pin.Name), pin.StorageBackend, formatTime(pin.CreatedAt),
	)
	if err != nil {
		return nil, err
	}
	return s.GetPin(ctx, pin.CID)
}

// GetPin returns the pin for cid, or nil when none exists.
func (s *Store) GetPin(ctx context.Context, cid string) (*models.Pin, error) {
	var (
		pin       models.Pin
		name      sql.NullString
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT cid, sha256, size_bytes, name, storage_backend, created_at FROM pins WHERE cid = ?",
		cid,
	).Scan(&pin.CID, &pin.SHA256, &pin.SizeBytes, &name, &pin.StorageBackend, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	pin.Name = name.String
	parsed, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	pin.CreatedAt = parsed
	return &pin, nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
