package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"

	"bfile/internal/models"
)

// TransferInput is a validated directory write.
type TransferInput struct {
	Sender         string
	Recipient      string
	StorageAddress string
	KeyWords       [4]string
	FileName       string
	CreatedAt      time.Time
}

// StoreInfo summarizes directory contents.
type StoreInfo struct {
	SchemaVersion  int   `json:"schema_version"`
	TotalTransfers int64 `json:"total_transfers"`
	Senders        int64 `json:"senders"`
	Recipients     int64 `json:"recipients"`
	Pins           int64 `json:"pins"`
	PinnedBytes    int64 `json:"pinned_bytes"`
}

const transferColumns = "id, tx_hash, sender, recipient, idx, storage_address, key0, key1, key2, key3, file_name, created_at"

// CreateTransfer appends a record for (recipient, sender). Index counts the
// records this sender has registered for this recipient, starting at 0.
func (s *Store) CreateTransfer(ctx context.Context, in TransferInput) (*models.Transfer, error) {
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var index int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transfers WHERE recipient = ? AND sender = ?",
		in.Recipient, in.Sender,
	).Scan(&index); err != nil {
		return nil, fmt.Errorf("count transfers: %w", err)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(id), 0) + 1 FROM transfers").Scan(&seq); err != nil {
		return nil, fmt.Errorf("next transfer id: %w", err)
	}
	txHash := transferHash(in, index, seq)

	res, err := tx.ExecContext(ctx,
		`INSERT INTO transfers (tx_hash, sender, recipient, idx, storage_address, key0, key1, key2, key3, file_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txHash, in.Sender, in.Recipient, index, in.StorageAddress,
		in.KeyWords[0], in.KeyWords[1], in.KeyWords[2], in.KeyWords[3],
		in.FileName, formatTime(in.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert transfer: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &models.Transfer{
		ID:             id,
		TxHash:         txHash,
		Sender:         in.Sender,
		Recipient:      in.Recipient,
		Index:          index,
		StorageAddress: in.StorageAddress,
		KeyWords:       in.KeyWords,
		FileName:       in.FileName,
		CreatedAt:      in.CreatedAt.UTC(),
	}, nil
}

// ListSenders returns the distinct senders that registered anything for
// recipient, in the order they first did so.
func (s *Store) ListSenders(ctx context.Context, recipient string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT sender FROM transfers WHERE recipient = ? GROUP BY sender ORDER BY MIN(id)",
		recipient,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	senders := []string{}
	for rows.Next() {
		var sender string
		if err := rows.Scan(&sender); err != nil {
			return nil, err
		}
		senders = append(senders, sender)
	}
	return senders, rows.Err()
}

// ListTransfersFrom returns the records sender registered for recipient in
// registration order.
func (s *Store) ListTransfersFrom(ctx context.Context, recipient, sender string) ([]models.Transfer, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+transferColumns+" FROM transfers WHERE recipient = ? AND sender = ? ORDER BY idx",
		recipient, sender,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Transfer{}
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// HasReceived reports whether recipient has at least one record.
func (s *Store) HasReceived(ctx context.Context, recipient string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM transfers WHERE recipient = ? LIMIT 1", recipient).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// EachTransfer calls fn for every record in id order, stopping at the first
// error.
func (s *Store) EachTransfer(ctx context.Context, fn func(models.Transfer) error) error {
	rows, err := s.db.QueryContext(ctx, "SELECT "+transferColumns+" FROM transfers ORDER BY id")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return err
		}
		if err := fn(t); err != nil {
			return err
		}
	}
	return rows.Err()
}

// StoreInfo returns counts and the schema version.
func (s *Store) StoreInfo(ctx context.Context) (*StoreInfo, error) {
	info := &StoreInfo{}
	version, err := currentVersion(s.db)
	if err != nil {
		return nil, err
	}
	info.SchemaVersion = version

	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT sender), COUNT(DISTINCT recipient) FROM transfers",
	).Scan(&info.TotalTransfers, &info.Senders, &info.Recipients); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM pins",
	).Scan(&info.Pins, &info.PinnedBytes); err != nil {
		return nil, err
	}
	return info, nil
}

func scanTransfer(scanner interface{ Scan(...any) error }) (models.Transfer, error) {
	var (
		t         models.Transfer
		createdAt string
	)
	if err := scanner.Scan(
		&t.ID, &t.TxHash, &t.Sender, &t.Recipient, &t.Index, &t.StorageAddress,
		&t.KeyWords[0], &t.KeyWords[1], &t.KeyWords[2], &t.KeyWords[3],
		&t.FileName, &createdAt,
	); err != nil {
		return models.Transfer{}, err
	}
	parsed, err := parseTime(createdAt)
	if err != nil {
		return models.Transfer{}, fmt.Errorf("parse created_at for transfer %d: %w", t.ID, err)
	}
	t.CreatedAt = parsed
	return t, nil
}

// transferHash derives a stable receipt id from the record contents and its
// position in the directory.
func transferHash(in TransferInput, index int, seq int64) string {
	h := sha3.NewLegacyKeccak256()
	parts := []string{
		in.Sender,
		in.Recipient,
		in.StorageAddress,
		strings.Join(in.KeyWords[:], ","),
		in.FileName,
		strconv.Itoa(index),
		strconv.FormatInt(seq, 10),
		strconv.FormatInt(in.CreatedAt.UnixNano(), 10),
	}
	h.Write([]byte(strings.Join(parts, "\x00")))
	return "0x" + hex.EncodeToString(h.Sum(nil))
}
