// Package session drives the send and receive paths of a transfer on behalf
// of one account: encode, upload, register on the way out; list, fetch and
// decode on the way in.
package session

import (
	"context"
	"io"
	"time"

	"bfile/internal/transfer"
)

// BlobStore is content-addressed storage for encrypted blobs.
type BlobStore interface {
	// Put stores r and returns an address that Get accepts later.
	Put(ctx context.Context, name string, r io.Reader, size int64) (string, error)
	Get(ctx context.Context, address string) ([]byte, error)
}

// Directory is the append-only ledger of transfer records per recipient.
type Directory interface {
	Register(ctx context.Context, sender, recipient, address string, key transfer.Key, fileName string) (Receipt, error)
	ListSendersFor(ctx context.Context, account string) ([]string, error)
	// RecordsFrom returns the flat, sentinel-terminated field groups that
	// sender has registered for account.
	RecordsFrom(ctx context.Context, account, sender string) ([]string, error)
	HasReceivedAnything(ctx context.Context, account string) (bool, error)
}

// Receipt confirms a registered transfer. Once issued, the transfer cannot
// be cancelled or retracted.
type Receipt struct {
	TxHash    string    `json:"tx_hash"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Index     int       `json:"index"`
	CreatedAt time.Time `json:"created_at"`
}
