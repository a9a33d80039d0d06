package blobstore

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotFound is returned when no blob exists for a CID.
	ErrNotFound = errors.New("blob not found")
	// ErrInsufficientSpace is returned when a write would leave the volume
	// below its configured free-space floor.
	ErrInsufficientSpace = errors.New("insufficient free space")
	// ErrTooLarge is returned when a blob exceeds the store's size limit.
	ErrTooLarge = errors.New("blob too large")
)

// PutResult describes one persisted blob payload.
type PutResult struct {
	CID       string
	SHA256    string
	SizeBytes int64
}

// BlobStore is the byte-storage abstraction behind the pinning endpoints.
// Blobs are addressed by CIDv1 (raw codec, sha2-256).
type BlobStore interface {
	Put(ctx context.Context, r io.Reader) (PutResult, error)
	Open(ctx context.Context, cid string) (io.ReadCloser, error)
	Has(ctx context.Context, cid string) (bool, error)
	Delete(ctx context.Context, cid string) error
	Close() error
}

// Stats summarizes store contents.
type Stats struct {
	Backend string
	Blobs   int64
	Bytes   int64
}

// StatsProvider is implemented by stores that can report their contents.
type StatsProvider interface {
	Stats(ctx context.Context) (Stats, error)
}
