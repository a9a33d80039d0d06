package store

import (
	"context"

	"bfile/internal/models"
)

// DirectoryStore abstracts the append-only transfer directory.
type DirectoryStore interface {
	CreateTransfer(ctx context.Context, in TransferInput) (*models.Transfer, error)
	ListSenders(ctx context.Context, recipient string) ([]string, error)
	ListTransfersFrom(ctx context.Context, recipient, sender string) ([]models.Transfer, error)
	HasReceived(ctx context.Context, recipient string) (bool, error)
	EachTransfer(ctx context.Context, fn func(models.Transfer) error) error
	StoreInfo(ctx context.Context) (*StoreInfo, error)
}

// PinStore records blobs accepted by the pinning endpoint.
type PinStore interface {
	UpsertPin(ctx context.Context, pin models.Pin) (*models.Pin, error)
	GetPin(ctx context.Context, cid string) (*models.Pin, error)
}

var (
	_ DirectoryStore = (*Store)(nil)
	_ PinStore       = (*Store)(nil)
)
