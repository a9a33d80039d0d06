// Package remote adapts the bfile HTTP API to the blob store and directory
// interfaces the session layer works against.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"bfile/internal/api"
	"bfile/internal/session"
	"bfile/internal/transfer"
)

// Blobs stores encrypted blobs through the pinning endpoint and reads them
// back through the gateway.
type Blobs struct {
	client  *api.Client
	gateway string
}

// NewBlobs returns a blob store backed by client. Stored addresses are
// prefixed with gatewayURL, or the client's base URL when it is empty.
func NewBlobs(client *api.Client, gatewayURL string) *Blobs {
	gateway := strings.TrimRight(strings.TrimSpace(gatewayURL), "/")
	if gateway == "" {
		gateway = client.BaseURL()
	}
	return &Blobs{client: client, gateway: gateway}
}

// Put uploads r and returns the gateway URL of the stored blob.
func (b *Blobs) Put(ctx context.Context, name string, r io.Reader, size int64) (string, error) {
	resp, err := b.client.PinFile(ctx, name, r)
	if err != nil {
		return "", &transfer.TransferUploadError{Status: api.StatusOf(err), Err: err}
	}
	if resp.IpfsHash == "" {
		return "", &transfer.TransferUploadError{Err: errors.New("pinning service returned no content id")}
	}
	if size >= 0 && resp.PinSize != size {
		return "", &transfer.TransferUploadError{Err: fmt.Errorf("stored %d bytes, sent %d", resp.PinSize, size)}
	}
	return b.gateway + "/ipfs/" + resp.IpfsHash, nil
}

// Get downloads the blob at address, a gateway URL or a bare content id.
func (b *Blobs) Get(ctx context.Context, address string) ([]byte, error) {
	data, err := b.client.FetchBlob(ctx, address)
	if err != nil {
		return nil, &transfer.TransferFetchError{Address: address, Status: api.StatusOf(err), Err: err}
	}
	return data, nil
}

// Directory reads and appends transfer records through the API.
type Directory struct {
	client *api.Client
}

// NewDirectory returns a directory backed by client.
func NewDirectory(client *api.Client) *Directory {
	return &Directory{client: client}
}

// Register appends a record. A refusal by the server is reported as a
// rejected register error; transport failures are not.
func (d *Directory) Register(ctx context.Context, sender, recipient, address string, key transfer.Key, fileName string) (session.Receipt, error) {
	receipt, err := d.client.RegisterTransfer(ctx, sender, api.TransferCreateRequest{
		Recipient:      recipient,
		StorageAddress: address,
		Key:            key.Words(),
		FileName:       fileName,
	})
	if err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) && apiErr.IsClientError() {
			return session.Receipt{}, &transfer.TransferRegisterError{
				Reason: apiErr.Code,
				Err:    fmt.Errorf("%w: %w", transfer.ErrRejected, err),
			}
		}
		return session.Receipt{}, &transfer.TransferRegisterError{Err: err}
	}
	return session.Receipt{
		TxHash:    receipt.TxHash,
		Sender:    receipt.Sender,
		Recipient: receipt.Recipient,
		Index:     receipt.Index,
		CreatedAt: receipt.CreatedAt,
	}, nil
}

func (d *Directory) ListSendersFor(ctx context.Context, account string) ([]string, error) {
	senders, err := d.client.ListSenders(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("list senders for %s: %w", account, err)
	}
	return senders, nil
}

func (d *Directory) RecordsFrom(ctx context.Context, account, sender string) ([]string, error) {
	fields, err := d.client.RecordsFrom(ctx, account, sender)
	if err != nil {
		return nil, fmt.Errorf("records from %s: %w", sender, err)
	}
	return fields, nil
}

func (d *Directory) HasReceivedAnything(ctx context.Context, account string) (bool, error) {
	ok, err := d.client.HasReceived(ctx, account)
	if err != nil {
		return false, fmt.Errorf("check inbox of %s: %w", account, err)
	}
	return ok, nil
}

var (
	_ session.BlobStore = (*Blobs)(nil)
	_ session.Directory = (*Directory)(nil)
)
