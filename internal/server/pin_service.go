package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"bfile/internal/api"
	"bfile/internal/blobstore"
	"bfile/internal/models"
	"bfile/internal/store"
)

// PinService stores uploaded blobs and records them in the pin ledger.
type PinService struct {
	blobs   blobstore.BlobStore
	pins    store.PinStore
	backend string
}

// NewPinService constructs a PinService.
func NewPinService(blobs blobstore.BlobStore, pins store.PinStore, backend string) *PinService {
	if backend == "" {
		backend = string(models.BackendLocalCAS)
	}
	return &PinService{blobs: blobs, pins: pins, backend: backend}
}

// Backend names the blob backend in use.
func (s *PinService) Backend() string {
	if s == nil {
		return ""
	}
	return s.backend
}

// Pin stores r and returns its content id. Pinning identical bytes twice
// yields the same id.
func (s *PinService) Pin(ctx context.Context, name string, r io.Reader) (api.PinResponse, error) {
	var resp api.PinResponse
	if s == nil || s.blobs == nil {
		return resp, blobFailure(fmt.Errorf("blob store is not configured"))
	}

	result, err := s.blobs.Put(ctx, r)
	if err != nil {
		return resp, classifyBlobError(err)
	}

	pin, err := s.pins.UpsertPin(ctx, models.Pin{
		CID:            result.CID,
		SHA256:         result.SHA256,
		SizeBytes:      result.SizeBytes,
		Name:           strings.TrimSpace(name),
		StorageBackend: s.backend,
	})
	if err != nil {
		return resp, storeFailure(err)
	}

	return api.PinResponse{
		IpfsHash:  pin.CID,
		PinSize:   pin.SizeBytes,
		Timestamp: pin.CreatedAt,
	}, nil
}

// Open returns the blob for id along with its size when known.
func (s *PinService) Open(ctx context.Context, id string) (io.ReadCloser, int64, error) {
	if s == nil || s.blobs == nil {
		return nil, 0, blobFailure(fmt.Errorf("blob store is not configured"))
	}
	canonical, err := blobstore.CanonicalCID(id)
	if err != nil {
		return nil, 0, badRequestCode(err, ErrCodeInvalidCID)
	}

	rc, err := s.blobs.Open(ctx, canonical)
	if err != nil {
		return nil, 0, classifyBlobError(err)
	}

	size := int64(-1)
	if pin, err := s.pins.GetPin(ctx, canonical); err == nil && pin != nil {
		size = pin.SizeBytes
	}
	return rc, size, nil
}

// Stats reports blob store contents when the backend supports it.
func (s *PinService) Stats(ctx context.Context) (blobstore.Stats, bool, error) {
	if s == nil || s.blobs == nil {
		return blobstore.Stats{}, false, nil
	}
	provider, ok := s.blobs.(blobstore.StatsProvider)
	if !ok {
		return blobstore.Stats{}, false, nil
	}
	stats, err := provider.Stats(ctx)
	return stats, true, err
}

func classifyBlobError(err error) error {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.Is(err, blobstore.ErrNotFound):
		return notFoundCode(err, ErrCodeBlobNotFound)
	case errors.Is(err, blobstore.ErrTooLarge):
		return tooLarge(err)
	case errors.Is(err, blobstore.ErrInsufficientSpace):
		return insufficientStorage(err)
	case errors.As(err, &maxBytesErr):
		return tooLarge(fmt.Errorf("%w: limit is %d bytes", blobstore.ErrTooLarge, maxBytesErr.Limit))
	default:
		return blobFailure(err)
	}
}
