package models

import (
	"fmt"
	"strings"
)

// BlobBackend names a blob storage implementation.
type BlobBackend string

const (
	BackendLocalCAS BlobBackend = "local_cas"
	BackendBadger   BlobBackend = "badger"
)

// MaxFileNameLength bounds registered file names.
const MaxFileNameLength = 1024

var validBlobBackends = map[BlobBackend]struct{}{
	BackendLocalCAS: {},
	BackendBadger:   {},
}

func IsValidBlobBackend(backend BlobBackend) bool {
	_, ok := validBlobBackends[backend]
	return ok
}

// ParseBlobBackend normalizes raw; empty selects the filesystem backend.
func ParseBlobBackend(raw string) (BlobBackend, error) {
	value := BlobBackend(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return BackendLocalCAS, nil
	}
	if !IsValidBlobBackend(value) {
		return "", fmt.Errorf("invalid blob backend: %s", value)
	}
	return value, nil
}

// BlobBackendStrings returns every supported backend name.
func BlobBackendStrings() []string {
	return []string{string(BackendLocalCAS), string(BackendBadger)}
}
