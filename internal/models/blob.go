package models

import "time"

// Pin is one stored blob as recorded by the pinning endpoint. Re-uploading
// identical bytes refreshes the existing pin instead of adding a new one.
type Pin struct {
	CID            string    `json:"cid"`
	SHA256         string    `json:"sha256"`
	SizeBytes      int64     `json:"size_bytes"`
	Name           string    `json:"name,omitempty"`
	StorageBackend string    `json:"storage_backend"`
	CreatedAt      time.Time `json:"created_at"`
}
