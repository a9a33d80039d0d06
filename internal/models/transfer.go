package models

import "time"

// Transfer is one directory entry: a blob address and its key, registered by
// Sender for Recipient. Entries are never updated or removed.
type Transfer struct {
	ID             int64     `json:"id"`
	TxHash         string    `json:"tx_hash"`
	Sender         string    `json:"sender"`
	Recipient      string    `json:"recipient"`
	Index          int       `json:"index"`
	StorageAddress string    `json:"storage_address"`
	KeyWords       [4]string `json:"key"`
	FileName       string    `json:"file_name"`
	CreatedAt      time.Time `json:"created_at"`
}
