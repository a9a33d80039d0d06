package api

import "time"

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// InfoResponse describes the running service.
type InfoResponse struct {
	SchemaVersion  int    `json:"schema_version"`
	BlobBackend    string `json:"blob_backend"`
	TotalTransfers int64  `json:"total_transfers"`
	Senders        int64  `json:"senders"`
	Recipients     int64  `json:"recipients"`
	Pins           int64  `json:"pins"`
	PinnedBytes    int64  `json:"pinned_bytes"`
	GatewayURL     string `json:"gateway_url"`
	// BlobStore is present when requested with ?blobs=true and the
	// backend can enumerate its contents.
	BlobStore *BlobStoreStats `json:"blob_store,omitempty"`
}

// BlobStoreStats counts what the blob backend holds on disk, including
// blobs that no pin record refers to.
type BlobStoreStats struct {
	Blobs int64 `json:"blobs"`
	Bytes int64 `json:"bytes"`
}

// PinResponse is returned by the pinning endpoint.
type PinResponse struct {
	IpfsHash  string    `json:"IpfsHash"`
	PinSize   int64     `json:"PinSize"`
	Timestamp time.Time `json:"Timestamp"`
}

// TransferCreateRequest registers one record. The sender is taken from the
// X-Account header.
type TransferCreateRequest struct {
	Recipient      string    `json:"recipient"`
	StorageAddress string    `json:"storage_address"`
	Key            [4]string `json:"key"`
	FileName       string    `json:"file_name"`
}

// TransferReceipt confirms a registered record.
type TransferReceipt struct {
	TxHash    string    `json:"tx_hash"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Index     int       `json:"index"`
	CreatedAt time.Time `json:"created_at"`
}

type ReceivedResponse struct {
	Received bool `json:"received"`
}

type SendersResponse struct {
	Senders []string `json:"senders"`
}

// RecordFieldsResponse carries flat field groups terminated by one empty
// group.
type RecordFieldsResponse struct {
	Fields []string `json:"fields"`
}

// ExportRecord is one NDJSON line of an export.
type ExportRecord struct {
	TxHash         string    `json:"tx_hash"`
	Sender         string    `json:"sender"`
	Recipient      string    `json:"recipient"`
	Index          int       `json:"index"`
	StorageAddress string    `json:"storage_address"`
	Key            [4]string `json:"key"`
	FileName       string    `json:"file_name"`
	CreatedAt      time.Time `json:"created_at"`
}
