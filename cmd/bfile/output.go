package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"bfile/internal/format"
	"bfile/internal/session"
	"bfile/internal/transfer"
)

var outputFormatter format.Formatter = format.JSONFormatter{}

func writeJSON(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

// recordView is the listing form of a received transfer. Keys stay out of
// listings; download uses them.
type recordView struct {
	Index          int    `json:"index"`
	Sender         string `json:"sender"`
	FileName       string `json:"file_name"`
	StorageAddress string `json:"storage_address"`
}

type inboxView struct {
	Account string       `json:"account"`
	Page    int          `json:"page"`
	Pages   int          `json:"pages"`
	Total   int          `json:"total"`
	Records []recordView `json:"records"`
}

type sendResult struct {
	session.Receipt
	FileName  string   `json:"file_name"`
	Key       []string `json:"key"`
	BlobBytes int      `json:"blob_bytes"`
	UploadMS  int64    `json:"upload_ms"`
}

type downloadResult struct {
	FileName string `json:"file_name"`
	Path     string `json:"path"`
	Sender   string `json:"sender"`
	Bytes    int    `json:"bytes"`
}

func newRecordView(index int, rec transfer.Record) recordView {
	return recordView{
		Index:          index,
		Sender:         transfer.ChecksumAddress(rec.Sender),
		FileName:       rec.FileName,
		StorageAddress: rec.StorageAddress,
	}
}

func writeInbox(view inboxView) error {
	if view.Total == 0 {
		return writePlain("No files received yet.\n")
	}
	for _, rec := range view.Records {
		if err := writePlain("%3d. %s  from %s\n", rec.Index, transfer.DisplayName(rec.FileName), rec.Sender); err != nil {
			return err
		}
	}
	return writePlain("page %d/%d (%d files)\n", view.Page, max(view.Pages, 1), view.Total)
}

func writeSendResult(res sendResult) error {
	lines := []string{
		fmt.Sprintf("sent %s to %s", res.FileName, transfer.ChecksumAddress(res.Recipient)),
		fmt.Sprintf("tx_hash: %s", res.TxHash),
		fmt.Sprintf("index: %d", res.Index),
		fmt.Sprintf("key: %s", strings.Join(res.Key, " ")),
		fmt.Sprintf("created_at: %s", formatTime(res.CreatedAt)),
		fmt.Sprintf("blob_bytes: %d", res.BlobBytes),
		fmt.Sprintf("upload_ms: %d", res.UploadMS),
	}
	for _, line := range lines {
		if err := writePlain("%s\n", line); err != nil {
			return err
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
