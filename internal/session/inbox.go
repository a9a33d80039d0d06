package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"bfile/internal/transfer"
)

// PageSize is the number of records shown per inbox page.
const PageSize = 2

// PageInfo describes one page of the inbox.
type PageInfo struct {
	Page     int
	PageSize int
	Total    int
	Pages    int
}

// Artifact is a decrypted file ready to be saved.
type Artifact struct {
	Name string
	Data []byte
}

// InboxOptions configures an Inbox.
type InboxOptions struct {
	ChunkSize int
	Logger    *slog.Logger
}

// Inbox lists and downloads the transfers addressed to one account.
type Inbox struct {
	blobs   BlobStore
	dir     Directory
	decoder transfer.Decoder
	logger  *slog.Logger

	mu          sync.Mutex
	account     string
	records     []transfer.Record
	hasReceived bool
	loaded      bool
}

// NewInbox returns an empty inbox for account. Call Refresh to load it.
func NewInbox(account string, blobs BlobStore, dir Directory, opts InboxOptions) *Inbox {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{
		blobs:   blobs,
		dir:     dir,
		decoder: transfer.Decoder{ChunkSize: opts.ChunkSize},
		logger:  logger.With("component", "inbox"),
		account: transfer.NormalizeAddress(account),
		records: []transfer.Record{},
	}
}

// SetAccount switches the inbox to account and drops loaded records.
func (in *Inbox) SetAccount(account string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.account = transfer.NormalizeAddress(account)
	in.records = []transfer.Record{}
	in.hasReceived = false
	in.loaded = false
}

// Account returns the account this inbox belongs to.
func (in *Inbox) Account() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.account
}

// Refresh reloads every record sent to the account. Records are grouped by
// sender in first-seen sender order, each sender's records in registration
// order. A sender whose records cannot be read or parsed is logged and
// skipped.
func (in *Inbox) Refresh(ctx context.Context) error {
	account := in.Account()
	if account == "" {
		return &transfer.ValidationError{Field: "account", Err: errors.New("no account connected")}
	}

	received, err := in.dir.HasReceivedAnything(ctx, account)
	if err != nil {
		return err
	}
	records := []transfer.Record{}
	if received {
		senders, err := in.dir.ListSendersFor(ctx, account)
		if err != nil {
			return err
		}
		for _, sender := range senders {
			fields, err := in.dir.RecordsFrom(ctx, account, sender)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				in.logger.Warn("list records failed", "sender", sender, "error", err)
				continue
			}
			parsed, err := transfer.ParseFieldGroups(sender, fields)
			if err != nil {
				in.logger.Warn("parse records failed", "sender", sender, "error", err)
				continue
			}
			records = append(records, parsed...)
		}
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if in.account != account {
		// The account changed while loading; the result belongs to the old one.
		return nil
	}
	in.records = records
	in.hasReceived = received
	in.loaded = true
	in.logger.Debug("inbox refreshed", "account", account, "records", len(records))
	return nil
}

// HasReceived reports whether the last Refresh found any transfers.
func (in *Inbox) HasReceived() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.hasReceived
}

// Loaded reports whether Refresh has completed for the current account.
func (in *Inbox) Loaded() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.loaded
}

// Records returns a copy of every loaded record.
func (in *Inbox) Records() []transfer.Record {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]transfer.Record, len(in.records))
	copy(out, in.records)
	return out
}

// Page returns the records on page n, counting from 1. Pages past the end
// are empty.
func (in *Inbox) Page(n int) ([]transfer.Record, PageInfo) {
	in.mu.Lock()
	defer in.mu.Unlock()

	total := len(in.records)
	info := PageInfo{
		Page:     n,
		PageSize: PageSize,
		Total:    total,
		Pages:    (total + PageSize - 1) / PageSize,
	}
	if n < 1 {
		info.Page = 1
		n = 1
	}
	start := (n - 1) * PageSize
	if start >= total {
		return []transfer.Record{}, info
	}
	end := min(start+PageSize, total)
	out := make([]transfer.Record, end-start)
	copy(out, in.records[start:end])
	return out, info
}

// Download fetches the blob behind rec and decrypts it with the record's
// key.
func (in *Inbox) Download(ctx context.Context, rec transfer.Record) (Artifact, error) {
	if rec.StorageAddress == "" {
		return Artifact{}, &transfer.ValidationError{Field: "storage_address", Err: errors.New("must not be empty")}
	}
	blob, err := in.blobs.Get(ctx, rec.StorageAddress)
	if err != nil {
		var fetchErr *transfer.TransferFetchError
		if !errors.As(err, &fetchErr) {
			err = &transfer.TransferFetchError{Address: rec.StorageAddress, Err: err}
		}
		in.logger.Error("fetch blob failed", "address", rec.StorageAddress, "error", err)
		return Artifact{}, err
	}
	data, err := in.decoder.Decode(ctx, blob, rec.Key)
	if err != nil {
		in.logger.Error("decode blob failed", "address", rec.StorageAddress, "file", rec.FileName, "error", err)
		return Artifact{}, err
	}
	in.logger.Info("file downloaded", "file", rec.FileName, "sender", rec.Sender, "bytes", len(data))
	return Artifact{Name: rec.FileName, Data: data}, nil
}
