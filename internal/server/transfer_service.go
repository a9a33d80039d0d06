package server

import (
	"context"
	"fmt"
	"strings"

	"bfile/internal/api"
	"bfile/internal/store"
	"bfile/internal/transfer"
)

// TransferService centralizes directory validation on top of the store.
type TransferService struct {
	store store.DirectoryStore
}

// NewTransferService constructs a TransferService.
func NewTransferService(st store.DirectoryStore) *TransferService {
	return &TransferService{store: st}
}

// Register appends a record from sender. Records are immutable once
// registered.
func (s *TransferService) Register(ctx context.Context, sender string, req api.TransferCreateRequest) (api.TransferReceipt, error) {
	var resp api.TransferReceipt

	from, err := normalizeAccount("sender", sender)
	if err != nil {
		return resp, err
	}
	to, err := normalizeAccount("recipient", req.Recipient)
	if err != nil {
		return resp, err
	}
	if from == to {
		return resp, badRequestCode(fmt.Errorf("cannot send a file to yourself"), ErrCodeSelfTransfer)
	}
	address, err := validateStorageAddress(req.StorageAddress)
	if err != nil {
		return resp, err
	}
	if err := validateKeyWords(req.Key); err != nil {
		return resp, err
	}
	name, err := validateFileName(req.FileName)
	if err != nil {
		return resp, err
	}

	var words [4]string
	for i, word := range req.Key {
		words[i] = strings.TrimSpace(word)
	}

	created, err := s.store.CreateTransfer(ctx, store.TransferInput{
		Sender:         from,
		Recipient:      to,
		StorageAddress: address,
		KeyWords:       words,
		FileName:       name,
	})
	if err != nil {
		if isUniqueConstraint(err) {
			return resp, conflict(fmt.Errorf("concurrent registration, retry"))
		}
		return resp, storeFailure(err)
	}

	return api.TransferReceipt{
		TxHash:    created.TxHash,
		Sender:    created.Sender,
		Recipient: created.Recipient,
		Index:     created.Index,
		CreatedAt: created.CreatedAt,
	}, nil
}

// Received reports whether account has any record.
func (s *TransferService) Received(ctx context.Context, account string) (bool, error) {
	ok, err := s.store.HasReceived(ctx, account)
	if err != nil {
		return false, storeFailure(err)
	}
	return ok, nil
}

// Senders lists who has sent to account, in first-seen order.
func (s *TransferService) Senders(ctx context.Context, account string) ([]string, error) {
	senders, err := s.store.ListSenders(ctx, account)
	if err != nil {
		return nil, storeFailure(err)
	}
	return senders, nil
}

// RecordFields renders the records sender registered for account as flat
// field groups closed by a sentinel group.
func (s *TransferService) RecordFields(ctx context.Context, account, sender string) ([]string, error) {
	rows, err := s.store.ListTransfersFrom(ctx, account, sender)
	if err != nil {
		return nil, storeFailure(err)
	}
	records := make([]transfer.Record, 0, len(rows))
	for _, row := range rows {
		key, err := transfer.ParseKeyWords(row.KeyWords[:])
		if err != nil {
			return nil, storeFailure(fmt.Errorf("transfer %d: %w", row.ID, err))
		}
		records = append(records, transfer.Record{
			Sender:         row.Sender,
			StorageAddress: row.StorageAddress,
			Key:            key,
			FileName:       row.FileName,
		})
	}
	return transfer.FlattenRecords(records), nil
}
