package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"bfile/internal/transfer"
)

const (
	alice = "0x00000000000000000000000000000000000000a1"
	bob   = "0x00000000000000000000000000000000000000b2"
	carol = "0x00000000000000000000000000000000000000c3"
)

type fakeBlobs struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	puts    int
	gets    int
	putErr  error
	getErr  error
	started chan struct{}
	release chan struct{}
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{blobs: map[string][]byte{}}
}

func (f *fakeBlobs) Put(ctx context.Context, name string, r io.Reader, size int64) (string, error) {
	f.mu.Lock()
	f.puts++
	putErr, started, release := f.putErr, f.started, f.release
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if putErr != nil {
		return "", putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if int64(len(data)) != size {
		return "", fmt.Errorf("size mismatch: got %d want %d", len(data), size)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	address := fmt.Sprintf("http://gw.test/ipfs/blob-%d", len(f.blobs)+1)
	f.blobs[address] = data
	return address, nil
}

func (f *fakeBlobs) Get(_ context.Context, address string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.blobs[address]
	if !ok {
		return nil, &transfer.TransferFetchError{Address: address, Status: 404, Err: errors.New("not found")}
	}
	return bytes.Clone(data), nil
}

func (f *fakeBlobs) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts
}

type fakeDirectory struct {
	mu          sync.Mutex
	records     map[string]map[string][]transfer.Record
	senders     map[string][]string
	registers   int
	registerErr error
	recordsErr  map[string]error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		records:    map[string]map[string][]transfer.Record{},
		senders:    map[string][]string{},
		recordsErr: map[string]error{},
	}
}

func (f *fakeDirectory) Register(_ context.Context, sender, recipient, address string, key transfer.Key, fileName string) (Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registers++
	if f.registerErr != nil {
		return Receipt{}, f.registerErr
	}
	bySender, ok := f.records[recipient]
	if !ok {
		bySender = map[string][]transfer.Record{}
		f.records[recipient] = bySender
	}
	if _, seen := bySender[sender]; !seen {
		f.senders[recipient] = append(f.senders[recipient], sender)
	}
	bySender[sender] = append(bySender[sender], transfer.Record{
		Sender: sender, StorageAddress: address, Key: key, FileName: fileName,
	})
	return Receipt{
		TxHash:    fmt.Sprintf("0x%064x", f.registers),
		Sender:    sender,
		Recipient: recipient,
		Index:     len(bySender[sender]) - 1,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (f *fakeDirectory) ListSendersFor(_ context.Context, account string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.senders[account]...), nil
}

func (f *fakeDirectory) RecordsFrom(_ context.Context, account, sender string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.recordsErr[sender]; err != nil {
		return nil, err
	}
	return transfer.FlattenRecords(f.records[account][sender]), nil
}

func (f *fakeDirectory) HasReceivedAnything(_ context.Context, account string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.senders[account]) > 0, nil
}

func (f *fakeDirectory) registerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registers
}
