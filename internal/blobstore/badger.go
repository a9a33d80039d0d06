package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const (
	// BackendBadger names the embedded key-value backend.
	BackendBadger = "badger"

	// Parts stay below badger's default value threshold (1 MiB). Larger
	// values go to the value log, which an in-memory database does not have.
	badgerPartSize   = 512 << 10
	badgerMetaPrefix = "meta/"
	badgerPartPrefix = "part/"
)

// BadgerStore keeps blobs in an embedded badger database, split into
// fixed-size parts under the blob digest.
type BadgerStore struct {
	db     *badger.DB
	tmpDir string
	opts   LocalCASOptions
}

// NewBadgerStore opens (or creates) a badger database at dir. An empty dir
// opens an in-memory database.
func NewBadgerStore(dir string, opts LocalCASOptions) (*BadgerStore, error) {
	dir = strings.TrimSpace(dir)
	var bopts badger.Options
	if dir == "" {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		bopts = badger.DefaultOptions(dir)
		bopts.ValueLogFileSize = 1024 * 1024 * 100
	}
	bopts.Logger = nil
	bopts.SyncWrites = false

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db, tmpDir: os.TempDir(), opts: opts}, nil
}

// Put spools r to a temporary file while hashing it, then writes the parts
// and the size record in one batch.
func (b *BadgerStore) Put(ctx context.Context, r io.Reader) (PutResult, error) {
	var zero PutResult
	if r == nil {
		return zero, fmt.Errorf("reader is required")
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	spool, err := os.CreateTemp(b.tmpDir, "bfile-badger-*")
	if err != nil {
		return zero, err
	}
	defer func() {
		_ = spool.Close()
		_ = os.Remove(spool.Name())
	}()

	src := r
	if b.opts.MaxBlobBytes > 0 {
		src = io.LimitReader(r, b.opts.MaxBlobBytes+1)
	}
	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(spool, h), &ctxReader{ctx: ctx, r: src})
	if err != nil {
		return zero, err
	}
	if b.opts.MaxBlobBytes > 0 && n > b.opts.MaxBlobBytes {
		return zero, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, b.opts.MaxBlobBytes)
	}

	sum := h.Sum(nil)
	id, err := CIDFromDigest(sum)
	if err != nil {
		return zero, err
	}
	digest := hex.EncodeToString(sum)
	result := PutResult{CID: id, SHA256: digest, SizeBytes: n}

	exists, err := b.hasDigest(digest)
	if err != nil {
		return zero, err
	}
	if exists {
		return result, nil
	}

	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return zero, err
	}
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for part := 0; ; part++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		buf := make([]byte, badgerPartSize)
		read, err := io.ReadFull(spool, buf)
		if read > 0 {
			if err := wb.Set(partKey(digest, part), buf[:read]); err != nil {
				return zero, err
			}
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return zero, err
		}
	}
	size := make([]byte, 8)
	binary.BigEndian.PutUint64(size, uint64(n))
	if err := wb.Set(metaKey(digest), size); err != nil {
		return zero, err
	}
	if err := wb.Flush(); err != nil {
		return zero, fmt.Errorf("write blob: %w", err)
	}
	return result, nil
}

// Open returns a reader that loads parts on demand.
func (b *BadgerStore) Open(ctx context.Context, cid string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	digest, err := DigestFromCID(cid)
	if err != nil {
		return nil, err
	}
	size, err := b.size(digest)
	if err != nil {
		return nil, err
	}
	return &badgerReader{db: b.db, digest: digest, remaining: size}, nil
}

// Has reports whether a blob exists for cid.
func (b *BadgerStore) Has(ctx context.Context, cid string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	digest, err := DigestFromCID(cid)
	if err != nil {
		return false, err
	}
	return b.hasDigest(digest)
}

// Delete removes a blob and its parts. Missing blobs are ignored.
func (b *BadgerStore) Delete(ctx context.Context, cid string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	digest, err := DigestFromCID(cid)
	if err != nil {
		return err
	}
	size, err := b.size(digest)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	parts := int((size + badgerPartSize - 1) / badgerPartSize)
	for part := range parts {
		if err := wb.Delete(partKey(digest, part)); err != nil {
			return err
		}
	}
	if err := wb.Delete(metaKey(digest)); err != nil {
		return err
	}
	return wb.Flush()
}

// Stats counts blobs by scanning the size records.
func (b *BadgerStore) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Backend: BackendBadger}
	prefix := []byte(badgerMetaPrefix)
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			stats.Blobs++
			stats.Bytes += int64(binary.BigEndian.Uint64(val))
		}
		return nil
	})
	return stats, err
}

// Close flushes and closes the database.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}

func (b *BadgerStore) hasDigest(digest string) (bool, error) {
	_, err := b.size(digest)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (b *BadgerStore) size(digest string) (int64, error) {
	var size int64
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(digest))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("corrupt size record for %s", digest)
			}
			size = int64(binary.BigEndian.Uint64(val))
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, ErrNotFound
	}
	return size, err
}

func metaKey(digest string) []byte {
	return []byte(badgerMetaPrefix + digest)
}

func partKey(digest string, part int) []byte {
	return fmt.Appendf(nil, "%s%s/%08d", badgerPartPrefix, digest, part)
}

type badgerReader struct {
	db        *badger.DB
	digest    string
	part      int
	buf       []byte
	remaining int64
}

func (r *badgerReader) Read(p []byte) (int, error) {
	if len(r.buf) == 0 {
		if r.remaining <= 0 {
			return 0, io.EOF
		}
		err := r.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get(partKey(r.digest, r.part))
			if err != nil {
				return err
			}
			r.buf, err = item.ValueCopy(nil)
			return err
		})
		if errors.Is(err, badger.ErrKeyNotFound) {
			return 0, io.ErrUnexpectedEOF
		}
		if err != nil {
			return 0, err
		}
		r.part++
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	r.remaining -= int64(n)
	return n, nil
}

func (r *badgerReader) Close() error {
	return nil
}
