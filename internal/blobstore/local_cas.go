package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/disk"
)

const (
	casAlgorithmPrefix = "sha256"
	// BackendLocalCAS names the filesystem backend in config and info output.
	BackendLocalCAS = "local_cas"
)

// LocalCASOptions bounds what a LocalCAS accepts.
type LocalCASOptions struct {
	// MinFreeBytes rejects writes once the volume holding root has less
	// free space than this. Zero disables the check.
	MinFreeBytes uint64
	// MaxBlobBytes rejects blobs larger than this. Zero disables the check.
	MaxBlobBytes int64
}

// LocalCAS stores blob bytes in a local content-addressed tree.
type LocalCAS struct {
	root string
	opts LocalCASOptions
}

// NewLocalCAS creates a local CAS rooted at root.
func NewLocalCAS(root string, opts LocalCASOptions) (*LocalCAS, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("local cas root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, "tmp"), 0o755); err != nil {
		return nil, err
	}
	return &LocalCAS{root: abs, opts: opts}, nil
}

// Put streams bytes, computes SHA-256, and stores content by digest.
func (c *LocalCAS) Put(ctx context.Context, r io.Reader) (PutResult, error) {
	var zero PutResult
	if c == nil {
		return zero, fmt.Errorf("blob store is not configured")
	}
	if r == nil {
		return zero, fmt.Errorf("reader is required")
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if err := c.checkFreeSpace(); err != nil {
		return zero, err
	}

	tmp, err := os.CreateTemp(filepath.Join(c.root, "tmp"), "put-*")
	if err != nil {
		return zero, err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	src := r
	if c.opts.MaxBlobBytes > 0 {
		src = io.LimitReader(r, c.opts.MaxBlobBytes+1)
	}
	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), &ctxReader{ctx: ctx, r: src})
	if err != nil {
		cleanup()
		return zero, err
	}
	if c.opts.MaxBlobBytes > 0 && n > c.opts.MaxBlobBytes {
		cleanup()
		return zero, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, c.opts.MaxBlobBytes)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return zero, err
	}

	sum := h.Sum(nil)
	id, err := CIDFromDigest(sum)
	if err != nil {
		cleanup()
		return zero, err
	}
	digest := hex.EncodeToString(sum)
	result := PutResult{CID: id, SHA256: digest, SizeBytes: n}

	dst := c.pathFromDigest(digest)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		cleanup()
		return zero, err
	}

	if _, err := os.Stat(dst); err == nil {
		_ = os.Remove(tmpPath)
		return result, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		cleanup()
		return zero, err
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		if _, statErr := os.Stat(dst); statErr == nil {
			_ = os.Remove(tmpPath)
			return result, nil
		}
		cleanup()
		return zero, err
	}

	return result, nil
}

// Open returns a reader for the blob behind cid.
func (c *LocalCAS) Open(ctx context.Context, cid string) (io.ReadCloser, error) {
	if c == nil {
		return nil, fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	digest, err := DigestFromCID(cid)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(c.pathFromDigest(digest))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// Has reports whether a blob exists for cid.
func (c *LocalCAS) Has(ctx context.Context, cid string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	digest, err := DigestFromCID(cid)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(c.pathFromDigest(digest))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// Delete removes a blob object. Missing files are ignored.
func (c *LocalCAS) Delete(ctx context.Context, cid string) error {
	if c == nil {
		return fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	digest, err := DigestFromCID(cid)
	if err != nil {
		return err
	}
	if err := os.Remove(c.pathFromDigest(digest)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Stats walks the tree and counts stored blobs.
func (c *LocalCAS) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Backend: BackendLocalCAS}
	base := filepath.Join(c.root, casAlgorithmPrefix)
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		stats.Blobs++
		stats.Bytes += info.Size()
		return nil
	})
	return stats, err
}

// Close is a no-op; LocalCAS holds no open handles.
func (c *LocalCAS) Close() error {
	return nil
}

func (c *LocalCAS) checkFreeSpace() error {
	if c.opts.MinFreeBytes == 0 {
		return nil
	}
	usage, err := disk.Usage(c.root)
	if err != nil {
		return fmt.Errorf("disk usage: %w", err)
	}
	if usage.Free < c.opts.MinFreeBytes {
		return fmt.Errorf("%w: %d bytes free, %d required", ErrInsufficientSpace, usage.Free, c.opts.MinFreeBytes)
	}
	return nil
}

func (c *LocalCAS) pathFromDigest(digest string) string {
	return filepath.Join(c.root, casAlgorithmPrefix, digest[0:2], digest[2:4], digest)
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
