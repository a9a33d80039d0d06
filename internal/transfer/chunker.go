package transfer

import (
	"io"

	chunker "github.com/ipfs/boxo/chunker"
)

// DefaultChunkSize is the chunk size shared by encoder and decoder. It is
// not recorded in the blob, so changing it breaks existing transfers.
const DefaultChunkSize = 50 * 1024 * 1024

// Chunker yields fixed-size slices of a reader in order. The last chunk may
// be shorter. A Chunker is bound to one reader and cannot be restarted.
type Chunker struct {
	splitter chunker.Splitter
	done     bool
	count    int
}

// NewChunker returns a chunker over r. A non-positive size selects
// DefaultChunkSize.
func NewChunker(r io.Reader, chunkSize int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Chunker{splitter: chunker.NewSizeSplitter(r, int64(chunkSize))}
}

// Next returns the next chunk, or io.EOF once the reader is exhausted.
func (c *Chunker) Next() ([]byte, error) {
	if c.done {
		return nil, io.EOF
	}
	chunk, err := c.splitter.NextBytes()
	if err != nil {
		c.done = true
		return nil, err
	}
	if len(chunk) == 0 {
		c.done = true
		return nil, io.EOF
	}
	c.count++
	return chunk, nil
}

// Count returns how many chunks have been returned so far.
func (c *Chunker) Count() int {
	return c.count
}

// ChunkCount returns how many chunks a payload of size bytes splits into.
func ChunkCount(size int64, chunkSize int) int {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if size <= 0 {
		return 0
	}
	return int((size + int64(chunkSize) - 1) / int64(chunkSize))
}
