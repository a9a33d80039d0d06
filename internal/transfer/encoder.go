package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// EncryptedBlob is the stored ciphertext: the base64 text of each encrypted
// chunk, concatenated in chunk order with no framing.
type EncryptedBlob []byte

// Encoder turns a plaintext stream into an EncryptedBlob.
type Encoder struct {
	// ChunkSize defaults to DefaultChunkSize when zero.
	ChunkSize int
	// OnChunk, if set, is called after each chunk has been encrypted.
	OnChunk func(index, size int)
}

// Encode generates a fresh key and encodes r with it.
func (e Encoder) Encode(ctx context.Context, r io.Reader) (Key, EncryptedBlob, error) {
	key, err := GenerateKey()
	if err != nil {
		return Key{}, nil, fmt.Errorf("generate key: %w", err)
	}
	blob, err := e.EncodeWithKey(ctx, r, key)
	if err != nil {
		return Key{}, nil, err
	}
	return key, blob, nil
}

// EncodeWithKey reads r chunk by chunk, encrypts every chunk with key and
// appends the results in order.
func (e Encoder) EncodeWithKey(ctx context.Context, r io.Reader, key Key) (EncryptedBlob, error) {
	if r == nil {
		return nil, invalid("file", "no file selected")
	}

	chunks := NewChunker(r, e.ChunkSize)
	var buf bytes.Buffer
	for index := 0; ; index++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunk, err := chunks.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read chunk %d: %w", index, err)
		}

		text, err := EncryptChunk(chunk, key[:])
		if err != nil {
			return nil, err
		}
		buf.WriteString(text)
		if e.OnChunk != nil {
			e.OnChunk(index, len(chunk))
		}
	}
	return EncryptedBlob(buf.Bytes()), nil
}
