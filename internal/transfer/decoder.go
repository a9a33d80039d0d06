package transfer

import (
	"bytes"
	"context"
	"errors"
)

// Decoder reverses Encoder. ChunkSize must match the value used to encode.
type Decoder struct {
	ChunkSize int
}

// SegmentLen is the text length of one full encrypted chunk. Every segment
// of a blob except the last has exactly this length.
func (d Decoder) SegmentLen() int {
	size := d.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	return EncodedLen(size)
}

// Decode splits blob on segment boundaries, decrypts each segment and joins
// the plaintext. A failing segment aborts the whole decode; no partial
// output is returned.
func (d Decoder) Decode(ctx context.Context, blob EncryptedBlob, key Key) ([]byte, error) {
	text := bytes.TrimSpace(blob)
	segLen := d.SegmentLen()

	out := make([]byte, 0, len(text)/4*3)
	for index, off := 0, 0; off < len(text); index, off = index+1, off+segLen {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(off+segLen, len(text))
		plain, err := DecryptChunk(string(text[off:end]), key[:])
		if err != nil {
			var decodeErr *DecodeError
			if errors.As(err, &decodeErr) {
				decodeErr.Chunk = index
			}
			return nil, err
		}
		out = append(out, plain...)
	}
	return out, nil
}
