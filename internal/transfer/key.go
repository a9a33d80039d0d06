package transfer

import (
	"crypto/rand"
	"encoding/binary"
	"math"
	"strconv"
	"strings"
)

const (
	// KeySize is the symmetric key length in bytes (AES-128).
	KeySize = 16
	// KeyWords is the number of 32-bit words a key is split into on the wire.
	KeyWords = KeySize / 4
)

// Key is a per-transfer symmetric key. It is stored in the directory next to
// the storage address, so it is readable by anyone who can read the entry.
type Key [KeySize]byte

// GenerateKey returns a fresh random key.
func GenerateKey() (Key, error) {
	var k Key
	if _, err := rand.Read(k[:]); err != nil {
		return Key{}, err
	}
	return k, nil
}

// Bytes returns a copy of the key bytes.
func (k Key) Bytes() []byte {
	out := make([]byte, KeySize)
	copy(out, k[:])
	return out
}

// IsZero reports whether the key is unset.
func (k Key) IsZero() bool {
	return k == Key{}
}

// Words renders the key as four big-endian unsigned 32-bit words in decimal.
func (k Key) Words() [KeyWords]string {
	var out [KeyWords]string
	for i := range out {
		out[i] = strconv.FormatUint(uint64(binary.BigEndian.Uint32(k[i*4:])), 10)
	}
	return out
}

// ParseKeyWords rebuilds a key from its four decimal words. Signed values in
// the int32 range are accepted as well and reduced modulo 2^32, since older
// directory entries were written by a client that emitted signed words.
func ParseKeyWords(words []string) (Key, error) {
	if len(words) != KeyWords {
		return Key{}, invalid("key", "expected %d words, got %d", KeyWords, len(words))
	}
	var k Key
	for i, raw := range words {
		value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil || value < math.MinInt32 || value > math.MaxUint32 {
			return Key{}, invalid("key", "word %d is not a 32-bit integer: %q", i, raw)
		}
		binary.BigEndian.PutUint32(k[i*4:], uint32(value))
	}
	return k, nil
}
