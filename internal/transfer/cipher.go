package transfer

import (
	"crypto/aes"
	"encoding/base64"
	"errors"
	"fmt"
)

var (
	errCiphertextLength = errors.New("ciphertext length is not a positive multiple of the block size")
	errPadding          = errors.New("invalid padding")
)

// EncryptChunk encrypts one chunk with AES in ECB mode and PKCS#7 padding and
// returns the ciphertext as standard base64 text.
//
// No IV is used, so the same chunk under the same key always yields the same
// text. Existing directory entries depend on this format.
func EncryptChunk(plaintext []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("chunk cipher: %w", err)
	}

	buf := pkcs7Pad(plaintext, aes.BlockSize)
	for off := 0; off < len(buf); off += aes.BlockSize {
		block.Encrypt(buf[off:off+aes.BlockSize], buf[off:off+aes.BlockSize])
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// DecryptChunk reverses EncryptChunk. Every failure is a *DecodeError.
func DecryptChunk(ciphertext string, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	buf, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if len(buf) == 0 || len(buf)%aes.BlockSize != 0 {
		return nil, &DecodeError{Err: errCiphertextLength}
	}

	for off := 0; off < len(buf); off += aes.BlockSize {
		block.Decrypt(buf[off:off+aes.BlockSize], buf[off:off+aes.BlockSize])
	}

	plain, err := pkcs7Unpad(buf, aes.BlockSize)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return plain, nil
}

// EncodedLen returns the length of the text EncryptChunk produces for a chunk
// of plainLen bytes.
func EncodedLen(plainLen int) int {
	padded := (plainLen/aes.BlockSize + 1) * aes.BlockSize
	return base64.StdEncoding.EncodedLen(padded)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	pad := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+pad)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(pad)
	}
	return out
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, errPadding
	}
	pad := int(data[len(data)-1])
	if pad == 0 || pad > blockSize || pad > len(data) {
		return nil, errPadding
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, errPadding
		}
	}
	return data[:len(data)-pad], nil
}
