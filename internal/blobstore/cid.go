package blobstore

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// CIDFromDigest builds the CIDv1 string for a raw blob whose sha2-256
// digest is digest.
func CIDFromDigest(digest []byte) (string, error) {
	hash, err := mh.Encode(digest, mh.SHA2_256)
	if err != nil {
		return "", fmt.Errorf("encode multihash: %w", err)
	}
	return cid.NewCidV1(cid.Raw, hash).String(), nil
}

// SumCID hashes data and returns its CID.
func SumCID(data []byte) (string, error) {
	hash, err := mh.Sum(data, mh.SHA2_256, -1)
	if err != nil {
		return "", err
	}
	return cid.NewCidV1(cid.Raw, hash).String(), nil
}

// DigestFromCID parses s and returns the hex sha2-256 digest it carries.
// CIDv0 strings are accepted since they also wrap sha2-256.
func DigestFromCID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("cid is required")
	}
	c, err := cid.Decode(s)
	if err != nil {
		return "", fmt.Errorf("invalid cid %q: %w", s, err)
	}
	decoded, err := mh.Decode(c.Hash())
	if err != nil {
		return "", fmt.Errorf("invalid cid %q: %w", s, err)
	}
	if decoded.Code != mh.SHA2_256 {
		return "", fmt.Errorf("invalid cid %q: unsupported hash %s", s, mh.Codes[decoded.Code])
	}
	return hex.EncodeToString(decoded.Digest), nil
}

// CanonicalCID returns the CIDv1 form of s.
func CanonicalCID(s string) (string, error) {
	digest, err := DigestFromCID(s)
	if err != nil {
		return "", err
	}
	raw, err := hex.DecodeString(digest)
	if err != nil {
		return "", err
	}
	return CIDFromDigest(raw)
}
