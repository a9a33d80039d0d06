package transfer

import (
	"encoding/hex"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

const displayNameLimit = 20

var (
	addressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	newlineRegex = regexp.MustCompile(`[\r\n]+`)
)

// IsAddress reports whether s is 0x followed by 40 hex characters.
func IsAddress(s string) bool {
	return addressRegex.MatchString(s)
}

// NormalizeAddress returns the lowercase form used for matching.
func NormalizeAddress(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidateAddress checks account identifier syntax.
func ValidateAddress(field, s string) error {
	if strings.TrimSpace(s) == "" {
		return invalid(field, "address is required")
	}
	if !IsAddress(s) {
		return invalid(field, "%q is not a 0x-prefixed 40 character hex address", s)
	}
	return nil
}

// ValidateRecipient checks a send target against the current account.
func ValidateRecipient(recipient, currentAccount string) error {
	if recipient == "" {
		return invalid("recipient", "address is required")
	}
	if strings.EqualFold(recipient, strings.TrimSpace(currentAccount)) {
		return invalid("recipient", "cannot send a file to yourself")
	}
	return ValidateAddress("recipient", recipient)
}

// ChecksumAddress returns the EIP-55 mixed-case form of a valid address.
// Invalid input is returned unchanged.
func ChecksumAddress(s string) string {
	if !IsAddress(s) {
		return s
	}
	lower := strings.ToLower(s[2:])

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	digest := hex.EncodeToString(h.Sum(nil))

	out := []byte(lower)
	for i, c := range out {
		if c >= 'a' && c <= 'f' && digest[i] >= '8' {
			out[i] = c - 'a' + 'A'
		}
	}
	return "0x" + string(out)
}

// DisplayName shortens long file names for listings. The stored name is
// always used for the downloaded file.
func DisplayName(name string) string {
	runes := []rune(name)
	if len(runes) < displayNameLimit {
		return name
	}
	short := string(runes[:10]) + "..." + string(runes[len(runes)-10:])
	return newlineRegex.ReplaceAllString(short, " ")
}
