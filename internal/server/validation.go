package server

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"bfile/internal/models"
	"bfile/internal/transfer"
)

// normalizeAccount validates an account identifier and returns the
// lowercase form the directory is keyed by.
func normalizeAccount(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if err := transfer.ValidateAddress(field, value); err != nil {
		if value == "" {
			return "", badRequestCode(err, ErrCodeMissingRequired)
		}
		return "", badRequestCode(err, ErrCodeInvalidAddress)
	}
	return transfer.NormalizeAddress(value), nil
}

func validateKeyWords(words [4]string) error {
	if _, err := transfer.ParseKeyWords(words[:]); err != nil {
		return badRequestCode(err, ErrCodeInvalidKey)
	}
	return nil
}

func validateStorageAddress(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", badRequestCode(fmt.Errorf("storage_address is required"), ErrCodeMissingRequired)
	}
	if strings.ContainsFunc(value, unicode.IsSpace) {
		return "", badRequestCode(fmt.Errorf("storage_address must not contain whitespace"), ErrCodeInvalidArgument)
	}
	return value, nil
}

// validateFileName keeps names non-empty so that no record can be mistaken
// for the sentinel group. The name is otherwise stored as given.
func validateFileName(value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", badRequestCode(fmt.Errorf("file_name is required"), ErrCodeMissingRequired)
	}
	if len(value) > models.MaxFileNameLength {
		return "", badRequestCode(fmt.Errorf("file_name exceeds %d bytes", models.MaxFileNameLength), ErrCodeInvalidFileName)
	}
	if strings.ContainsRune(value, 0) {
		return "", badRequestCode(errors.New("file_name must not contain NUL"), ErrCodeInvalidFileName)
	}
	return value, nil
}
