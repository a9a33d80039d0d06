package transfer

import (
	"errors"
	"fmt"
)

// ErrRejected marks a directory write that was explicitly refused.
var ErrRejected = errors.New("transaction rejected")

// ValidationError reports input that was rejected before any storage or
// directory call was made.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// TransferUploadError reports a blob store write failure. Status carries the
// HTTP status of the store when one was returned.
type TransferUploadError struct {
	Status int
	Err    error
}

func (e *TransferUploadError) Error() string {
	if e == nil {
		return ""
	}
	if e.Status > 0 {
		return fmt.Sprintf("upload failed (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("upload failed: %v", e.Err)
}

func (e *TransferUploadError) Unwrap() error {
	return e.Err
}

// TransferRegisterError reports a directory write that did not go through.
type TransferRegisterError struct {
	Reason string
	Err    error
}

func (e *TransferRegisterError) Error() string {
	if e == nil {
		return ""
	}
	if e.Reason != "" {
		return fmt.Sprintf("register transfer: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("register transfer: %v", e.Err)
}

func (e *TransferRegisterError) Unwrap() error {
	return e.Err
}

// DecodeError reports ciphertext that could not be turned back into the
// original bytes: wrong key, malformed base64, bad block length or padding.
type DecodeError struct {
	Chunk int
	Err   error
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("decode chunk %d: %v", e.Chunk, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// TransferFetchError reports a blob store read failure.
type TransferFetchError struct {
	Address string
	Status  int
	Err     error
}

func (e *TransferFetchError) Error() string {
	if e == nil {
		return ""
	}
	if e.Status > 0 {
		return fmt.Sprintf("fetch %s (status %d): %v", e.Address, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Address, e.Err)
}

func (e *TransferFetchError) Unwrap() error {
	return e.Err
}

// IsRejected reports whether err is a register failure caused by an explicit
// refusal rather than a transport problem.
func IsRejected(err error) bool {
	return errors.Is(err, ErrRejected)
}

func invalid(field string, format string, args ...any) error {
	return &ValidationError{Field: field, Err: fmt.Errorf(format, args...)}
}
