package server

import "net/http"

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument  = 1000
	ErrCodeInvalidJSON      = 1001
	ErrCodeRequestTooLarge  = 1002
	ErrCodeInvalidQuery     = 1003
	ErrCodeInvalidAddress   = 1004
	ErrCodeInvalidKey       = 1005
	ErrCodeInvalidCID       = 1006
	ErrCodeInvalidFileName  = 1007
	ErrCodeMissingRequired  = 1009
	ErrCodeSelfTransfer     = 1010
	ErrCodeInvalidMultipart = 1011

	// Domain state (2xxx)
	ErrCodeBlobNotFound = 2001
	ErrCodeConflict     = 2102

	// Auth & limits (3xxx)
	ErrCodeUnauthorized      = 3001
	ErrCodeForbidden         = 3002
	ErrCodeResourceExhausted = 3003
	ErrCodeInsufficientSpace = 3004

	// Internal/system (4xxx)
	ErrCodeInternal       = 4001
	ErrCodeStoreFailure   = 4002
	ErrCodeExportFailed   = 4003
	ErrCodeBlobFailure    = 4004
	ErrCodeNotImplemented = 4005
)

// statusClass is the symbolic code and fallback numeric code reported for
// an HTTP status.
type statusClass struct {
	code    string
	errCode int
}

var statusClasses = map[int]statusClass{
	http.StatusBadRequest:            {"invalid_argument", ErrCodeInvalidArgument},
	http.StatusUnauthorized:          {"unauthorized", ErrCodeUnauthorized},
	http.StatusForbidden:             {"forbidden", ErrCodeForbidden},
	http.StatusNotFound:              {"not_found", ErrCodeBlobNotFound},
	http.StatusConflict:              {"conflict", ErrCodeConflict},
	http.StatusRequestEntityTooLarge: {"request_too_large", ErrCodeRequestTooLarge},
	http.StatusTooManyRequests:       {"resource_exhausted", ErrCodeResourceExhausted},
	http.StatusInternalServerError:   {"internal", ErrCodeInternal},
	http.StatusNotImplemented:        {"not_implemented", ErrCodeNotImplemented},
	http.StatusInsufficientStorage:   {"insufficient_storage", ErrCodeInsufficientSpace},
}
