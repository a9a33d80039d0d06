package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"bfile/internal/api"
)

const maxJSONBody = 1 << 20

// apiError carries the HTTP status and error codes a failure is reported
// with. Services return it; handlers only forward it to writeError.
type apiError struct {
	status  int
	code    string
	errCode int
	err     error
}

func (e apiError) Error() string {
	if e.err == nil {
		return http.StatusText(e.status)
	}
	return e.err.Error()
}

func (e apiError) Unwrap() error {
	return e.err
}

// statusError builds an apiError using the defaults for status. A non-zero
// errCode overrides the default numeric code. An err that is already an
// apiError keeps its own classification.
func statusError(status, errCode int, err error) error {
	var existing apiError
	if errors.As(err, &existing) && existing.status != 0 {
		return existing
	}
	if err == nil {
		err = errors.New(http.StatusText(status))
	}
	class := statusClasses[status]
	if errCode == 0 {
		errCode = class.errCode
	}
	return apiError{status: status, code: class.code, errCode: errCode, err: err}
}

func badRequestCode(err error, code int) error {
	return statusError(http.StatusBadRequest, code, err)
}

func notFoundCode(err error, code int) error {
	return statusError(http.StatusNotFound, code, err)
}

func conflict(err error) error {
	return statusError(http.StatusConflict, ErrCodeConflict, err)
}

func tooLarge(err error) error {
	return statusError(http.StatusRequestEntityTooLarge, ErrCodeRequestTooLarge, err)
}

func insufficientStorage(err error) error {
	return statusError(http.StatusInsufficientStorage, ErrCodeInsufficientSpace, err)
}

func storeFailure(err error) error {
	return statusError(http.StatusInternalServerError, ErrCodeStoreFailure, err)
}

func blobFailure(err error) error {
	return statusError(http.StatusInternalServerError, ErrCodeBlobFailure, err)
}

// asAPIError classifies err, treating anything unclassified as a store
// failure.
func asAPIError(err error) apiError {
	var apiErr apiError
	errors.As(storeFailure(err), &apiErr)
	return apiErr
}

// writeError logs err at a level matching its status and writes the JSON
// error body. Server-side messages are masked except for storage
// exhaustion, which the client can act on.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := asAPIError(err)
	status := apiErr.status
	message := apiErr.Error()

	fields := []any{"status", status, "code", apiErr.code, "error_code", apiErr.errCode, "error", apiErr.err}
	if r != nil {
		fields = append(fields, "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
	}

	switch {
	case status >= 500:
		s.log().Error("request error", fields...)
		if status != http.StatusInsufficientStorage {
			message = "internal error"
		}
	case shouldWarnClientError(status):
		s.log().Warn("request rejected", fields...)
	default:
		s.log().Debug("request rejected", fields...)
	}

	s.writeJSON(w, status, api.ErrorResponse{Error: message, Code: apiErr.code, ErrorCode: apiErr.errCode})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("write json response", "status", status, "error", err)
	}
}

func shouldWarnClientError(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusTooManyRequests
}

// isUniqueConstraint matches the sqlite driver's constraint message; the
// driver exposes no typed error for it.
func isUniqueConstraint(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// decodeBody reads a JSON request body into dst, writing the error response
// itself when decoding fails.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return true
	}

	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		err = badRequestCode(fmt.Errorf("request body exceeds %d bytes", maxBytesErr.Limit), ErrCodeRequestTooLarge)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		err = badRequestCode(errors.New("invalid JSON payload"), ErrCodeInvalidJSON)
	default:
		err = badRequestCode(err, ErrCodeInvalidJSON)
	}
	s.writeError(w, r, err)
	return false
}

// pathAccount reads and normalizes the account in path segment name.
func (s *Server) pathAccount(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	account, err := normalizeAccount(name, r.PathValue(name))
	if err != nil {
		s.writeError(w, r, err)
		return "", false
	}
	return account, true
}

func queryBool(r *http.Request, key string) (bool, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return false, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, badRequestCode(fmt.Errorf("invalid %s: %q", key, value), ErrCodeInvalidQuery)
	}
	return parsed, nil
}
