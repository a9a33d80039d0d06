package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func captureRequestLog(t *testing.T, handler http.HandlerFunc, req *http.Request) []map[string]any {
	t.Helper()
	var buf bytes.Buffer
	srv := &Server{logger: slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}
	srv.withRequestLogging(handler).ServeHTTP(httptest.NewRecorder(), req)

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestRequestLoggingBlobUpload(t *testing.T) {
	drain := func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		_, _ = w.Write([]byte(`{"IpfsHash":"x"}`))
	}
	req := httptest.NewRequest(http.MethodPost, "/pinning/pinFileToIPFS", strings.NewReader("0123456789"))

	entries := captureRequestLog(t, drain, req)
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry["level"] != "INFO" {
		t.Fatalf("level = %v, want INFO", entry["level"])
	}
	if entry["bytes_in"] != float64(10) {
		t.Fatalf("bytes_in = %v, want 10", entry["bytes_in"])
	}
	if entry["bytes_out"] != float64(len(`{"IpfsHash":"x"}`)) {
		t.Fatalf("bytes_out = %v", entry["bytes_out"])
	}
}

func TestRequestLoggingLevels(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
		want   string
	}{
		{name: "directory read", path: "/v1/info", status: http.StatusOK, want: "DEBUG"},
		{name: "unauthorized", path: "/v1/info", status: http.StatusUnauthorized, want: "WARN"},
		{name: "server failure", path: "/ipfs/x", status: http.StatusInternalServerError, want: "ERROR"},
		{name: "gateway read", path: "/ipfs/x", status: http.StatusOK, want: "INFO"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(tc.status) }
			entries := captureRequestLog(t, handler, httptest.NewRequest(http.MethodGet, tc.path, nil))
			if len(entries) != 1 {
				t.Fatalf("expected one log entry, got %d", len(entries))
			}
			if entries[0]["level"] != tc.want {
				t.Fatalf("level = %v, want %s", entries[0]["level"], tc.want)
			}
			if entries[0]["status"] != float64(tc.status) {
				t.Fatalf("status = %v, want %d", entries[0]["status"], tc.status)
			}
		})
	}
}

func TestRequestLoggingSkipsHealth(t *testing.T) {
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
	if entries := captureRequestLog(t, ok, httptest.NewRequest(http.MethodGet, "/health", nil)); len(entries) != 0 {
		t.Fatalf("health check was logged: %v", entries)
	}
}
