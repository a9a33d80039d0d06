package server

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"bfile/internal/api"
)

// statusRecorder captures the status and body size of a response.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (w *statusRecorder) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecorder) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.written += int64(n)
	return n, err
}

func (w *statusRecorder) code() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *statusRecorder) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// countingBody tallies bytes a handler consumed from the request body.
type countingBody struct {
	io.ReadCloser
	read int64
}

func (b *countingBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	b.read += int64(n)
	return n, err
}

// isBlobRoute reports whether path moves blob content, which is logged at
// info level with throughput.
func isBlobRoute(path string) bool {
	return strings.HasPrefix(path, "/ipfs/") || strings.HasPrefix(path, "/pinning/")
}

func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		var body *countingBody
		if r.Body != nil {
			body = &countingBody{ReadCloser: r.Body}
			r.Body = body
		}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		status := rec.code()
		fields := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes_out", rec.written,
			"duration_ms", elapsed.Milliseconds(),
			"remote_addr", r.RemoteAddr,
		}
		if body != nil && body.read > 0 {
			fields = append(fields, "bytes_in", body.read)
		}
		if account := r.Header.Get(api.AccountHeader); account != "" {
			fields = append(fields, "account", account)
		}

		level := slog.LevelDebug
		switch {
		case status >= 500:
			level = slog.LevelError
		case shouldWarnClientError(status):
			level = slog.LevelWarn
		case isBlobRoute(r.URL.Path):
			level = slog.LevelInfo
			if secs := elapsed.Seconds(); secs > 0 {
				moved := rec.written
				if body != nil {
					moved += body.read
				}
				fields = append(fields, "mib_per_sec", float64(moved)/(1<<20)/secs)
			}
		}
		s.log().Log(r.Context(), level, "request complete", fields...)
	})
}
