package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bfile/internal/api"
	"bfile/internal/config"
)

func TestIsLoopbackURL(t *testing.T) {
	tests := map[string]bool{
		"http://127.0.0.1:7434":  true,
		"http://localhost:7434":  true,
		"http://[::1]:7434":      true,
		"http://0.0.0.0:7434":    false,
		"https://files.example":  false,
		"http://192.0.2.10:7434": false,
		"::not a url::":          false,
	}
	for raw, want := range tests {
		if got := isLoopbackURL(raw); got != want {
			t.Errorf("isLoopbackURL(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestIsDialError(t *testing.T) {
	dial := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	read := &net.OpError{Op: "read", Net: "tcp", Err: errors.New("reset")}
	if !isDialError(&wrapped{dial}) {
		t.Error("wrapped dial error not recognised")
	}
	if isDialError(read) || isDialError(errors.New("boom")) {
		t.Error("non-dial error treated as dial error")
	}
}

type wrapped struct{ err error }

func (w *wrapped) Error() string { return "request: " + w.err.Error() }
func (w *wrapped) Unwrap() error { return w.err }

func TestTailBufferKeepsLastLine(t *testing.T) {
	buf := &tailBuffer{max: 16}
	_, _ = buf.Write([]byte("first line\n"))
	_, _ = buf.Write([]byte("error: schema too new\n"))
	if got := buf.lastLine(); got != "schema too new" {
		t.Fatalf("lastLine() = %q", got)
	}
	if len(buf.buf) > 16 {
		t.Fatalf("buffer grew to %d bytes", len(buf.buf))
	}
}

func TestEnsureServerUsesRunningServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.APIURL = srv.URL
	called := false
	err := withClient(context.Background(), &cfg, func(c *api.Client) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("withClient: called=%v err=%v", called, err)
	}
}

func TestEnsureServerDoesNotSpawnForRemoteURL(t *testing.T) {
	cfg := config.Default()
	cfg.APIURL = "http://bfile.invalid:7434"

	_, err := ensureServer(context.Background(), &cfg, api.NewClient(cfg.APIURL))
	if err == nil {
		t.Fatal("expected an error for an unreachable remote server")
	}
	if strings.Contains(err.Error(), "local server") {
		t.Fatalf("tried to start a local server for a remote URL: %v", err)
	}
}
