package main

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bfile/internal/api"
	"bfile/internal/blobstore"
	"bfile/internal/config"
	"bfile/internal/server"
	"bfile/internal/session"
	"bfile/internal/store"
	"bfile/internal/transfer"
)

const (
	alice = "0x00000000000000000000000000000000000000a1"
	bob   = "0x00000000000000000000000000000000000000b2"
)

func newTestService(t *testing.T) (*config.Config, *api.Client) {
	t.Helper()
	t.Setenv("BFILE_API_TOKEN", "")

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	blobs, err := blobstore.NewLocalCAS(t.TempDir(), blobstore.LocalCASOptions{})
	if err != nil {
		t.Fatalf("open blobs: %v", err)
	}

	srv := server.New("127.0.0.1:0", st, blobs, server.Options{}, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	cfg := config.Default()
	cfg.APIURL = ts.URL
	cfg.ChunkSize = 64
	return &cfg, api.NewClient(ts.URL)
}

func writeTempFile(t *testing.T, name, content string) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", name, err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestSendThenDownload(t *testing.T) {
	cfg, client := newTestService(t)
	ctx := context.Background()

	content := strings.Repeat("quarterly numbers, do not forward. ", 10)
	res, err := sendFile(ctx, cfg, client, alice, "report.txt", writeTempFile(t, "report.txt", content), bob, false)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.Recipient != bob || res.Sender != alice {
		t.Fatalf("unexpected parties: %+v", res.Receipt)
	}
	if len(res.Key) != 4 {
		t.Fatalf("expected 4 key words, got %v", res.Key)
	}
	if res.BlobBytes == 0 {
		t.Fatal("expected non-empty blob")
	}

	bobSession := newSession(cfg, client, bob, session.Options{})
	defer bobSession.Close()

	outDir := t.TempDir()
	got, err := downloadRecord(ctx, bobSession.Inbox, 1, outDir, false)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if got.Path != filepath.Join(outDir, "report.txt") {
		t.Fatalf("unexpected path %q", got.Path)
	}
	data, err := os.ReadFile(got.Path)
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	if string(data) != content {
		t.Fatalf("downloaded content mismatch")
	}

	if _, err := downloadRecord(ctx, bobSession.Inbox, 1, outDir, false); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected overwrite refusal, got %v", err)
	}
	if _, err := downloadRecord(ctx, bobSession.Inbox, 1, outDir, true); err != nil {
		t.Fatalf("forced download: %v", err)
	}
	if _, err := downloadRecord(ctx, bobSession.Inbox, 2, outDir, false); err == nil {
		t.Fatal("expected error for missing index")
	}
}

func TestSendToSelfIsRefused(t *testing.T) {
	cfg, client := newTestService(t)
	_, err := sendFile(context.Background(), cfg, client, alice, "a.txt", writeTempFile(t, "a.txt", "x"), alice, false)
	if err == nil {
		t.Fatal("expected self-send to fail")
	}
}

func TestSendWithCancelledContextRegistersNothing(t *testing.T) {
	cfg, client := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := sendFile(ctx, cfg, client, alice, "a.txt", writeTempFile(t, "a.txt", "x"), bob, false); err == nil {
		t.Fatal("expected cancelled send to fail")
	}
	received, err := client.HasReceived(context.Background(), bob)
	if err != nil {
		t.Fatalf("has received: %v", err)
	}
	if received {
		t.Fatal("expected no transfer after cancellation")
	}
}

func TestInboxViewPaging(t *testing.T) {
	cfg, client := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{"one.txt", "two.txt", "three.txt"} {
		if _, err := sendFile(ctx, cfg, client, alice, name, writeTempFile(t, name, name), bob, false); err != nil {
			t.Fatalf("send %s: %v", name, err)
		}
	}

	sess := newSession(cfg, client, bob, session.Options{})
	defer sess.Close()
	if err := sess.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	first := buildInboxView(sess.Inbox, 1, false)
	if first.Total != 3 || first.Pages != 2 || len(first.Records) != session.PageSize {
		t.Fatalf("unexpected first page: %+v", first)
	}
	second := buildInboxView(sess.Inbox, 2, false)
	if len(second.Records) != 1 || second.Records[0].Index != 3 || second.Records[0].FileName != "three.txt" {
		t.Fatalf("unexpected second page: %+v", second)
	}
	all := buildInboxView(sess.Inbox, 0, true)
	if len(all.Records) != 3 || all.Records[2].Index != 3 {
		t.Fatalf("unexpected full view: %+v", all)
	}
	if all.Records[0].Sender != transfer.ChecksumAddress(alice) {
		t.Fatalf("expected checksummed sender, got %q", all.Records[0].Sender)
	}
}

func TestWatchInboxWritesOnChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	totals := []int{1, 1, 2, -1, 2}
	calls := 0
	load := func(context.Context) (inboxView, error) {
		calls++
		if calls >= len(totals) {
			cancel()
			return inboxView{Total: 2}, nil
		}
		if totals[calls-1] < 0 {
			return inboxView{}, errors.New("temporary failure")
		}
		return inboxView{Total: totals[calls-1]}, nil
	}
	var written []int
	write := func(view inboxView) error {
		written = append(written, view.Total)
		return nil
	}

	if err := watchInbox(ctx, time.Millisecond, load, write); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if len(written) != 2 || written[0] != 1 || written[1] != 2 {
		t.Fatalf("expected writes [1 2], got %v", written)
	}
}

func TestSafeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "report.pdf", want: "report.pdf"},
		{in: "../../etc/passwd", want: "passwd"},
		{in: `..\..\boot.ini`, want: "boot.ini"},
		{in: "/", want: fallbackDownloadName},
		{in: "..", want: fallbackDownloadName},
		{in: "line\nbreak.txt", want: "linebreak.txt"},
		{in: "   ", want: fallbackDownloadName},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := safeFileName(tt.in); got != tt.want {
				t.Fatalf("safeFileName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDownloadPath(t *testing.T) {
	dir := t.TempDir()

	got, err := downloadPath("", "a.txt")
	if err != nil || got != "a.txt" {
		t.Fatalf("expected bare name, got %q (%v)", got, err)
	}
	got, err = downloadPath(dir, "../a.txt")
	if err != nil || got != filepath.Join(dir, "a.txt") {
		t.Fatalf("expected file inside dir, got %q (%v)", got, err)
	}
	target := filepath.Join(dir, "renamed.bin")
	got, err = downloadPath(target, "a.txt")
	if err != nil || got != target {
		t.Fatalf("expected explicit path, got %q (%v)", got, err)
	}
}

func TestWriteFileExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	if err := writeFileExclusive(path, []byte("first"), false); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := writeFileExclusive(path, []byte("second"), false); err == nil {
		t.Fatal("expected existing file to be kept")
	}
	if err := writeFileExclusive(path, []byte("second"), true); err != nil {
		t.Fatalf("forced write: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !bytes.Equal(data, []byte("second")) {
		t.Fatalf("expected overwritten content, got %q", data)
	}
}
