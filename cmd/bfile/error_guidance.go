package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"slices"

	"bfile/internal/api"
	"bfile/internal/session"
	"bfile/internal/store"
	"bfile/internal/transfer"
)

// guidance adds hints for errors matching one failure mode. Rules run in
// order; a final rule ends the scan once it matches.
type guidance struct {
	final bool
	match func(err error) (hints []string, ok bool)
}

func is(target error, hints ...string) func(error) ([]string, bool) {
	return func(err error) ([]string, bool) {
		return hints, errors.Is(err, target)
	}
}

var guidanceRules = []guidance{
	{final: true, match: is(errNoAccount,
		"hint: set BFILE_ACCOUNT or pass --account.",
		"hint: persist it with: bfile config set account <address>",
	)},
	{final: true, match: is(session.ErrCancelled,
		"hint: nothing was registered; the recipient will not see this file.",
	)},
	{final: true, match: is(store.ErrSchemaTooNew,
		"hint: this database was written by a newer bfile; upgrade, or point BFILE_DB at another file.",
	)},
	{final: true, match: is(errServerExited,
		"hint: run bfile srv in a terminal to see why the server stops.",
	)},
	{match: func(err error) ([]string, bool) {
		return []string{"hint: the directory refused the transfer; nothing was registered."}, transfer.IsRejected(err)
	}},
	{final: true, match: apiErrorHints},
	{final: true, match: is(context.DeadlineExceeded,
		"hint: request timed out; check server health or increase BFILE_HTTP_TIMEOUT.",
	)},
	{final: true, match: networkHints},
}

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}
	lines := []string{err.Error()}
	for _, rule := range guidanceRules {
		hints, ok := rule.match(err)
		if !ok {
			continue
		}
		lines = append(lines, hints...)
		if rule.final {
			break
		}
	}
	return uniqueLines(lines)
}

func apiErrorHints(err error) ([]string, bool) {
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		return nil, false
	}

	var hints []string
	switch apiErr.Code {
	case "":
		hints = append(hints, "hint: verify BFILE_API_URL points to a bfile server.")
	case "unauthorized", "forbidden":
		hints = append(hints, "hint: verify BFILE_API_TOKEN matches the server configuration.")
	case "resource_exhausted":
		hints = append(hints, "hint: retry shortly or reduce concurrent heavy requests (upload/export).")
	case "request_too_large":
		hints = append(hints, "hint: the server limits upload size; see blobs.max_upload_bytes.")
	case "insufficient_storage":
		hints = append(hints, "hint: the blob store volume is low on space; see blobs.min_free_bytes.")
	}
	if apiErr.Status >= 500 && apiErr.Status != http.StatusInsufficientStorage {
		hints = append(hints, "hint: server returned an internal error; check server logs for details.")
	}
	return hints, true
}

func networkHints(err error) ([]string, bool) {
	var netErr net.Error
	if !errors.As(err, &netErr) {
		return nil, false
	}
	hints := []string{
		"hint: ensure a bfile server is running at BFILE_API_URL.",
		"hint: start local server manually with: bfile srv",
		"hint: you can increase BFILE_HTTP_TIMEOUT for slower environments.",
	}
	if os.Getenv("SNAP") != "" || os.Getenv("SNAP_NAME") != "" {
		hints = append(hints, "hint: in snap installs, start the daemon with: snap start bfile.daemon")
	}
	return hints, true
}

// uniqueLines drops empty and repeated lines, keeping first occurrences.
func uniqueLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line != "" && !slices.Contains(out, line) {
			out = append(out, line)
		}
	}
	return out
}
