package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"bfile/internal/api"
	"bfile/internal/config"
	"bfile/internal/session"
)

const fallbackDownloadName = "download.bin"

func newDownloadCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		output string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "download <index>",
		Short: "Download and decrypt a file from the inbox",
		Args:  requireIndexArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := requireAccount(cfg)
			if err != nil {
				return err
			}
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}

			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				sess := newSession(cfg, client, account, session.Options{})
				defer sess.Close()

				res, err := downloadRecord(cmd.Context(), sess.Inbox, index, output, force)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(res)
				}
				return writePlain("saved %s (%d bytes) to %s\n", res.FileName, res.Bytes, res.Path)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "destination file or directory (default: current directory)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	return cmd
}

func downloadRecord(ctx context.Context, inbox *session.Inbox, index int, output string, force bool) (downloadResult, error) {
	var res downloadResult
	if err := inbox.Refresh(ctx); err != nil {
		return res, err
	}
	records := inbox.Records()
	if index > len(records) {
		return res, fmt.Errorf("inbox has %d files; no file at index %d", len(records), index)
	}
	rec := records[index-1]

	artifact, err := inbox.Download(ctx, rec)
	if err != nil {
		return res, err
	}

	path, err := downloadPath(output, artifact.Name)
	if err != nil {
		return res, err
	}
	if err := writeFileExclusive(path, artifact.Data, force); err != nil {
		return res, err
	}

	return downloadResult{
		FileName: artifact.Name,
		Path:     path,
		Sender:   rec.Sender,
		Bytes:    len(artifact.Data),
	}, nil
}

// safeFileName reduces a sender-chosen name to a single path element.
func safeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := filepath.Base(filepath.Clean("/" + name))
	base = strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, base))
	if base == "" || base == "/" || base == "." || base == ".." {
		return fallbackDownloadName
	}
	return base
}

func downloadPath(output, name string) (string, error) {
	name = safeFileName(name)
	if output == "" {
		return name, nil
	}
	info, err := os.Stat(output)
	switch {
	case err == nil && info.IsDir():
		return filepath.Join(output, name), nil
	case err == nil, errors.Is(err, os.ErrNotExist):
		return output, nil
	default:
		return "", err
	}
}

func writeFileExclusive(path string, data []byte, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s already exists; use --force to overwrite", path)
		}
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
