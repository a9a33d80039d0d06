package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"bfile/internal/api"
	"bfile/internal/config"
	"bfile/internal/session"
)

func newSendCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "send <file> <recipient>",
		Short: "Encrypt a file and send it to another account",
		Args:  requireExactlyArgs(2, "file and recipient are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := requireAccount(cfg)
			if err != nil {
				return err
			}
			path, recipient := args[0], args[1]
			if name == "" {
				name = filepath.Base(path)
			}

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				res, err := sendFile(cmd.Context(), cfg, client, account, name, f, recipient, !*jsonOutput)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(res)
				}
				return writeSendResult(res)
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "file name shown to the recipient (default: base name of <file>)")

	return cmd
}

// sendFile runs the send path for one file. Cancelling ctx abandons an
// in-flight upload; a registration that has started is left to finish.
func sendFile(ctx context.Context, cfg *config.Config, client *api.Client, account, name string, f *os.File, recipient string, showProgress bool) (sendResult, error) {
	var res sendResult

	opts := session.Options{}
	if showProgress {
		opts.OnProgress = func(percent int) {
			fmt.Fprintf(os.Stderr, "\ruploading %3d%%", percent)
		}
		opts.OnTransition = func(from, to session.Status) {
			if from == session.StatusUploading {
				fmt.Fprintln(os.Stderr)
			}
		}
	}
	sess := newSession(cfg, client, account, opts)
	defer sess.Close()
	sender := sess.Sender

	if err := sender.SelectFile(name, f); err != nil {
		return res, err
	}
	if err := sender.Encode(ctx); err != nil {
		return res, fmt.Errorf("encode %s: %w", name, err)
	}
	snap := sender.Snapshot()

	start := time.Now()
	receipt, err := sender.Submit(ctx, recipient)
	if err != nil {
		return res, err
	}

	return sendResult{
		Receipt:   receipt,
		FileName:  snap.FileName,
		Key:       snap.KeyWords,
		BlobBytes: snap.BlobSize,
		UploadMS:  time.Since(start).Milliseconds(),
	}, nil
}
