package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"bfile/internal/api"
	"bfile/internal/config"
	"bfile/internal/session"
	"bfile/internal/transfer"
)

const defaultWatchInterval = 5 * time.Second

func newInboxCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		page     int
		all      bool
		watch    bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List files sent to the current account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := requireAccount(cfg)
			if err != nil {
				return err
			}
			if interval <= 0 {
				interval = defaultWatchInterval
			}

			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				sess := newSession(cfg, client, account, session.Options{})
				defer sess.Close()

				load := func(ctx context.Context) (inboxView, error) {
					if err := sess.Refresh(ctx); err != nil {
						return inboxView{}, err
					}
					return buildInboxView(sess.Inbox, page, all), nil
				}
				write := func(view inboxView) error {
					if *jsonOutput {
						return writeJSON(view)
					}
					return writeInbox(view)
				}

				if !watch {
					view, err := load(cmd.Context())
					if err != nil {
						return err
					}
					return write(view)
				}
				return watchInbox(cmd.Context(), interval, load, write)
			})
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page to show, counting from 1")
	cmd.Flags().BoolVar(&all, "all", false, "show every record instead of one page")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep polling and print the inbox when it changes")
	cmd.Flags().DurationVar(&interval, "interval", defaultWatchInterval, "poll interval for --watch")

	return cmd
}

func buildInboxView(inbox *session.Inbox, page int, all bool) inboxView {
	var (
		records []transfer.Record
		info    session.PageInfo
	)
	if all {
		records = inbox.Records()
		info = session.PageInfo{Page: 1, Pages: 1, Total: len(records), PageSize: len(records)}
	} else {
		records, info = inbox.Page(page)
	}

	offset := (info.Page - 1) * info.PageSize
	view := inboxView{
		Account: transfer.ChecksumAddress(inbox.Account()),
		Page:    info.Page,
		Pages:   info.Pages,
		Total:   info.Total,
		Records: make([]recordView, 0, len(records)),
	}
	for i, rec := range records {
		view.Records = append(view.Records, newRecordView(offset+i+1, rec))
	}
	return view
}

// watchInbox writes the inbox once, then again whenever the record count
// changes, until ctx is done. Poll failures are logged and retried.
func watchInbox(ctx context.Context, interval time.Duration, load func(context.Context) (inboxView, error), write func(inboxView) error) error {
	view, err := load(ctx)
	if err != nil {
		return err
	}
	if err := write(view); err != nil {
		return err
	}
	last := view.Total

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		view, err := load(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("inbox poll failed", "error", err)
			continue
		}
		if view.Total == last {
			continue
		}
		last = view.Total
		if err := write(view); err != nil {
			return err
		}
	}
}
