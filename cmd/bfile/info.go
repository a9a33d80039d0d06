package main

import (
	"github.com/spf13/cobra"

	"bfile/internal/api"
	"bfile/internal/config"
	"bfile/internal/transfer"
)

type infoView struct {
	DBPath  string `json:"db_path"`
	Account string `json:"account,omitempty"`
	api.InfoResponse
}

func newInfoCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var withBlobs bool

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show directory and blob store info",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				resp, err := client.GetInfo(cmd.Context(), withBlobs)
				if err != nil {
					return err
				}
				view := infoView{
					DBPath:       cfg.DBPath,
					Account:      transfer.ChecksumAddress(cfg.Account),
					InfoResponse: resp,
				}

				if *jsonOutput {
					return writeJSON(view)
				}

				_ = writePlain("db_path: %s\n", view.DBPath)
				if view.Account != "" {
					_ = writePlain("account: %s\n", view.Account)
				}
				_ = writePlain("schema_version: %d\n", resp.SchemaVersion)
				_ = writePlain("blob_backend: %s\n", resp.BlobBackend)
				_ = writePlain("gateway_url: %s\n", resp.GatewayURL)
				_ = writePlain("total_transfers: %d\n", resp.TotalTransfers)
				_ = writePlain("  senders: %d\n", resp.Senders)
				_ = writePlain("  recipients: %d\n", resp.Recipients)
				_ = writePlain("pins: %d\n", resp.Pins)
				_ = writePlain("pinned_bytes: %d\n", resp.PinnedBytes)
				if resp.BlobStore != nil {
					_ = writePlain("stored_blobs: %d\n", resp.BlobStore.Blobs)
					_ = writePlain("stored_bytes: %d\n", resp.BlobStore.Bytes)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&withBlobs, "blobs", false, "also count blobs held by the blob store")
	return cmd
}
