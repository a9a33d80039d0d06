package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"bfile/internal/blobstore"
	"bfile/internal/config"
	"bfile/internal/models"
	"bfile/internal/server"
	"bfile/internal/store"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the bfile directory and blob server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("db path is required")
			}

			logger := slog.Default().With("component", "server")

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			logger.Info("opening database", "path", cfg.DBPath)
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database %s: %w", cfg.DBPath, err)
			}
			defer st.Close()

			logger.Info("opening blob store", "backend", cfg.Blobs.Backend, "root", cfg.Blobs.Root)
			bs, err := openBlobStore(cfg)
			if err != nil {
				return err
			}
			defer bs.Close()

			srv := server.New(addr, st, bs, server.Options{
				Backend:            cfg.Blobs.Backend,
				GatewayURL:         cfg.GatewayURL(),
				MaxUploadBytes:     cfg.Blobs.MaxUploadBytes,
				MultipartMaxMemory: cfg.Blobs.MultipartMaxMemory,
			}, logger)

			return srv.ListenAndServe(cmd.Context())
		},
	}
}

func openBlobStore(cfg *config.Config) (blobstore.BlobStore, error) {
	opts := blobstore.LocalCASOptions{
		MinFreeBytes: uint64(max(cfg.Blobs.MinFreeBytes, 0)),
		MaxBlobBytes: cfg.Blobs.MaxUploadBytes,
	}
	switch models.BlobBackend(cfg.Blobs.Backend) {
	case models.BackendBadger:
		return blobstore.NewBadgerStore(cfg.Blobs.Root, opts)
	case models.BackendLocalCAS, "":
		return blobstore.NewLocalCAS(cfg.Blobs.Root, opts)
	default:
		return nil, fmt.Errorf("invalid blob backend: %s", cfg.Blobs.Backend)
	}
}
