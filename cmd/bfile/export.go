package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bfile/internal/api"
	"bfile/internal/config"
)

func newExportCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		outputPath string
		compressed bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every directory record as NDJSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput != nil && *jsonOutput {
				return fmt.Errorf("export always emits NDJSON; remove --json/--yaml")
			}
			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				w := os.Stdout
				if outputPath != "" {
					f, err := os.Create(outputPath)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				return client.Export(cmd.Context(), w, compressed)
			})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&compressed, "gzip", false, "gzip-compress the export")

	return cmd
}
