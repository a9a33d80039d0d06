package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bfile/internal/config"
	"bfile/internal/format"
	"bfile/internal/transfer"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var (
		jsonOutput bool
		yamlOutput bool
		logLevel   string
		account    string
	)

	cmd := &cobra.Command{
		Use:           "bfile",
		Short:         "Bfile sends encrypted files to other accounts through a shared directory",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := configureLoggerForCLI(logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}

			if jsonOutput && yamlOutput {
				return fmt.Errorf("--json and --yaml are mutually exclusive")
			}
			if yamlOutput {
				f, err := format.New("yaml")
				if err != nil {
					return err
				}
				outputFormatter = f
				// Every structured-output branch keys off jsonOutput.
				jsonOutput = true
			}

			if account != "" {
				if err := transfer.ValidateAddress("account", account); err != nil {
					return err
				}
				cfg.Account = transfer.NormalizeAddress(account)
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().BoolVar(&yamlOutput, "yaml", false, "output YAML")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&account, "account", "", "acting account address (overrides BFILE_ACCOUNT)")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newSendCmd(cfg, &jsonOutput),
		newInboxCmd(cfg, &jsonOutput),
		newDownloadCmd(cfg, &jsonOutput),
		newAccountCmd(cfg, &jsonOutput),
		newExportCmd(cfg, &jsonOutput),
		newInfoCmd(cfg, &jsonOutput),
		newMigrateCmd(cfg, &jsonOutput),
		newConfigCmd(cfg, &jsonOutput),
	)

	return cmd
}
