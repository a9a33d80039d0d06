package main

import (
	"os"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"

	"bfile/internal/config"
	"bfile/internal/transfer"
)

type accountView struct {
	Account string `json:"account"`
}

func newAccountCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var showQR bool

	cmd := &cobra.Command{
		Use:   "account",
		Short: "Show the current account address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := requireAccount(cfg)
			if err != nil {
				return err
			}
			address := transfer.ChecksumAddress(account)

			if *jsonOutput {
				return writeJSON(accountView{Account: address})
			}
			if err := writePlain("%s\n", address); err != nil {
				return err
			}
			if showQR {
				qrterminal.GenerateWithConfig(address, qrterminal.Config{
					Level:     qrterminal.M,
					Writer:    os.Stdout,
					BlackChar: qrterminal.BLACK,
					WhiteChar: qrterminal.WHITE,
					QuietZone: 1,
				})
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showQR, "qr", false, "also print the address as a QR code")

	return cmd
}
