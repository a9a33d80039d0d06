package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func requireExactlyArgs(count int, message string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != count {
			return errors.New(message)
		}
		return nil
	}
}

func requireIndexArg(cmd *cobra.Command, args []string) error {
	if err := requireExactlyArgs(1, "inbox index is required")(cmd, args); err != nil {
		return err
	}
	_, err := parseIndex(args[0])
	return err
}

// parseIndex reads a 1-based inbox position as shown by `bfile inbox`.
func parseIndex(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid inbox index %q: must be a positive integer", raw)
	}
	return n, nil
}
