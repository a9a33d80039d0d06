package main

import (
	"github.com/spf13/cobra"

	"bfile/internal/config"
)

// configEntry is one key in `bfile config` output.
type configEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Path  string `json:"path,omitempty"`
}

func newConfigCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Get or set configuration",
	}
	cmd.AddCommand(
		newConfigGetCmd(cfg, jsonOutput),
		newConfigSetCmd(jsonOutput),
		newConfigListCmd(cfg, jsonOutput),
	)
	return cmd
}

func newConfigGetCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get an effective config value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := cfg.Get(args[0])
			if err != nil {
				return err
			}
			if *jsonOutput {
				return writeJSON(configEntry{Key: args[0], Value: value})
			}
			return writePlain("%s\n", value)
		},
	}
}

func newConfigSetCmd(jsonOutput *bool) *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a config value in the project or global file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pathFn := config.ProjectPath
			if global {
				pathFn = config.GlobalPath
			}
			path, err := pathFn()
			if err != nil {
				return err
			}
			if err := config.SetKey(path, args[0], args[1]); err != nil {
				return err
			}

			entry := configEntry{Key: args[0], Value: args[1], Path: path}
			if *jsonOutput {
				return writeJSON(entry)
			}
			return writePlain("%s written to %s\n", entry.Key, entry.Path)
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "write to global config (~/.bfile.toml)")
	return cmd
}

func newConfigListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List effective config values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := configEntries(cfg)
			if err != nil {
				return err
			}
			if *jsonOutput {
				values := make(map[string]string, len(entries))
				for _, e := range entries {
					values[e.Key] = e.Value
				}
				return writeJSON(values)
			}
			for _, e := range entries {
				if err := writePlain("%s = %s\n", e.Key, e.Value); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func configEntries(cfg *config.Config) ([]configEntry, error) {
	keys := config.AllowedKeys()
	entries := make([]configEntry, 0, len(keys))
	for _, key := range keys {
		value, err := cfg.Get(key)
		if err != nil {
			return nil, err
		}
		entries = append(entries, configEntry{Key: key, Value: value})
	}
	return entries, nil
}
