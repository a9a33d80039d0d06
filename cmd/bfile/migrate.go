package main

import (
	"database/sql"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"bfile/internal/config"
	"bfile/internal/store"

	_ "modernc.org/sqlite"
)

func newMigrateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var dryRun bool
	var inspect bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run or inspect database schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if inspect || dryRun {
				plan, err := migrationPlan(cfg.DBPath)
				if err != nil {
					return fmt.Errorf("inspect migrations: %w", err)
				}
				if *jsonOutput {
					return writeJSON(plan)
				}
				return writeMigrationPlan(plan)
			}

			// Opening the store applies pending migrations, as the server does.
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			if err := st.Close(); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			if *jsonOutput {
				plan, err := migrationPlan(cfg.DBPath)
				if err != nil {
					return err
				}
				return writeJSON(plan)
			}
			return writePlain("Migrations applied successfully.\n")
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show pending migrations without applying")
	cmd.Flags().BoolVar(&inspect, "inspect", false, "show migration status")

	return cmd
}

func migrationPlan(path string) (*store.MigrationStatus, error) {
	db, err := openRawDB(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return store.MigrationPlan(db)
}

func writeMigrationPlan(plan *store.MigrationStatus) error {
	_ = writePlain("Current version: %d\n", plan.CurrentVersion)
	_ = writePlain("Available version: %d\n", plan.AvailableVersion)
	if plan.CurrentVersion > plan.AvailableVersion {
		return writePlain("Database was migrated by a newer bfile; upgrade before running the server.\n")
	}
	if len(plan.Pending) == 0 {
		return writePlain("No pending migrations.\n")
	}
	_ = writePlain("Pending migrations: %d\n", len(plan.Pending))
	for _, m := range plan.Pending {
		_ = writePlain("  %d: %s\n", m.Version, m.Description)
	}
	return nil
}

func openRawDB(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("db path is required")
	}
	u := url.URL{Scheme: "file", Path: path}
	return sql.Open("sqlite", u.String())
}
