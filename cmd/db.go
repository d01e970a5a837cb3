package cmd

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/reelkit/config"
	"github.com/otherjamesbrown/reelkit/pkg/db"
)

// DbCommandDeps holds the dependencies for database commands.
type DbCommandDeps struct {
	Config      *config.CLIConfig
	LoadConfig  func() (*config.CLIConfig, error)
	ConnectToDB func(context.Context, *config.CLIConfig) (db.Querier, func(), error)
	// Migrations overrides the embedded migration files.
	Migrations fs.FS
}

// DefaultDbDeps returns the default dependencies for production use.
func DefaultDbDeps() *DbCommandDeps {
	return &DbCommandDeps{
		LoadConfig: config.LoadConfig,
		ConnectToDB: func(ctx context.Context, cfg *config.CLIConfig) (db.Querier, func(), error) {
			pool, err := connectToDatabase(ctx, cfg)
			if err != nil {
				return nil, nil, err
			}
			return pool, pool.Close, nil
		},
	}
}

func (d *DbCommandDeps) config() (*config.CLIConfig, error) {
	if d.Config != nil {
		return d.Config, nil
	}
	cfg, err := d.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	d.Config = cfg
	return cfg, nil
}

// NewDbCommand creates the root db command with all subcommands.
func NewDbCommand(deps *DbCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultDbDeps()
	}
	var migrationDir string

	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands for the reelkit project store.

Manage database schema migrations and view migration status.

The db command connects directly to the PostgreSQL database configured in
the database block of the config file or by REELKIT_DB_* variables.

Migrations ship inside the binary. Use --migrations to apply SQL files from
a directory instead. Files are named with numeric prefixes (for example
001_projects.sql), applied in order and tracked in the schema_migrations
table.

Examples:
  # Show migration status
  reelkit db status

  # Apply all pending migrations
  reelkit db migrate

  # Preview migrations without applying
  reelkit db migrate --dry-run`,
		Aliases: []string{"database", "migrations"},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if migrationDir != "" {
				deps.Migrations = os.DirFS(migrationDir)
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&migrationDir, "migrations", "m", "", "Path to a migrations directory (default: embedded)")

	cmd.AddCommand(newDbMigrateCommand(deps))
	cmd.AddCommand(newDbStatusCommand(deps))

	return cmd
}

func (d *DbCommandDeps) migrations() fs.FS {
	if d.Migrations != nil {
		return d.Migrations
	}
	return db.Migrations()
}

func newDbMigrateCommand(deps *DbCommandDeps) *cobra.Command {
	var (
		dryRun bool
		target string
		yes    bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply pending database migrations.

Shows pending migrations before applying them. Each migration runs in a
transaction and is recorded in the schema_migrations table. If a migration
fails, it is rolled back and no further migrations are attempted.`,
		Example: `  reelkit db migrate
  reelkit db migrate --dry-run
  reelkit db migrate --target 002_render_jobs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDbMigrate(cmd, deps, dryRun, target, yes)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be applied without executing")
	cmd.Flags().StringVarP(&target, "target", "t", "", "Target version to migrate to (e.g., 002_render_jobs)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Apply without confirmation")

	return cmd
}

func newDbStatusCommand(deps *DbCommandDeps) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show database migration status",
		Long: `Show the current state of database migrations.

Displays three categories of migrations:
  - Applied: migrations that have been applied and have corresponding files
  - Pending: migrations with files that have not been applied yet
  - Drift: migrations that were applied but no longer have corresponding files`,
		Example: `  reelkit db status
  reelkit db status --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDbStatus(cmd, deps, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: text, json, yaml")
	cmd.Flags().StringVarP(&output, "format", "f", "", "Output format: text, json, yaml (alias for --output)")

	return cmd
}

func runDbMigrate(cmd *cobra.Command, deps *DbCommandDeps, dryRun bool, target string, yes bool) error {
	cfg, err := deps.config()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	q, closeDB, err := deps.ConnectToDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer closeDB()

	status, err := db.GetMigrationStatus(ctx, q, deps.migrations())
	if err != nil {
		return fmt.Errorf("getting migration status: %w", err)
	}
	if len(status.Pending) == 0 {
		fmt.Fprintln(out, "No pending migrations.")
		return nil
	}

	fmt.Fprintf(out, "Pending migrations (%d):\n", len(status.Pending))
	for _, m := range status.Pending {
		fmt.Fprintf(out, "  %s - %s\n", m.Version, m.Name)
	}
	fmt.Fprintln(out)

	if dryRun {
		fmt.Fprintln(out, "Dry run mode: no migrations applied.")
		return nil
	}
	if !yes && !confirm(cmd.InOrStdin(), out, "Apply these migrations? (y/N): ") {
		fmt.Fprintln(out, "Migration cancelled.")
		return nil
	}

	if target != "" {
		fmt.Fprintf(out, "Applying migrations up to version %s...\n", target)
	} else {
		fmt.Fprintln(out, "Applying all pending migrations...")
	}
	result, err := db.RunMigrations(ctx, q, deps.migrations(), target)
	if err != nil {
		fmt.Fprintf(out, "\n\033[31mMigration failed:\033[0m %v\n", err)
		if result != nil && len(result.Applied) > 0 {
			fmt.Fprintf(out, "\nSuccessfully applied before failure:\n")
			for _, v := range result.Applied {
				fmt.Fprintf(out, "  \033[32m✓\033[0m %s\n", v)
			}
		}
		return err
	}

	fmt.Fprintln(out)
	if len(result.Applied) > 0 {
		fmt.Fprintf(out, "\033[32mSuccessfully applied %d migration(s):\033[0m\n", len(result.Applied))
		for _, v := range result.Applied {
			fmt.Fprintf(out, "  \033[32m✓\033[0m %s\n", v)
		}
	}
	if len(result.Skipped) > 0 {
		fmt.Fprintf(out, "\nSkipped %d migration(s) (already applied):\n", len(result.Skipped))
		for _, v := range result.Skipped {
			fmt.Fprintf(out, "  - %s\n", v)
		}
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "\033[32mMigrations completed successfully.\033[0m")
	return nil
}

func runDbStatus(cmd *cobra.Command, deps *DbCommandDeps, output string) error {
	cfg, err := deps.config()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	q, closeDB, err := deps.ConnectToDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer closeDB()

	status, err := db.GetMigrationStatus(ctx, q, deps.migrations())
	if err != nil {
		return fmt.Errorf("getting migration status: %w", err)
	}
	if done, err := writeStructured(cmd.OutOrStdout(), outputFormat(cfg, output), status); done {
		return err
	}
	return outputMigrationStatusText(cmd.OutOrStdout(), status)
}

// outputMigrationStatusText formats migration status for terminal display.
func outputMigrationStatusText(w io.Writer, status *db.MigrationStatus) error {
	printEntries := func(title string, entries []db.MigrationStatusEntry, withApplied bool) {
		if len(entries) == 0 {
			return
		}
		fmt.Fprintln(w, title)
		if withApplied {
			fmt.Fprintln(w, "  VERSION                    NAME                              APPLIED")
			fmt.Fprintln(w, "  -------                    ----                              -------")
		} else {
			fmt.Fprintln(w, "  VERSION                    NAME")
			fmt.Fprintln(w, "  -------                    ----")
		}
		for _, m := range entries {
			if !withApplied {
				fmt.Fprintf(w, "  %-26s %s\n", truncateString(m.Version, 26), m.Name)
				continue
			}
			appliedAt := "-"
			if m.AppliedAt != nil {
				appliedAt = m.AppliedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "  %-26s %-33s %s\n",
				truncateString(m.Version, 26), truncateString(m.Name, 33), appliedAt)
		}
		fmt.Fprintln(w)
	}

	printEntries(fmt.Sprintf("\033[32mApplied Migrations (%d):\033[0m", len(status.Applied)), status.Applied, true)
	printEntries(fmt.Sprintf("\033[33mPending Migrations (%d):\033[0m", len(status.Pending)), status.Pending, false)
	printEntries(fmt.Sprintf("\033[31mDrift (%d) - applied but file missing:\033[0m", len(status.Drift)), status.Drift, true)

	if len(status.Applied) == 0 && len(status.Pending) == 0 && len(status.Drift) == 0 {
		fmt.Fprintln(w, "No migrations found.")
		return nil
	}
	fmt.Fprintf(w, "Summary: %d applied, %d pending", len(status.Applied), len(status.Pending))
	if len(status.Drift) > 0 {
		fmt.Fprintf(w, ", \033[31m%d drift\033[0m", len(status.Drift))
	}
	fmt.Fprintln(w)
	return nil
}
