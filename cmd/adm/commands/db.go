// Package commands provides the admin CLI subcommands.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/civic_issues/internal/repositories"
	"github.com/civic_issues/internal/seed"
	"github.com/civic_issues/pkg/db"
)

// DatabaseCommands returns the database management commands.
func DatabaseCommands(gormDB *gorm.DB, repo repositories.IssueRepository, log *zap.Logger) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands.

Available commands:
  migrate   - Create or update the issue tables
  seed      - Insert the sample issues into an empty database`,
	}

	dbCmd.AddCommand(migrateCmd(gormDB))
	dbCmd.AddCommand(seedCmd(repo, log))

	return dbCmd
}

func migrateCmd(gormDB *gorm.DB) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the issue tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := db.Migrate(gormDB); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migration complete")
			return nil
		},
	}
}

func seedCmd(repo repositories.IssueRepository, log *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the sample issues into an empty database",
		Long: `Insert the sample issues into an empty database.

Nothing is written when the issues table already has rows.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := seed.Run(cmd.Context(), repo, log)
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Database already contains issues, nothing seeded")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d issues\n", n)
			return nil
		},
	}
}
