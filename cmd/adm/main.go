// Package main provides the civic issues admin CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/civic_issues/cmd/adm/commands"
	"github.com/civic_issues/internal/config"
	"github.com/civic_issues/internal/repositories"
	"github.com/civic_issues/internal/services"
	"github.com/civic_issues/pkg/db"
	"github.com/civic_issues/pkg/logger"
)

func main() {
	config.LoadConfig()
	cfg := config.AppConfig
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// The admin tool only reports problems; command output goes to stdout.
	log := logger.MustNew("error", cfg.AppEnv)
	defer func() { _ = log.Sync() }()

	gormDB, err := db.Open(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(gormDB); err != nil {
			log.Warn("Error closing database", zap.Error(err))
		}
	}()

	repo := repositories.NewGormIssueRepository(gormDB)
	policy, err := services.ParseTransitionPolicy(cfg.TransitionPolicy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	service := services.NewIssueService(repo, services.WithLogger(log), services.WithTransitionPolicy(policy))

	rootCmd := &cobra.Command{
		Use:   "adm",
		Short: "Civic Issues administration tool",
		Long: `Civic Issues administration tool

Provides database maintenance and issue triage commands that run
directly against the configured database.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				fmt.Printf("Error showing help: %v\n", err)
			}
		},
	}

	rootCmd.AddCommand(commands.DatabaseCommands(gormDB, repo, log))
	rootCmd.AddCommand(commands.IssueCommands(service))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
