package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/quireapp/quire/config"
	"github.com/quireapp/quire/database"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the books table on every shard",
	Long: `Connect to every configured shard, run migrations and validate the
resulting schema. This is useful when:
  - Setting up Quire against a fresh shard set
  - Adding the books table to a new database
  - Verifying that every shard is reachable before serving`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	// Connect migrates and validates each shard on the way in.
	_, router, closeDB, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer closeDB()

	slog.Info("initialization complete",
		"type", cfg.Database.Type,
		"shards", router.Count(),
		"table", cfg.Database.Table,
	)
	return nil
}
