package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/quireapp/quire/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "quire",
	Short:   "Personal e-book library with sharded metadata and cascading storage",
	Long: `Quire is a personal e-book library server. Book metadata lives in a
set of SQL shards selected by hashing the book id; book files are pushed
through an ordered cascade of storage providers until one accepts them.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFiles, _ := cmd.Flags().GetStringSlice("config")

		cfg, err := config.Load(configFiles, cmd.Flags())
		if err != nil {
			return err
		}
		setupLogging(cfg.Log)

		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringSlice("config", nil, "config file path(s), later files override earlier ones (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("db-type", "", "database type: sqlite, postgres (env: QUIRE_DATABASE_TYPE)")
	rootCmd.PersistentFlags().StringSlice("db-shard", nil, "shard DSN, repeatable; order and count must stay stable")
	rootCmd.PersistentFlags().String("db-table", "", "books table name (env: QUIRE_DATABASE_TABLE)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
