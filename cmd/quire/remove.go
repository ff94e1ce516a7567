package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/quireapp/quire"
	"github.com/quireapp/quire/config"
)

var removeCmd = &cobra.Command{
	Use:   "remove [flags] <id1> [id2] ...",
	Short: "Remove books from the library",
	Long: `Remove books from the library by id.

The stored file is deleted from the provider that holds it first, then
the metadata row is removed from its shard. If the provider delete
fails the metadata row is kept so the file stays reachable.

Examples:
  # Remove a single book
  quire remove 6f1c7a1e-9f2b-4c43-b2d5-7f0b2f9a9b11

  # Remove several books, ignoring unknown ids
  quire remove -q id1 id2 id3`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

var removeQuiet bool

func init() {
	removeCmd.Flags().BoolVarP(&removeQuiet, "quiet", "q", false, "suppress per-book output")
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	st, err := buildStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	removed := 0
	notFound := 0

	for _, id := range args {
		deleteErr := st.service.Delete(ctx, id)
		if errors.Is(deleteErr, quire.ErrNotFound) {
			notFound++
			if !removeQuiet {
				slog.Warn("not found", "id", id)
			}
			continue
		}
		if deleteErr != nil {
			return fmt.Errorf("remove %s: %w", id, deleteErr)
		}
		removed++
		if !removeQuiet {
			slog.Info("removed", "id", id)
		}
	}

	slog.Info("remove complete", "removed", removed, "not_found", notFound)
	return nil
}
