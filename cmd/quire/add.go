package main

import (
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quireapp/quire"
	"github.com/quireapp/quire/config"
)

var addCmd = &cobra.Command{
	Use:   "add [flags] <file1> [file2] ...",
	Short: "Import e-book files into the library",
	Long: `Import e-book files from local paths into the library.

Each file is uploaded through the storage provider cascade and its
metadata is written to the shard that owns the generated book id.

Examples:
  # Add a single book
  quire add dune.epub

  # Add with explicit metadata
  quire add --title "Dune" --author "Frank Herbert" dune.epub

  # Add several books at once
  quire add *.epub`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

var (
	addTitle  string
	addAuthor string
	addQuiet  bool
)

func init() {
	addCmd.Flags().StringVarP(&addTitle, "title", "t", "", "book title (single file only, default: file name)")
	addCmd.Flags().StringVarP(&addAuthor, "author", "a", "", "book author")
	addCmd.Flags().BoolVarP(&addQuiet, "quiet", "q", false, "suppress per-book output")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	if addTitle != "" && len(args) > 1 {
		return fmt.Errorf("--title only applies to a single file, got %d", len(args))
	}

	st, err := buildStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	added := 0
	for _, path := range args {
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return fmt.Errorf("read %s: %w", path, readErr)
		}

		format := strings.TrimPrefix(filepath.Ext(path), ".")

		title := addTitle
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}

		create := quire.CreateBook{
			Title:       title,
			Author:      addAuthor,
			Format:      format,
			ContentType: detectContentType(path),
		}

		book, addErr := st.service.Add(ctx, create, data)
		if addErr != nil {
			return fmt.Errorf("add %s: %w", path, addErr)
		}

		added++
		if !addQuiet {
			slog.Info("added",
				"id", book.ID,
				"title", book.Title,
				"provider", book.Provider,
			)
		}
	}

	slog.Info("add complete", "added", added)
	return nil
}

// E-book extensions the platform mime table usually misses.
func init() {
	_ = mime.AddExtensionType(".epub", "application/epub+zip")
	_ = mime.AddExtensionType(".mobi", "application/x-mobipocket-ebook")
	_ = mime.AddExtensionType(".azw3", "application/vnd.amazon.ebook")
	_ = mime.AddExtensionType(".fb2", "application/x-fictionbook+xml")
}

// detectContentType determines the MIME type from a file's extension.
func detectContentType(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return "application/octet-stream"
	}

	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		return "application/octet-stream"
	}

	return contentType
}
