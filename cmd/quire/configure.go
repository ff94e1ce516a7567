package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/quireapp/quire/storage"
)

var configureCmd = &cobra.Command{
	Use:   "configure [file]",
	Short: "Interactively write a server config file",
	Long: `Write a server configuration file interactively.

You will be prompted for the server port, the database shard set and
one or more storage providers with their credentials. The resulting
YAML file can be passed to other commands via --config.

Examples:
  # Write ./config.yaml
  quire configure

  # Write a custom path
  quire configure /etc/quire/config.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigure,
}

func init() {
	rootCmd.AddCommand(configureCmd)
}

// fileConfig mirrors config.Config with yaml tags for writing.
type fileConfig struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		Type   string   `yaml:"type"`
		Shards []string `yaml:"shards"`
		Table  string   `yaml:"table"`
	} `yaml:"database"`
	Providers []providerEntry `yaml:"providers"`
	Log       struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

type providerEntry struct {
	Kind     string `yaml:"kind"`
	Priority int    `yaml:"priority"`
	Token    string `yaml:"token,omitempty"`
	Folder   string `yaml:"folder,omitempty"`
	KeyID    string `yaml:"key_id,omitempty"`
	AppKey   string `yaml:"app_key,omitempty"`
	Bucket   string `yaml:"bucket,omitempty"`
	UserHash string `yaml:"user_hash,omitempty"`
	ChatID   string `yaml:"chat_id,omitempty"`
	Owner    string `yaml:"owner,omitempty"`
	Repo     string `yaml:"repo,omitempty"`
	Branch   string `yaml:"branch,omitempty"`
}

func runConfigure(_ *cobra.Command, args []string) error {
	path := "config.yaml"
	if len(args) > 0 {
		path = args[0]
	}

	if _, err := os.Stat(path); err == nil {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("%s already exists. Overwrite it", path),
			IsConfirm: true,
		}
		if _, promptErr := prompt.Run(); promptErr != nil {
			fmt.Println("Cancelled.")
			return nil //nolint:nilerr // User cancelled, not an error
		}
	}

	var cfg fileConfig

	port, err := promptInt("Server port", "5712", 1, 65535)
	if err != nil {
		return handlePromptError(err)
	}
	cfg.Server.Port = port

	dbType, err := promptSelect("Database type", []string{"sqlite", "postgres"})
	if err != nil {
		return handlePromptError(err)
	}
	cfg.Database.Type = dbType

	shards, err := promptShards(dbType)
	if err != nil {
		return handlePromptError(err)
	}
	cfg.Database.Shards = shards

	table, err := promptString("Books table name", "books", 0)
	if err != nil {
		return handlePromptError(err)
	}
	cfg.Database.Table = table

	for {
		entry, done, promptErr := promptProvider(len(cfg.Providers) + 1)
		if promptErr != nil {
			return handlePromptError(promptErr)
		}
		if done {
			break
		}
		cfg.Providers = append(cfg.Providers, entry)
	}

	if len(cfg.Providers) == 0 {
		fmt.Println("No providers configured; the serve command will refuse to start until at least one is added.")
	}

	cfg.Log.Level = "info"
	cfg.Log.Format = "text"

	out, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	// Provider credentials live in this file.
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Wrote %s.\n", path)
	return nil
}

// promptShards collects the shard DSN list. The shard order and count
// pin every book to its shard, so the prompt spells that out.
func promptShards(dbType string) ([]string, error) {
	fmt.Println("Shard order and count are permanent; changing them strands existing rows.")

	if dbType == "sqlite" {
		count, err := promptInt("Number of shards", "4", 1, 64)
		if err != nil {
			return nil, err
		}
		shards := make([]string, count)
		for i := range shards {
			shards[i] = fmt.Sprintf("quire-shard-%d.db", i)
		}
		return shards, nil
	}

	raw, err := promptString("Shard DSNs (comma separated)", "", 0)
	if err != nil {
		return nil, err
	}
	var shards []string
	for _, dsn := range strings.Split(raw, ",") {
		dsn = strings.TrimSpace(dsn)
		if dsn != "" {
			shards = append(shards, dsn)
		}
	}
	if len(shards) == 0 {
		return nil, errors.New("at least one shard DSN is required")
	}
	return shards, nil
}

// promptProvider collects one provider entry. Returns done=true when
// the operator picks the terminating menu item.
func promptProvider(priority int) (providerEntry, bool, error) {
	items := []string{"(done)"}
	for _, k := range storage.Kinds() {
		items = append(items, string(k))
	}

	kind, err := promptSelect(fmt.Sprintf("Storage provider #%d", priority), items)
	if err != nil {
		return providerEntry{}, false, err
	}
	if kind == "(done)" {
		return providerEntry{}, true, nil
	}

	entry := providerEntry{Kind: kind, Priority: priority}

	switch storage.Kind(kind) {
	case storage.KindDropbox:
		if entry.Token, err = promptString("Dropbox access token", "", '*'); err != nil {
			return providerEntry{}, false, err
		}
		if entry.Folder, err = promptString("Dropbox folder", "/quire", 0); err != nil {
			return providerEntry{}, false, err
		}
	case storage.KindBackblaze:
		if entry.KeyID, err = promptString("Backblaze key id", "", 0); err != nil {
			return providerEntry{}, false, err
		}
		if entry.AppKey, err = promptString("Backblaze application key", "", '*'); err != nil {
			return providerEntry{}, false, err
		}
		if entry.Bucket, err = promptString("Backblaze bucket id", "", 0); err != nil {
			return providerEntry{}, false, err
		}
	case storage.KindGofile, storage.KindPixeldrain:
		if entry.Token, err = promptString("API token", "", '*'); err != nil {
			return providerEntry{}, false, err
		}
	case storage.KindCatbox:
		if entry.UserHash, err = promptString("Catbox user hash", "", '*'); err != nil {
			return providerEntry{}, false, err
		}
	case storage.KindTelegram:
		if entry.Token, err = promptString("Bot token", "", '*'); err != nil {
			return providerEntry{}, false, err
		}
		if entry.ChatID, err = promptString("Chat id", "", 0); err != nil {
			return providerEntry{}, false, err
		}
	case storage.KindGitHub:
		if entry.Token, err = promptString("GitHub token", "", '*'); err != nil {
			return providerEntry{}, false, err
		}
		if entry.Owner, err = promptString("Repository owner", "", 0); err != nil {
			return providerEntry{}, false, err
		}
		if entry.Repo, err = promptString("Base repository name", "quire-books", 0); err != nil {
			return providerEntry{}, false, err
		}
	case storage.KindFileIO, storage.KindTransferSh, storage.KindNullPointer:
		// Anonymous upload hosts; nothing to ask.
	}

	return entry, false, nil
}

func promptString(label, def string, mask rune) (string, error) {
	prompt := promptui.Prompt{
		Label:   label,
		Default: def,
		Mask:    mask,
	}
	return prompt.Run()
}

func promptInt(label, def string, minVal, maxVal int) (int, error) {
	prompt := promptui.Prompt{
		Label:   label,
		Default: def,
		Validate: func(input string) error {
			n, err := strconv.Atoi(input)
			if err != nil {
				return errors.New("enter a number")
			}
			if n < minVal || n > maxVal {
				return fmt.Errorf("must be between %d and %d", minVal, maxVal)
			}
			return nil
		},
	}
	raw, err := prompt.Run()
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(raw)
}

func promptSelect(label string, items []string) (string, error) {
	sel := promptui.Select{
		Label: label,
		Items: items,
	}
	_, choice, err := sel.Run()
	return choice, err
}

// handlePromptError handles promptui errors.
func handlePromptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) {
		fmt.Println("\nCancelled.")
		os.Exit(0)
	}
	if errors.Is(err, promptui.ErrAbort) {
		fmt.Println("Cancelled.")
		return nil
	}
	return err
}
