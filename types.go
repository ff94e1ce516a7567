package quire

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Book is a single library entry. ID is the record key: it selects the
// metadata shard and never changes after the first write. Provider,
// StorageID and LocatorURL together form the storage object locator for
// the uploaded file; they are plain columns here and only the service
// layer correlates them with the storage gateway.
type Book struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	Format        string    `json:"format"`
	ContentType   string    `json:"content_type"`
	FileSizeBytes int64     `json:"file_size_bytes"`
	Provider      string    `json:"provider"`
	StorageID     string    `json:"storage_id"`
	LocatorURL    string    `json:"locator_url,omitempty"`
	ReadPosition  string    `json:"read_position,omitempty"`
	ReadPercent   float64   `json:"read_percent"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BookEntry is the write-side payload for a metadata row.
type BookEntry struct {
	ID            string
	Title         string
	Author        string
	Format        string
	ContentType   string
	FileSizeBytes int64
	Provider      string
	StorageID     string
	LocatorURL    string
}

// Progress is a reader position update.
type Progress struct {
	Position string  `json:"position"`
	Percent  float64 `json:"percent"`
}

// CreateBook carries the caller-supplied attributes of a new book; the
// file bytes travel separately.
type CreateBook struct {
	Title       string
	Author      string
	Format      string
	ContentType string
}

// ListQuery filters a fan-out listing. Search matches title or author as
// a substring. Limit caps the merged result; zero means no cap.
type ListQuery struct {
	Search string
	Limit  int
}

// ListResult is the merged outcome of a fan-out query. Degraded is set
// when one or more shards failed to contribute rows; FailedShards names
// them so callers can tell a full result from a partial one.
type ListResult struct {
	Books        []Book `json:"books"`
	Degraded     bool   `json:"degraded"`
	FailedShards []int  `json:"failed_shards,omitempty"`
}

var validBookIDRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// IsValidBookID reports whether id is usable as a record key. Keys end up
// in provider object names and SQL rows, so the character set is kept
// narrow.
func IsValidBookID(id string) bool {
	return id != "" && len(id) <= 128 && validBookIDRegex.MatchString(id)
}

// Tables holds configurable table names for book metadata. Every shard
// uses the same table name.
type Tables struct {
	Books string `mapstructure:"books"`
}

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsValidTableName checks if a table name is valid (lowercase, alphanumeric with underscores, max 63 chars).
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}

// Validate checks that all required table names are set and valid.
func (t Tables) Validate() error {
	if t.Books == "" {
		return errors.New("validate tables: books table name cannot be empty")
	}

	if !IsValidTableName(t.Books) {
		return fmt.Errorf("validate tables: invalid books table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars)", t.Books)
	}

	return nil
}
