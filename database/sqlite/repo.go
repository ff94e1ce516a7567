// Package sqlite implements the sharded book repo using SQLite
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/quireapp/quire"
	"github.com/quireapp/quire/database/internal"
	"github.com/quireapp/quire/shard"
)

const bookColumns = `id, title, author, format, content_type, file_size_bytes,
	provider, storage_id, locator_url, read_position, read_percent, created_at, updated_at`

// Repo implements quire.BookRepo over a shard router. Single-key
// statements go to the shard owning the id; List fans out.
type Repo struct {
	router    *shard.Router
	tableName string
}

func NewRepo(router *shard.Router, tables quire.Tables) (*Repo, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new repo: %w", err)
	}

	return &Repo{router: router, tableName: tables.Books}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(s rowScanner) (quire.Book, error) {
	var b quire.Book
	var createdAt, updatedAt string

	err := s.Scan(
		&b.ID, &b.Title, &b.Author, &b.Format, &b.ContentType, &b.FileSizeBytes,
		&b.Provider, &b.StorageID, &b.LocatorURL, &b.ReadPosition, &b.ReadPercent,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return quire.Book{}, err
	}

	b.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return quire.Book{}, fmt.Errorf("parse created_at: %w", err)
	}

	b.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return quire.Book{}, fmt.Errorf("parse updated_at: %w", err)
	}

	return b, nil
}

func (r *Repo) Get(ctx context.Context, id string) (quire.Book, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s FROM %s WHERE id = ?`, bookColumns, r.tableName)

	b, err := scanBook(r.router.ForKey(id).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return quire.Book{}, quire.ErrNotFound
		}
		return quire.Book{}, fmt.Errorf("get: %w", err)
	}

	return b, nil
}

func (r *Repo) Upsert(ctx context.Context, entry quire.BookEntry) (quire.Book, bool, error) {
	s := r.router.ForKey(entry.ID)

	// Check if the row exists first to determine if this is an insert or update
	var existingCreatedAt string
	checkQuery := fmt.Sprintf(`SELECT created_at FROM %s WHERE id = ?`, r.tableName) //nolint:gosec // table name is validated
	err := s.QueryRowContext(ctx, checkQuery, entry.ID).Scan(&existingCreatedAt)
	isInsert := errors.Is(err, sql.ErrNoRows)
	if err != nil && !isInsert {
		return quire.Book{}, false, fmt.Errorf("upsert: check existing: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	if isInsert {
		insertQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
			`INSERT INTO %s (%s)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, '', 0, ?, ?)`, r.tableName, bookColumns)

		_, err = s.ExecContext(ctx, insertQuery,
			entry.ID, entry.Title, entry.Author, entry.Format, entry.ContentType,
			entry.FileSizeBytes, entry.Provider, entry.StorageID, entry.LocatorURL,
			now, now,
		)
		if err != nil {
			return quire.Book{}, false, fmt.Errorf("upsert: insert: %w", err)
		}
	} else {
		updateQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
			`UPDATE %s
			SET title = ?, author = ?, format = ?, content_type = ?, file_size_bytes = ?,
				provider = ?, storage_id = ?, locator_url = ?, updated_at = ?
			WHERE id = ?`, r.tableName)

		_, err = s.ExecContext(ctx, updateQuery,
			entry.Title, entry.Author, entry.Format, entry.ContentType, entry.FileSizeBytes,
			entry.Provider, entry.StorageID, entry.LocatorURL, now, entry.ID,
		)
		if err != nil {
			return quire.Book{}, false, fmt.Errorf("upsert: update: %w", err)
		}
	}

	stored, err := r.Get(ctx, entry.ID)
	if err != nil {
		return quire.Book{}, false, fmt.Errorf("upsert: read back: %w", err)
	}

	return stored, isInsert, nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`DELETE FROM %s WHERE id = ?`, r.tableName)

	result, err := r.router.ForKey(id).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete: rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("delete: %w", quire.ErrNotFound)
	}

	return nil
}

func (r *Repo) UpdateProgress(ctx context.Context, id string, p quire.Progress) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s
		SET read_position = ?, read_percent = ?, updated_at = ?
		WHERE id = ?`, r.tableName)

	result, err := r.router.ForKey(id).ExecContext(ctx, query, p.Position, p.Percent, now, id)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update progress: rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("update progress: %w", quire.ErrNotFound)
	}

	return nil
}

// List fans out to every shard and merges the rows. Failing shards are
// reported in the result, not as an error.
func (r *Repo) List(ctx context.Context, q quire.ListQuery) (quire.ListResult, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s FROM %s`, bookColumns, r.tableName)
	var args []any

	if q.Search != "" {
		pattern := "%" + internal.EscapeLikePattern(q.Search) + "%"
		query += ` WHERE title LIKE ? ESCAPE '\' OR author LIKE ? ESCAPE '\'`
		args = append(args, pattern, pattern)
	}
	query += ` ORDER BY created_at, id`

	var books []quire.Book
	failed, err := r.router.QueryAll(ctx, query, args, func(_ int, rows *sql.Rows) error {
		for rows.Next() {
			b, scanErr := scanBook(rows)
			if scanErr != nil {
				return scanErr
			}
			books = append(books, b)
		}
		return nil
	})
	if err != nil {
		return quire.ListResult{}, fmt.Errorf("list: %w", err)
	}

	mergeBooks(books)
	if q.Limit > 0 && len(books) > q.Limit {
		books = books[:q.Limit]
	}

	return quire.ListResult{
		Books:        books,
		Degraded:     len(failed) > 0,
		FailedShards: failed,
	}, nil
}

// mergeBooks orders the fan-out result so pagination is stable across
// shards: creation time first, id as tiebreak.
func mergeBooks(books []quire.Book) {
	sort.Slice(books, func(i, j int) bool {
		if !books[i].CreatedAt.Equal(books[j].CreatedAt) {
			return books[i].CreatedAt.Before(books[j].CreatedAt)
		}
		return books[i].ID < books[j].ID
	})
}
