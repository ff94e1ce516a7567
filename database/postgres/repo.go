// Package postgres implements the sharded book repo using PostgreSQL
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

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
	err := s.Scan(
		&b.ID, &b.Title, &b.Author, &b.Format, &b.ContentType, &b.FileSizeBytes,
		&b.Provider, &b.StorageID, &b.LocatorURL, &b.ReadPosition, &b.ReadPercent,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return quire.Book{}, err
	}
	return b, nil
}

func (r *Repo) Get(ctx context.Context, id string) (quire.Book, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s FROM %s WHERE id = $1`, bookColumns, r.tableName)

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
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (id, title, author, format, content_type, file_size_bytes,
			provider, storage_id, locator_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title,
			author = EXCLUDED.author,
			format = EXCLUDED.format,
			content_type = EXCLUDED.content_type,
			file_size_bytes = EXCLUDED.file_size_bytes,
			provider = EXCLUDED.provider,
			storage_id = EXCLUDED.storage_id,
			locator_url = EXCLUDED.locator_url,
			updated_at = NOW()
		RETURNING %s, (xmax = 0) AS inserted`, r.tableName, bookColumns)

	var b quire.Book
	var inserted bool
	err := r.router.ForKey(entry.ID).QueryRowContext(ctx, query,
		entry.ID, entry.Title, entry.Author, entry.Format, entry.ContentType,
		entry.FileSizeBytes, entry.Provider, entry.StorageID, entry.LocatorURL,
	).Scan(
		&b.ID, &b.Title, &b.Author, &b.Format, &b.ContentType, &b.FileSizeBytes,
		&b.Provider, &b.StorageID, &b.LocatorURL, &b.ReadPosition, &b.ReadPercent,
		&b.CreatedAt, &b.UpdatedAt, &inserted,
	)
	if err != nil {
		return quire.Book{}, false, fmt.Errorf("upsert: %w", err)
	}

	return b, inserted, nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`DELETE FROM %s WHERE id = $1`, r.tableName)

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
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s
		SET read_position = $1, read_percent = $2, updated_at = NOW()
		WHERE id = $3`, r.tableName)

	result, err := r.router.ForKey(id).ExecContext(ctx, query, p.Position, p.Percent, id)
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
		query += ` WHERE title ILIKE $1 ESCAPE '\' OR author ILIKE $2 ESCAPE '\'`
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
