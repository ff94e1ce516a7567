package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quireapp/quire"
	"github.com/quireapp/quire/database/sqlite"
	"github.com/quireapp/quire/shard"

	_ "modernc.org/sqlite" // SQLite driver
)

// setupTestRepo builds a repo over n freshly migrated shard databases in
// a temp dir. File-backed databases, not :memory:, because every pooled
// connection to :memory: would see its own empty database.
func setupTestRepo(t *testing.T, n int) quire.BookRepo {
	t.Helper()

	ctx := context.Background()
	dir := t.TempDir()
	tables := quire.Tables{Books: "books"}

	conns := make([]*sql.DB, n)
	for i := range conns {
		db, err := sql.Open("sqlite", filepath.Join(dir, fmt.Sprintf("shard-%d.db", i)))
		require.NoError(t, err, "open shard %d", i)
		t.Cleanup(func() { _ = db.Close() })

		require.NoError(t, sqlite.Migrate(ctx, db, tables), "migrate shard %d", i)
		require.NoError(t, sqlite.ValidateSchema(ctx, db, tables), "validate shard %d", i)
		conns[i] = db
	}

	router, err := shard.NewRouter(conns, n)
	require.NoError(t, err)

	repo, err := sqlite.NewRepo(router, tables)
	require.NoError(t, err)

	return repo
}

func testEntry(id string) quire.BookEntry {
	return quire.BookEntry{
		ID:            id,
		Title:         "The Name of the Wind",
		Author:        "Patrick Rothfuss",
		Format:        "epub",
		ContentType:   "application/epub+zip",
		FileSizeBytes: 2048,
		Provider:      "dropbox",
		StorageID:     "/library/" + id + ".epub",
	}
}
