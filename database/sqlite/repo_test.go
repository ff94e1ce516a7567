package sqlite_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quireapp/quire"
)

func TestUpsertInsertAndGet(t *testing.T) {
	repo := setupTestRepo(t, 3)
	ctx := context.Background()

	stored, inserted, err := repo.Upsert(ctx, testEntry("book-1"))
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, "book-1", stored.ID)
	assert.Equal(t, "The Name of the Wind", stored.Title)
	assert.False(t, stored.CreatedAt.IsZero())
	assert.Equal(t, stored.CreatedAt, stored.UpdatedAt)

	got, err := repo.Get(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, stored, got)
}

func TestUpsertUpdatePreservesCreatedAt(t *testing.T) {
	repo := setupTestRepo(t, 3)
	ctx := context.Background()

	first, inserted, err := repo.Upsert(ctx, testEntry("book-1"))
	require.NoError(t, err)
	require.True(t, inserted)

	entry := testEntry("book-1")
	entry.Title = "The Wise Man's Fear"
	entry.Provider = "backblaze"
	entry.StorageID = "file-9:book-1.epub"

	second, inserted, err := repo.Upsert(ctx, entry)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, "The Wise Man's Fear", second.Title)
	assert.Equal(t, "backblaze", second.Provider)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestGetNotFound(t *testing.T) {
	repo := setupTestRepo(t, 3)

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, quire.ErrNotFound)
}

func TestDelete(t *testing.T) {
	repo := setupTestRepo(t, 3)
	ctx := context.Background()

	_, _, err := repo.Upsert(ctx, testEntry("book-1"))
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, "book-1"))

	_, err = repo.Get(ctx, "book-1")
	assert.ErrorIs(t, err, quire.ErrNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, "book-1"), quire.ErrNotFound)
}

func TestUpdateProgress(t *testing.T) {
	repo := setupTestRepo(t, 3)
	ctx := context.Background()

	_, _, err := repo.Upsert(ctx, testEntry("book-1"))
	require.NoError(t, err)

	err = repo.UpdateProgress(ctx, "book-1", quire.Progress{Position: "chapter-12", Percent: 41.5})
	require.NoError(t, err)

	got, err := repo.Get(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, "chapter-12", got.ReadPosition)
	assert.InDelta(t, 41.5, got.ReadPercent, 1e-9)
}

func TestUpdateProgressNotFound(t *testing.T) {
	repo := setupTestRepo(t, 3)

	err := repo.UpdateProgress(context.Background(), "missing", quire.Progress{Percent: 10})
	assert.ErrorIs(t, err, quire.ErrNotFound)
}

func TestListMergesAllShards(t *testing.T) {
	repo := setupTestRepo(t, 5)
	ctx := context.Background()

	ids := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("book-%02d", i)
		entry := testEntry(id)
		entry.Title = fmt.Sprintf("Volume %02d", i)
		_, _, err := repo.Upsert(ctx, entry)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	result, err := repo.List(ctx, quire.ListQuery{})
	require.NoError(t, err)
	assert.False(t, result.Degraded)
	require.Len(t, result.Books, len(ids))

	got := make([]string, 0, len(result.Books))
	for _, b := range result.Books {
		got = append(got, b.ID)
	}
	assert.ElementsMatch(t, ids, got)
}

func TestListSearchMatchesTitleOrAuthor(t *testing.T) {
	repo := setupTestRepo(t, 3)
	ctx := context.Background()

	entries := []quire.BookEntry{
		{ID: "a", Title: "Dune", Author: "Frank Herbert", ContentType: "x", Provider: "p", StorageID: "s"},
		{ID: "b", Title: "Dune Messiah", Author: "Frank Herbert", ContentType: "x", Provider: "p", StorageID: "s"},
		{ID: "c", Title: "Hyperion", Author: "Dan Simmons", ContentType: "x", Provider: "p", StorageID: "s"},
	}
	for _, e := range entries {
		_, _, err := repo.Upsert(ctx, e)
		require.NoError(t, err)
	}

	byTitle, err := repo.List(ctx, quire.ListQuery{Search: "Dune"})
	require.NoError(t, err)
	assert.Len(t, byTitle.Books, 2)

	byAuthor, err := repo.List(ctx, quire.ListQuery{Search: "Simmons"})
	require.NoError(t, err)
	require.Len(t, byAuthor.Books, 1)
	assert.Equal(t, "c", byAuthor.Books[0].ID)

	none, err := repo.List(ctx, quire.ListQuery{Search: "Asimov"})
	require.NoError(t, err)
	assert.Empty(t, none.Books)
}

func TestListSearchTreatsWildcardsLiterally(t *testing.T) {
	repo := setupTestRepo(t, 3)
	ctx := context.Background()

	entries := []quire.BookEntry{
		{ID: "a", Title: "100% Proof", Author: "n", ContentType: "x", Provider: "p", StorageID: "s"},
		{ID: "b", Title: "100 Years", Author: "n", ContentType: "x", Provider: "p", StorageID: "s"},
	}
	for _, e := range entries {
		_, _, err := repo.Upsert(ctx, e)
		require.NoError(t, err)
	}

	result, err := repo.List(ctx, quire.ListQuery{Search: "100%"})
	require.NoError(t, err)
	require.Len(t, result.Books, 1)
	assert.Equal(t, "a", result.Books[0].ID)
}

func TestListLimit(t *testing.T) {
	repo := setupTestRepo(t, 3)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, _, err := repo.Upsert(ctx, testEntry(fmt.Sprintf("book-%d", i)))
		require.NoError(t, err)
	}

	result, err := repo.List(ctx, quire.ListQuery{Limit: 4})
	require.NoError(t, err)
	assert.Len(t, result.Books, 4)
}
