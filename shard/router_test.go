package shard_test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quireapp/quire/shard"

	_ "modernc.org/sqlite" // SQLite driver
)

// openTestShards creates n sqlite-backed shard connections in a temp dir
// with a one-column table for routing tests.
func openTestShards(t *testing.T, n int) []*sql.DB {
	t.Helper()
	dir := t.TempDir()

	conns := make([]*sql.DB, n)
	for i := 0; i < n; i++ {
		db, err := sql.Open("sqlite", filepath.Join(dir, fmt.Sprintf("shard-%02d.db", i)))
		require.NoError(t, err, "open shard %d", i)
		t.Cleanup(func() { _ = db.Close() })

		_, err = db.ExecContext(context.Background(), `CREATE TABLE records (id TEXT NOT NULL PRIMARY KEY)`)
		require.NoError(t, err, "create table on shard %d", i)

		conns[i] = db
	}
	return conns
}

func collectIDs(ids *[]string) func(int, *sql.Rows) error {
	return func(_ int, rows *sql.Rows) error {
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			*ids = append(*ids, id)
		}
		return nil
	}
}

func TestNewRouter_Validation(t *testing.T) {
	conns := openTestShards(t, 3)

	t.Run("count mismatch", func(t *testing.T) {
		_, err := shard.NewRouter(conns, 10)
		assert.Error(t, err)
	})

	t.Run("nonpositive count", func(t *testing.T) {
		_, err := shard.NewRouter(nil, 0)
		assert.Error(t, err)
	})

	t.Run("nil connection", func(t *testing.T) {
		withNil := []*sql.DB{conns[0], nil, conns[2]}
		_, err := shard.NewRouter(withNil, 3)
		assert.Error(t, err)
	})

	t.Run("exact count", func(t *testing.T) {
		r, err := shard.NewRouter(conns, 3)
		assert.NoError(t, err)
		assert.Equal(t, 3, r.Count())
	})
}

func TestRouter_ForKeyStability(t *testing.T) {
	conns := openTestShards(t, 3)
	r, err := shard.NewRouter(conns, 3)
	require.NoError(t, err)
	ctx := context.Background()

	// Same key, same shard, every time.
	first := r.ForKey("x").Index()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, r.ForKey("x").Index())
	}

	// Writes through ForKey are visible when that shard alone is queried.
	keys := []string{"x", "y", "book-42"}
	for _, key := range keys {
		_, err := r.ForKey(key).ExecContext(ctx, `INSERT INTO records (id) VALUES (?)`, key)
		require.NoError(t, err)
	}

	for _, key := range keys {
		h := r.ForKey(key)
		var got string
		err := h.QueryRowContext(ctx, `SELECT id FROM records WHERE id = ?`, key).Scan(&got)
		assert.NoError(t, err, "key %q must be on shard %d", key, h.Index())
		assert.Equal(t, key, got)
	}
}

func TestRouter_QueryAll_MergesShards(t *testing.T) {
	conns := openTestShards(t, 10)
	r, err := shard.NewRouter(conns, 10)
	require.NoError(t, err)
	ctx := context.Background()

	// Two rows each on shards 3 and 7, rest empty.
	for i, n := 0, 0; i < 2; i++ {
		for _, idx := range []int{3, 7} {
			n++
			_, err := r.Shard(idx).ExecContext(ctx, `INSERT INTO records (id) VALUES (?)`, fmt.Sprintf("row-%d", n))
			require.NoError(t, err)
		}
	}

	var ids []string
	failed, err := r.QueryAll(ctx, `SELECT id FROM records`, nil, collectIDs(&ids))
	assert.NoError(t, err)
	assert.Empty(t, failed)
	assert.Len(t, ids, 4)
	assert.ElementsMatch(t, []string{"row-1", "row-2", "row-3", "row-4"}, ids)
}

func TestRouter_QueryAll_PartialFailure(t *testing.T) {
	conns := openTestShards(t, 3)
	r, err := shard.NewRouter(conns, 3)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := r.Shard(i).ExecContext(ctx, `INSERT INTO records (id) VALUES (?)`, fmt.Sprintf("shard-%d-row", i))
		require.NoError(t, err)
	}

	// Shard 1 becomes unreachable; the fan-out still returns the union of
	// the other shards.
	require.NoError(t, conns[1].Close())

	var ids []string
	failed, err := r.QueryAll(ctx, `SELECT id FROM records`, nil, collectIDs(&ids))
	assert.NoError(t, err)
	assert.Equal(t, []int{1}, failed)
	assert.ElementsMatch(t, []string{"shard-0-row", "shard-2-row"}, ids)
}

func TestRouter_QueryAll_ContextCancelled(t *testing.T) {
	conns := openTestShards(t, 3)
	r, err := shard.NewRouter(conns, 3)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = r.QueryAll(ctx, `SELECT id FROM records`, nil, collectIDs(&[]string{}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRouter_ForKey_SurfacesShardErrors(t *testing.T) {
	conns := openTestShards(t, 3)
	r, err := shard.NewRouter(conns, 3)
	require.NoError(t, err)
	ctx := context.Background()

	idx := r.ForKey("x").Index()
	require.NoError(t, conns[idx].Close())

	_, err = r.ForKey("x").ExecContext(ctx, `INSERT INTO records (id) VALUES (?)`, "x")
	assert.Error(t, err, "single-shard operations have no fallback")
}
