package postgres_test

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"math"
	"math/big"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/quireapp/quire"
	"github.com/quireapp/quire/database/postgres"
	"github.com/quireapp/quire/shard"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
)

var (
	testAdmin *sql.DB
	testDSN   string
	testOnce  sync.Once
)

// sharedTestDatabase starts one postgres container for the whole package
// and returns an admin connection used to create per-test shard databases.
func sharedTestDatabase(t *testing.T) *sql.DB {
	t.Helper()

	testOnce.Do(func() {
		ctx := context.Background()

		pgContainer, err := pgcontainer.Run(ctx,
			"postgres:18-alpine",
			pgcontainer.WithDatabase("testdb"),
			pgcontainer.WithUsername("testuser"),
			pgcontainer.WithPassword("testpass"),
			pgcontainer.BasicWaitStrategies(),
		)
		if err != nil {
			t.Fatalf("failed to start postgres container: %v", err)
		}
		// The container is cleaned up by the testcontainers reaper when the
		// test process exits.

		connectionStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			t.Fatalf("failed to get connection string: %v", err)
		}
		testDSN = connectionStr

		db, err := sql.Open("pgx", connectionStr)
		if err != nil {
			t.Fatalf("could not connect to database: %v", err)
		}
		testAdmin = db
	})

	return testAdmin
}

// shardDSN rewrites the container DSN to point at a different database.
func shardDSN(t *testing.T, dbName string) string {
	t.Helper()

	u, err := url.Parse(testDSN)
	require.NoError(t, err)
	u.Path = "/" + dbName
	return u.String()
}

// getRandomString generates a random string for unique test identifiers.
func getRandomString(t *testing.T) string {
	t.Helper()
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	require.NoError(t, err, "random string")
	return fmt.Sprintf("test%x", n.Int64())
}

// setupTestRepo creates a repo over n freshly created shard databases in
// the shared container. Each shard is its own database so the fan-out
// actually crosses isolated stores.
func setupTestRepo(t *testing.T, n int) quire.BookRepo {
	t.Helper()

	admin := sharedTestDatabase(t)
	ctx := context.Background()
	tables := quire.Tables{Books: "books"}
	prefix := getRandomString(t)

	conns := make([]*sql.DB, n)
	for i := range conns {
		dbName := fmt.Sprintf("%s_shard_%d", prefix, i)
		_, err := admin.ExecContext(ctx, fmt.Sprintf(`CREATE DATABASE %q`, dbName))
		require.NoError(t, err, "create shard database %d", i)
		t.Cleanup(func() {
			_, _ = admin.ExecContext(context.Background(), fmt.Sprintf(`DROP DATABASE IF EXISTS %q`, dbName))
		})

		db, err := sql.Open("pgx", shardDSN(t, dbName))
		require.NoError(t, err, "open shard %d", i)
		t.Cleanup(func() { _ = db.Close() })

		require.NoError(t, postgres.Migrate(ctx, db, tables), "migrate shard %d", i)
		require.NoError(t, postgres.ValidateSchema(ctx, db, tables), "validate shard %d", i)
		conns[i] = db
	}

	router, err := shard.NewRouter(conns, n)
	require.NoError(t, err)

	repo, err := postgres.NewRepo(router, tables)
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
