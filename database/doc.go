// Package database provides a unified interface for connecting to the
// sharded metadata backend.
//
// The package supports multiple database backends (PostgreSQL and SQLite)
// and handles per-shard connection management, migrations, and schema
// validation automatically.
//
// # Supported Backends
//
//   - PostgreSQL: Production-ready backend using the pgx driver
//   - SQLite: Lightweight backend suitable for single-node deployments
//
// # Usage
//
//	cfg := database.Config{
//	    Type:   "sqlite",
//	    Shards: []string{"shard-0.db", "shard-1.db", "shard-2.db"},
//	    Table:  "books",
//	}
//
//	repo, router, cleanup, err := database.Connect(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cleanup()
//
// The Connect function automatically:
//   - Opens a connection per shard
//   - Runs schema migrations on every shard
//   - Validates every shard's schema
//   - Returns a ready-to-use BookRepo over a shard router
//
// The shard list is positional: a record's shard is a pure function of
// its id and the shard count, so the list must not be reordered or
// resized once records exist.
//
// # Subpackages
//
// The database package contains backend-specific implementations:
//
//   - database/postgres: PostgreSQL implementation using pgx
//   - database/sqlite: SQLite implementation using modernc.org/sqlite
package database
