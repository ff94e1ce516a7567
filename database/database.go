package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/quireapp/quire"
	"github.com/quireapp/quire/database/postgres"
	"github.com/quireapp/quire/database/sqlite"
	"github.com/quireapp/quire/shard"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	_ "modernc.org/sqlite"             // SQLite driver
)

// Config holds the configuration for connecting to the sharded metadata
// backend.
type Config struct {
	// Type specifies the database type: "sqlite" or "postgres"
	Type string
	// Shards is the ordered list of per-shard DSNs. The order is part of
	// the routing function: a key's shard is its hash modulo len(Shards),
	// so reordering or resizing this list strands existing records.
	Shards []string
	// Table is the name of the books table, identical on every shard
	Table string
}

type shardFuncs struct {
	driver   string
	migrate  func(context.Context, *sql.DB, quire.Tables) error
	validate func(context.Context, *sql.DB, quire.Tables) error
	newRepo  func(*shard.Router, quire.Tables) (quire.BookRepo, error)
}

// Connect opens every shard of the configured backend, runs migrations,
// validates the schema on each, and returns the repo together with the
// router it runs on. The returned cleanup function closes all shard
// connections.
func Connect(ctx context.Context, cfg Config) (quire.BookRepo, *shard.Router, func(), error) {
	if len(cfg.Shards) == 0 {
		return nil, nil, nil, fmt.Errorf("connect: at least one shard DSN required")
	}

	tables := quire.Tables{Books: cfg.Table}
	if err := tables.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("connect: %w", err)
	}

	var funcs shardFuncs
	switch cfg.Type {
	case "sqlite":
		funcs = shardFuncs{
			driver:   "sqlite",
			migrate:  sqlite.Migrate,
			validate: sqlite.ValidateSchema,
			newRepo: func(r *shard.Router, t quire.Tables) (quire.BookRepo, error) {
				return sqlite.NewRepo(r, t)
			},
		}
	case "postgres":
		funcs = shardFuncs{
			driver:   "pgx",
			migrate:  postgres.Migrate,
			validate: postgres.ValidateSchema,
			newRepo: func(r *shard.Router, t quire.Tables) (quire.BookRepo, error) {
				return postgres.NewRepo(r, t)
			},
		}
	default:
		return nil, nil, nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	conns := make([]*sql.DB, 0, len(cfg.Shards))
	closeAll := func() {
		for _, c := range conns {
			_ = c.Close()
		}
	}

	for i, dsn := range cfg.Shards {
		db, err := sql.Open(funcs.driver, dsn)
		if err != nil {
			closeAll()
			return nil, nil, nil, fmt.Errorf("open shard %d: %w", i, err)
		}
		conns = append(conns, db)

		if err = db.PingContext(ctx); err != nil {
			closeAll()
			return nil, nil, nil, fmt.Errorf("ping shard %d: %w", i, err)
		}

		if err = funcs.migrate(ctx, db, tables); err != nil {
			closeAll()
			return nil, nil, nil, fmt.Errorf("migrate shard %d: %w", i, err)
		}

		if err = funcs.validate(ctx, db, tables); err != nil {
			closeAll()
			return nil, nil, nil, fmt.Errorf("validate shard %d schema: %w", i, err)
		}
	}

	router, err := shard.NewRouter(conns, len(cfg.Shards))
	if err != nil {
		closeAll()
		return nil, nil, nil, fmt.Errorf("connect: %w", err)
	}

	repo, err := funcs.newRepo(router, tables)
	if err != nil {
		closeAll()
		return nil, nil, nil, fmt.Errorf("connect: %w", err)
	}

	return repo, router, closeAll, nil
}
