package shard

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// Router hides a fixed-size pool of shard connections behind two access
// patterns: ForKey for single-shard statements and QueryAll for
// collection-wide fan-out reads. The shard count is fixed at construction;
// a record's shard is a pure function of its key, so there is no fallback
// shard and no rebalancing.
type Router struct {
	conns []*sql.DB
	log   *slog.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithLogger sets the logger used for swallowed fan-out errors.
func WithLogger(log *slog.Logger) RouterOption {
	return func(r *Router) {
		r.log = log
	}
}

// NewRouter builds a Router over conns. want is the configured shard
// count; supplying a different number of connections, or any nil
// connection, is a configuration error and fails here rather than at
// first use.
func NewRouter(conns []*sql.DB, want int, opts ...RouterOption) (*Router, error) {
	if want <= 0 {
		return nil, fmt.Errorf("new router: shard count must be positive, got %d", want)
	}
	if len(conns) != want {
		return nil, fmt.Errorf("new router: expected %d shard connections, got %d", want, len(conns))
	}
	for i, c := range conns {
		if c == nil {
			return nil, fmt.Errorf("new router: shard %d connection is nil", i)
		}
	}

	r := &Router{
		conns: conns,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Count returns the number of shards.
func (r *Router) Count() int {
	return len(r.conns)
}

// ForKey returns the handle for the single shard that owns key.
func (r *Router) ForKey(key string) *Shard {
	return r.Shard(Index(key, len(r.conns)))
}

// Shard returns the handle for shard i. i must be in [0, Count()).
func (r *Router) Shard(i int) *Shard {
	return &Shard{db: r.conns[i], index: i}
}

// QueryAll runs the same read-only statement against every shard in shard
// order and hands each shard's rows to scan. A shard whose query or scan
// fails contributes zero rows; the failure is logged and its index is
// returned so callers can detect a partial result. Only context
// cancellation aborts the fan-out as a whole.
func (r *Router) QueryAll(ctx context.Context, query string, args []any, scan func(shard int, rows *sql.Rows) error) ([]int, error) {
	var failed []int

	for i, db := range r.conns {
		if err := ctx.Err(); err != nil {
			return failed, fmt.Errorf("query all: %w", err)
		}

		if err := r.queryOne(ctx, db, i, query, args, scan); err != nil {
			r.log.Warn("shard query failed, continuing fan-out", "shard", i, "err", err)
			failed = append(failed, i)
		}
	}

	return failed, nil
}

func (r *Router) queryOne(ctx context.Context, db *sql.DB, index int, query string, args []any, scan func(int, *sql.Rows) error) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query shard %d: %w", index, err)
	}
	defer func() { _ = rows.Close() }()

	if err := scan(index, rows); err != nil {
		return fmt.Errorf("scan shard %d: %w", index, err)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows shard %d: %w", index, err)
	}
	return nil
}

// Shard is a handle bound to one backing store. Statements run through it
// execute only against that shard, and errors surface to the caller
// unchanged. A record's shard is fixed by its key, so there is nothing
// to fall back to.
type Shard struct {
	db    *sql.DB
	index int
}

// Index returns the shard's position in the pool.
func (s *Shard) Index() int {
	return s.index
}

// ExecContext runs a statement on this shard.
func (s *Shard) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

// QueryContext runs a query on this shard.
func (s *Shard) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row query on this shard.
func (s *Shard) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, query, args...)
}
