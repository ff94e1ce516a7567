package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/quireapp/quire"
)

// quoteIdentifier safely quotes a PostgreSQL identifier
func quoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

type TableMigration struct {
	TableName string
	Up        func(ctx context.Context, db *sql.DB) error
	Down      func(ctx context.Context, db *sql.DB) error
}

// getTableMigrations returns all table migrations for one shard
func getTableMigrations(tables quire.Tables) []TableMigration {
	migrations := []TableMigration{}

	migrations = append(migrations, TableMigration{
		TableName: tables.Books,
		Up:        createBooksTable(tables.Books),
		Down:      dropTable(tables.Books),
	})

	return migrations
}

// Migrate brings one shard's schema up to date. Every shard runs the same
// migrations; callers apply this per shard connection.
func Migrate(ctx context.Context, db *sql.DB, tables quire.Tables) error {
	migrations := getTableMigrations(tables)

	for _, migration := range migrations {
		if err := migration.Up(ctx, db); err != nil {
			return fmt.Errorf("migrate up %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func DropTables(ctx context.Context, db *sql.DB, tables quire.Tables) error {
	migrations := getTableMigrations(tables)

	for i := len(migrations) - 1; i >= 0; i-- {
		migration := migrations[i]
		if err := migration.Down(ctx, db); err != nil {
			return fmt.Errorf("migrate down %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func createBooksTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		quotedTable := quoteIdentifier(tableName)
		indexList := quoteIdentifier(fmt.Sprintf("idx_%s_list", tableName))

		createTableSQL := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT NOT NULL PRIMARY KEY,
				title TEXT NOT NULL,
				author TEXT NOT NULL,
				format TEXT NOT NULL,
				content_type TEXT NOT NULL,
				file_size_bytes BIGINT NOT NULL,
				provider TEXT NOT NULL,
				storage_id TEXT NOT NULL,
				locator_url TEXT NOT NULL,
				read_position TEXT NOT NULL DEFAULT '',
				read_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)
		`, quotedTable)

		if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
			return fmt.Errorf("create table: %w", err)
		}

		indexSQL := fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s ON %s (created_at, id)
		`, indexList, quotedTable)

		if _, err := db.ExecContext(ctx, indexSQL); err != nil {
			return fmt.Errorf("create index list: %w", err)
		}

		return nil
	}
}

func dropTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		quotedTable := quoteIdentifier(tableName)
		dropSQL := fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", quotedTable)

		_, err := db.ExecContext(ctx, dropSQL)
		return err
	}
}
